package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cliptube/internal/config"
	"cliptube/internal/deps"
	"cliptube/internal/history"
	"cliptube/internal/logging"
	"cliptube/internal/notifications"
	"cliptube/internal/queue"
	"cliptube/internal/watcher"
	"cliptube/internal/workflow"
	"cliptube/internal/youtube"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	history  *history.Store
	workflow *workflow.Manager
	watcher  *watcher.Watcher
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running      atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Workflow      workflow.StatusSummary
	QueueDBPath   string
	HistoryDBPath string
	LockFilePath  string
	Dependencies  []deps.Status
}

// New constructs a daemon with initialized dependencies. The watcher may be
// nil when clipboard watching is disabled.
func New(cfg *config.Config, store *queue.Store, hist *history.Store, logger *slog.Logger, wf *workflow.Manager, w *watcher.Watcher) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		history:  hist,
		workflow: wf,
		watcher:  w,
		notifier: notifications.NewService(cfg),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		shutdown: make(chan struct{}),
	}, nil
}

// RequestShutdown asks the hosting process to exit. Safe to call more than
// once; the first call wins.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdown) })
}

// ShutdownRequested is closed once a stop request asks the process to exit.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdown
}

// AttachWatcher wires the clipboard watcher. The daemon itself is the
// watcher's sink, so the watcher can only be built once the daemon exists.
// Must be called before Start.
func (d *Daemon) AttachWatcher(w *watcher.Watcher) {
	d.watcher = w
}

// Start launches the workflow manager and clipboard watcher after acquiring
// the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cliptube daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}
	d.watcher.Start(d.ctx)

	d.running.Store(true)
	d.logger.Info("cliptube daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.watcher.Stop()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("cliptube daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	var firstErr error
	if d.store != nil {
		firstErr = d.store.Close()
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HandleURL implements watcher.Sink: clipboard links enter the queue with
// the kinds enabled in config.
func (d *Daemon) HandleURL(ctx context.Context, url string) error {
	jobs, err := d.Add(ctx, url, nil)
	if err != nil {
		return err
	}
	if len(jobs) > 0 {
		if notifyErr := d.notifier.NotifyLinkDetected(ctx, url); notifyErr != nil {
			d.logger.Debug("link notification failed", logging.Error(notifyErr))
		}
	}
	return nil
}

// Add validates a YouTube URL and enqueues one job per requested kind. When
// kinds is empty, the kinds enabled in config are used. The returned slice
// holds only newly created jobs; duplicates already in flight are skipped.
func (d *Daemon) Add(ctx context.Context, url string, kinds []queue.Kind) ([]*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}

	canonical, ok := youtube.Canonicalize(url)
	if !ok {
		return nil, fmt.Errorf("not a YouTube video link: %s", strings.TrimSpace(url))
	}

	if len(kinds) == 0 {
		if d.cfg.DownloadVideo {
			kinds = append(kinds, queue.KindVideo)
		}
		if d.cfg.DownloadMP3 {
			kinds = append(kinds, queue.KindAudio)
		}
	}
	if len(kinds) == 0 {
		return nil, errors.New("no download kinds enabled")
	}

	var created []*queue.Job
	for _, kind := range kinds {
		quality := d.cfg.VideoQuality
		if kind == queue.KindAudio {
			quality = d.cfg.AudioQuality
		}
		job, isNew, err := d.store.Enqueue(ctx, canonical, kind, quality)
		if err != nil {
			return created, fmt.Errorf("enqueue %s download: %w", kind, err)
		}
		if !isNew {
			d.logger.Debug("duplicate link skipped",
				logging.String(logging.FieldURL, canonical),
				logging.String(logging.FieldKind, string(kind)),
				logging.Int64(logging.FieldJobID, job.ID),
			)
			continue
		}
		d.logger.Info("job queued",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String(logging.FieldURL, canonical),
			logging.String(logging.FieldKind, string(kind)),
		)
		created = append(created, job)
	}
	return created, nil
}

// ListQueue returns queue jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	if d.store == nil {
		return nil, errors.New("queue store unavailable")
	}
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// History returns the most recent completed downloads.
func (d *Daemon) History(ctx context.Context, limit int) ([]*history.Entry, error) {
	if d.history == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.history.Recent(ctx, limit)
}

// ClearQueue removes all queue jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearDone removes only completed queue jobs.
func (d *Daemon) ClearDone(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearDone(ctx)
}

// ClearFailed removes only failed queue jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck puts jobs stuck in active back in line.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.ResetStuckActive(ctx)
}

// RetryFailed gives failed jobs (optionally a subset) a fresh set of attempts.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("queue store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// StopJob aborts an in-flight or pending job.
func (d *Daemon) StopJob(ctx context.Context, id int64) error {
	if d.workflow == nil {
		return errors.New("workflow unavailable")
	}
	return d.workflow.StopJob(ctx, id)
}

// RemoveJob deletes a job from the queue.
func (d *Daemon) RemoveJob(ctx context.Context, id int64) (bool, error) {
	if d.store == nil {
		return false, errors.New("queue store unavailable")
	}
	return d.store.Remove(ctx, id)
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	if d.store == nil {
		return queue.HealthSummary{}, errors.New("queue store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	if d.store == nil {
		return queue.DatabaseHealth{}, errors.New("queue store unavailable")
	}
	return d.store.CheckHealth(ctx)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// LogPath returns the path to today's daemon log file.
func (d *Daemon) LogPath() string {
	return logging.DailyLogPath(d.cfg.Paths.LogDir, time.Now())
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary := d.workflow.Status(ctx)
	return Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Workflow:      summary,
		QueueDBPath:   d.cfg.QueueDBPath(),
		HistoryDBPath: d.cfg.HistoryDBPath(),
		LockFilePath:  d.lockPath,
		Dependencies:  deps.CheckBinaries(deps.Default(d.cfg)),
	}
}
