// Package watcher polls the system clipboard for YouTube links and hands
// them to the daemon for enqueueing.
package watcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"cliptube/internal/config"
	"cliptube/internal/logging"
	"cliptube/internal/youtube"
)

// Sink receives canonicalized YouTube watch URLs found on the clipboard.
type Sink interface {
	HandleURL(ctx context.Context, url string) error
}

// readFunc abstracts clipboard access so tests can substitute fake content.
type readFunc func() (string, error)

// Watcher polls the clipboard on an interval and forwards new video links.
type Watcher struct {
	logger       *slog.Logger
	sink         Sink
	read         readFunc
	pollInterval time.Duration

	mu       sync.Mutex
	running  bool
	lastSeen string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a clipboard watcher from config. Returns nil when the watcher
// is disabled.
func New(cfg *config.Config, logger *slog.Logger, sink Sink) *Watcher {
	if cfg == nil || sink == nil || !cfg.Watcher.Enabled {
		return nil
	}

	poll := time.Duration(cfg.Watcher.PollIntervalMS) * time.Millisecond
	if poll <= 0 {
		poll = 800 * time.Millisecond
	}

	return &Watcher{
		logger:       logging.NewComponentLogger(logger, "watcher"),
		sink:         sink,
		read:         clipboard.ReadAll,
		pollInterval: poll,
	}
}

// Start begins polling. Safe to call on a nil watcher (disabled config).
func (w *Watcher) Start(ctx context.Context) {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)
	w.mu.Unlock()

	w.logger.Info("clipboard watcher started",
		logging.Duration("poll_interval", w.pollInterval),
	)
	go w.run(runCtx)
}

// Stop halts polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll reads the clipboard once. Read errors are logged and skipped; a
// wayland session without a clipboard tool should not kill the daemon.
func (w *Watcher) poll(ctx context.Context) {
	content, err := w.read()
	if err != nil {
		w.logger.Debug("clipboard read failed", logging.Error(err))
		return
	}

	content = strings.TrimSpace(content)
	if content == "" || content == w.lastContent() {
		return
	}
	w.setLastContent(content)

	url, ok := youtube.Canonicalize(content)
	if !ok {
		return
	}

	w.logger.Info("youtube link detected",
		logging.String(logging.FieldURL, url),
		logging.String(logging.FieldEventType, "link_detected"),
	)
	if err := w.sink.HandleURL(ctx, url); err != nil {
		w.logger.Warn("failed to enqueue clipboard link",
			logging.Error(err),
			logging.String(logging.FieldURL, url),
			logging.String(logging.FieldEventType, "enqueue_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
}

func (w *Watcher) lastContent() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

func (w *Watcher) setLastContent(content string) {
	w.mu.Lock()
	w.lastSeen = content
	w.mu.Unlock()
}
