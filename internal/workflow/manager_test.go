package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cliptube/internal/config"
	"cliptube/internal/history"
	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/services"
	"cliptube/internal/stage"
)

type fakeHandler struct {
	prepareErr  error
	executeErrs []error
	executions  int
}

func (f *fakeHandler) Prepare(_ context.Context, job *queue.Job) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	job.Title = "Video"
	job.DestinationPath = "/videos/Video.mp4"
	return nil
}

func (f *fakeHandler) Execute(_ context.Context, job *queue.Job) error {
	idx := f.executions
	f.executions++
	if idx < len(f.executeErrs) && f.executeErrs[idx] != nil {
		return f.executeErrs[idx]
	}
	job.SetProgress(100, "Download complete")
	return nil
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("download")
}

func newTestManager(t *testing.T, handler stage.Handler) (*Manager, *queue.Store, *history.Store) {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(root, "data")
	cfg.Paths.LogDir = filepath.Join(root, "logs")
	cfg.OutputVideoDir = filepath.Join(root, "videos")
	cfg.OutputAudioDir = filepath.Join(root, "music")
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 10

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	hist, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })

	manager := NewManager(cfg, store, hist, logging.NewNop(), handler)
	return manager, store, hist
}

// drain pulls and processes pending jobs one at a time, the way the run loop
// does, until the queue has no pending work left.
func drain(t *testing.T, m *Manager, store *queue.Store) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		job, err := store.NextPending(ctx)
		if err != nil {
			t.Fatalf("next pending: %v", err)
		}
		if job == nil {
			return
		}
		_ = m.processJob(ctx, job)
	}
	t.Fatal("queue did not drain")
}

func transientErr() error {
	return services.Wrap(services.ErrExternalTool, "download", "run yt-dlp", "network hiccup", errors.New("exit status 1"))
}

func TestJobSucceedsAfterTwoRetryableFailures(t *testing.T) {
	handler := &fakeHandler{executeErrs: []error{transientErr(), transientErr(), nil}}
	manager, store, hist := newTestManager(t, handler)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=retry000001", queue.KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	drain(t, manager, store)

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusDone {
		t.Fatalf("expected done, got %s (%s)", final.Status, final.ErrorMessage)
	}
	if final.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", final.Attempts)
	}

	entries, err := hist.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 || entries[0].URL != job.URL {
		t.Fatalf("expected one history entry for %s, got %v", job.URL, entries)
	}
}

func TestJobFailsAfterRetryCeiling(t *testing.T) {
	handler := &fakeHandler{executeErrs: []error{transientErr(), transientErr(), transientErr()}}
	manager, store, hist := newTestManager(t, handler)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=ceiling0001", queue.KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	drain(t, manager, store)

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", final.Attempts)
	}
	if final.ErrorMessage == "" {
		t.Fatal("expected error message on failed job")
	}
	if handler.executions != 3 {
		t.Fatalf("expected 3 executions, got %d", handler.executions)
	}

	count, err := hist.Count(ctx)
	if err != nil {
		t.Fatalf("history count: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed job must not reach history, got %d entries", count)
	}
}

func TestTerminalErrorFailsImmediately(t *testing.T) {
	terminal := services.Wrap(services.ErrNotFound, "download", "probe", "video unavailable", nil)
	handler := &fakeHandler{executeErrs: []error{terminal}}
	manager, store, _ := newTestManager(t, handler)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=gone0000001", queue.KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	drain(t, manager, store)

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.Attempts != 1 {
		t.Fatalf("terminal error must not retry, got %d attempts", final.Attempts)
	}
	if handler.executions != 1 {
		t.Fatalf("expected 1 execution, got %d", handler.executions)
	}
}

func TestPrepareValidationFailureIsTerminal(t *testing.T) {
	handler := &fakeHandler{prepareErr: services.Wrap(services.ErrValidation, "download", "prepare", "bad url", nil)}
	manager, store, _ := newTestManager(t, handler)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=badurl00001", queue.KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	drain(t, manager, store)

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if handler.executions != 0 {
		t.Fatalf("execute must not run after prepare failure, got %d", handler.executions)
	}
}

func TestJobsProcessInFIFOOrder(t *testing.T) {
	handler := &fakeHandler{}
	manager, store, hist := newTestManager(t, handler)
	ctx := context.Background()

	urls := []string{
		"https://www.youtube.com/watch?v=fifo0000001",
		"https://www.youtube.com/watch?v=fifo0000002",
		"https://www.youtube.com/watch?v=fifo0000003",
	}
	for _, url := range urls {
		if _, _, err := store.Enqueue(ctx, url, queue.KindVideo, "1080"); err != nil {
			t.Fatalf("enqueue %s: %v", url, err)
		}
	}

	drain(t, manager, store)

	entries, err := hist.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != len(urls) {
		t.Fatalf("expected %d entries, got %d", len(urls), len(entries))
	}
	// Recent is newest-first, so the last enqueued URL comes first.
	for i, entry := range entries {
		want := urls[len(urls)-1-i]
		if entry.URL != want {
			t.Fatalf("entry %d = %s, want %s", i, entry.URL, want)
		}
	}
}

func TestStartAndStopLifecycle(t *testing.T) {
	handler := &fakeHandler{}
	manager, store, _ := newTestManager(t, handler)
	ctx := context.Background()

	if _, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=lifecycle01", queue.KindVideo, "1080"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := manager.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	deadline := time.After(10 * time.Second)
	for {
		health, err := store.Health(ctx)
		if err != nil {
			t.Fatalf("health: %v", err)
		}
		if health.Done == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job did not complete")
		case <-time.After(50 * time.Millisecond):
		}
	}

	manager.Stop()
	summary := manager.Status(ctx)
	if summary.Running {
		t.Fatal("expected manager stopped")
	}
}

func TestStopJobFailsPendingJob(t *testing.T) {
	handler := &fakeHandler{}
	manager, store, _ := newTestManager(t, handler)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=stopme00001", queue.KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := manager.StopJob(ctx, job.ID); err != nil {
		t.Fatalf("stop job: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.ErrorMessage != queue.UserStopReason {
		t.Fatalf("unexpected error message %q", final.ErrorMessage)
	}

	if err := manager.StopJob(ctx, job.ID); err == nil {
		t.Fatal("expected error stopping a terminal job")
	}
	if err := manager.StopJob(ctx, 9999); err == nil {
		t.Fatal("expected error for unknown job")
	}
}
