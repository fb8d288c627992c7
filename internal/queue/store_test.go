package queue

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEnqueueIsIdempotentForInFlightJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, created, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=abc123def45", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !created {
		t.Fatal("expected first enqueue to create a job")
	}

	second, created, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=abc123def45", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue duplicate: %v", err)
	}
	if created {
		t.Fatal("expected duplicate enqueue to return the existing job")
	}
	if second.ID != first.ID {
		t.Fatalf("expected job %d, got %d", first.ID, second.ID)
	}

	// Same URL but a different kind is a distinct job.
	audio, created, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=abc123def45", KindAudio, "")
	if err != nil {
		t.Fatalf("enqueue audio: %v", err)
	}
	if !created {
		t.Fatal("expected audio enqueue to create a job")
	}
	if audio.ID == first.ID {
		t.Fatal("audio job should not collide with video job")
	}
}

func TestEnqueueCreatesNewJobAfterTerminalStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=abc123def45", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job.Status = StatusDone
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	again, created, err := store.Enqueue(ctx, job.URL, KindVideo, "1080")
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh job once the previous one finished")
	}
	if again.ID == job.ID {
		t.Fatal("expected a new row, got the finished one")
	}
}

func TestNextPendingReturnsOldestAcrossQueuedAndRetrying(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=first000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	// Force distinct created_at values; SQLite stores text timestamps.
	first.CreatedAt = time.Now().UTC().Add(-time.Minute)
	first.SetRetrying("network error")
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("update first: %v", err)
	}
	forceCreatedAt(t, store, first.ID, first.CreatedAt)

	if _, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=second00001", KindVideo, "1080"); err != nil {
		t.Fatalf("enqueue second: %v", err)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next == nil {
		t.Fatal("expected a pending job")
	}
	if next.ID != first.ID {
		t.Fatalf("expected retrying job %d first, got %d", first.ID, next.ID)
	}
	if next.Status != StatusRetrying {
		t.Fatalf("expected status retrying, got %s", next.Status)
	}
}

func TestNextPendingIgnoresActiveAndTerminalJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=busy0000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Status = StatusActive
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	next, err := store.NextPending(ctx)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no pending job, got %d (%s)", next.ID, next.Status)
	}
}

func TestResetStuckActiveParksJobsAsRetrying(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=stuck000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Status = StatusActive
	job.Attempts = 2
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.ResetStuckActive(ctx)
	if err != nil {
		t.Fatalf("reset stuck: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reset job, got %d", count)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != StatusRetrying {
		t.Fatalf("expected retrying, got %s", reloaded.Status)
	}
	if reloaded.Attempts != 2 {
		t.Fatalf("expected attempts preserved at 2, got %d", reloaded.Attempts)
	}
}

func TestReclaimStaleActiveUsesHeartbeatCutoff(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stale, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=stale000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue stale: %v", err)
	}
	stale.Status = StatusActive
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("update stale: %v", err)
	}
	forceHeartbeat(t, store, stale.ID, time.Now().UTC().Add(-10*time.Minute))

	fresh, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=fresh000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue fresh: %v", err)
	}
	fresh.Status = StatusActive
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("update fresh: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, fresh.ID); err != nil {
		t.Fatalf("heartbeat fresh: %v", err)
	}

	count, err := store.ReclaimStaleActive(ctx, time.Now().UTC().Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", count)
	}

	reloaded, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("reload stale: %v", err)
	}
	if reloaded.Status != StatusRetrying {
		t.Fatalf("expected stale job retrying, got %s", reloaded.Status)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("reload fresh: %v", err)
	}
	if untouched.Status != StatusActive {
		t.Fatalf("expected fresh job still active, got %s", untouched.Status)
	}
}

func TestUpdateLeavesHeartbeatToHeartbeatWriter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=beat0000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Status = StatusActive
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}

	beating, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if beating.LastHeartbeat == nil {
		t.Fatal("expected heartbeat to be recorded")
	}

	// A progress write carrying a stale in-memory heartbeat must not move it.
	job.SetProgress(42, "Downloading")
	job.LastHeartbeat = nil
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("progress update: %v", err)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload after progress: %v", err)
	}
	if reloaded.ProgressPercent != 42 {
		t.Fatalf("progress = %v, want 42", reloaded.ProgressPercent)
	}
	if reloaded.LastHeartbeat == nil || !reloaded.LastHeartbeat.Equal(*beating.LastHeartbeat) {
		t.Fatalf("heartbeat = %v, want %v", reloaded.LastHeartbeat, beating.LastHeartbeat)
	}
}

func TestEnqueueConcurrentDuplicatesCreateOneJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=racy0000001", KindVideo, "1080")
			if err != nil {
				t.Errorf("enqueue: %v", err)
				return
			}
			if isNew {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("expected exactly one created job, got %d", got)
	}
	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected a single row, got %d", len(jobs))
	}
}

func TestRetryFailedResetsAttemptsAndError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=failed00001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Attempts = 3
	job.SetFailed("download error: network timeout")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.RetryFailed(ctx, job.ID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 retried job, got %d", count)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != StatusRetrying {
		t.Fatalf("expected retrying, got %s", reloaded.Status)
	}
	if reloaded.Attempts != 0 {
		t.Fatalf("expected attempts reset to 0, got %d", reloaded.Attempts)
	}
	if reloaded.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", reloaded.ErrorMessage)
	}
}

func TestRetryFailedLeavesOtherStatusesAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=done0000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	job.Status = StatusDone
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 retried jobs, got %d", count)
	}
}

func TestStatsAndHealthCountByStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	urls := []string{
		"https://www.youtube.com/watch?v=stats000001",
		"https://www.youtube.com/watch?v=stats000002",
		"https://www.youtube.com/watch?v=stats000003",
	}
	jobs := make([]*Job, 0, len(urls))
	for _, url := range urls {
		job, _, err := store.Enqueue(ctx, url, KindVideo, "1080")
		if err != nil {
			t.Fatalf("enqueue %s: %v", url, err)
		}
		jobs = append(jobs, job)
	}

	jobs[1].Status = StatusDone
	if err := store.Update(ctx, jobs[1]); err != nil {
		t.Fatalf("update done: %v", err)
	}
	jobs[2].SetFailed("unsupported url")
	if err := store.Update(ctx, jobs[2]); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[StatusQueued] != 1 || stats[StatusDone] != 1 || stats[StatusFailed] != 1 {
		t.Fatalf("unexpected stats: %v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Total != 3 || health.Queued != 1 || health.Done != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestCheckHealthReportsSchemaAndIntegrity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=health00001", KindVideo, "1080"); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	health, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("check health: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TableExists {
		t.Fatalf("unexpected health: %+v", health)
	}
	if len(health.MissingColumns) != 0 {
		t.Fatalf("missing columns: %v", health.MissingColumns)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
	if health.TotalJobs != 1 {
		t.Fatalf("expected 1 job, got %d", health.TotalJobs)
	}
}

func TestClearVariantsRemoveOnlyMatchingJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	queued, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=clear000001", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue queued: %v", err)
	}
	done, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=clear000002", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue done: %v", err)
	}
	done.Status = StatusDone
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("update done: %v", err)
	}
	failed, _, err := store.Enqueue(ctx, "https://www.youtube.com/watch?v=clear000003", KindVideo, "1080")
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	failed.SetFailed("video unavailable")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if count, err := store.ClearDone(ctx); err != nil || count != 1 {
		t.Fatalf("clear done: count=%d err=%v", count, err)
	}
	if count, err := store.ClearFailed(ctx); err != nil || count != 1 {
		t.Fatalf("clear failed: count=%d err=%v", count, err)
	}

	remaining, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != queued.ID {
		t.Fatalf("expected only queued job to remain, got %d jobs", len(remaining))
	}

	if count, err := store.Clear(ctx); err != nil || count != 1 {
		t.Fatalf("clear all: count=%d err=%v", count, err)
	}
}

func TestRemoveReportsMissingJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	removed, err := store.Remove(ctx, 42)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed {
		t.Fatal("expected no row removed")
	}
}

func forceCreatedAt(t *testing.T, store *Store, id int64, created time.Time) {
	t.Helper()
	_, err := store.db.Exec(
		`UPDATE jobs SET created_at = ? WHERE id = ?`,
		created.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		t.Fatalf("force created_at: %v", err)
	}
}

func forceHeartbeat(t *testing.T, store *Store, id int64, heartbeat time.Time) {
	t.Helper()
	_, err := store.db.Exec(
		`UPDATE jobs SET last_heartbeat = ? WHERE id = ?`,
		heartbeat.UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		t.Fatalf("force heartbeat: %v", err)
	}
}
