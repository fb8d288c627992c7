package history

import (
	"context"
	"path/filepath"
	"testing"

	"cliptube/internal/queue"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestAppendAndRecentOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	jobs := []*queue.Job{
		{URL: "https://www.youtube.com/watch?v=hist0000001", Kind: queue.KindVideo, Title: "First Video", RequestedQuality: "1080", DestinationPath: "/videos/First_Video.mp4"},
		{URL: "https://www.youtube.com/watch?v=hist0000002", Kind: queue.KindAudio, Title: "First Song", RequestedQuality: "best", DestinationPath: "/music/First_Song.mp3"},
	}
	for _, job := range jobs {
		if _, err := store.Append(ctx, job); err != nil {
			t.Fatalf("append %s: %v", job.URL, err)
		}
	}

	entries, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// Most recent first.
	if entries[0].URL != jobs[1].URL {
		t.Fatalf("expected newest entry first, got %s", entries[0].URL)
	}
	if entries[0].Kind != queue.KindAudio {
		t.Fatalf("expected audio kind, got %s", entries[0].Kind)
	}
	if entries[1].Title != "First Video" {
		t.Fatalf("unexpected title %q", entries[1].Title)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected count 2, got %d", count)
	}
}

func TestRecentHonorsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		job := &queue.Job{
			URL:  "https://www.youtube.com/watch?v=limit000000" + string(rune('a'+i)),
			Kind: queue.KindVideo,
		}
		if _, err := store.Append(ctx, job); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, err := store.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestFindByURLReturnsAllCompletions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	url := "https://www.youtube.com/watch?v=repeat00001"
	for i := 0; i < 2; i++ {
		if _, err := store.Append(ctx, &queue.Job{URL: url, Kind: queue.KindVideo, Title: "Repeat"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := store.Append(ctx, &queue.Job{URL: "https://www.youtube.com/watch?v=other000001", Kind: queue.KindVideo}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	entries, err := store.FindByURL(ctx, url)
	if err != nil {
		t.Fatalf("find by url: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for %s, got %d", url, len(entries))
	}
	for _, entry := range entries {
		if entry.URL != url {
			t.Fatalf("unexpected url %s", entry.URL)
		}
		if entry.CompletedAt.IsZero() {
			t.Fatal("expected completed_at to be set")
		}
	}
}
