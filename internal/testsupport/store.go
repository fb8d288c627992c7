package testsupport

import (
	"context"
	"testing"

	"cliptube/internal/config"
	"cliptube/internal/history"
	"cliptube/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenHistory opens a history.Store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob enqueues a download job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, url string, kind queue.Kind) *queue.Job {
	t.Helper()

	job, _, err := store.Enqueue(context.Background(), url, kind, "")
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
