package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cliptube/internal/daemon"
	"cliptube/internal/ipc"
	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/stage"
	"cliptube/internal/testsupport"
	"cliptube/internal/workflow"
)

type noopStage struct{}

func (noopStage) Prepare(context.Context, *queue.Job) error { return nil }
func (noopStage) Execute(context.Context, *queue.Job) error { return nil }
func (noopStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("download")
}

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hist := testsupport.MustOpenHistory(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, hist, logger, noopStage{})
	d, err := daemon.New(cfg, store, hist, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.DataDir, "cliptubed.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report not running before start")
	}
	if !strings.HasSuffix(status.QueueDBPath, "queue.db") {
		t.Fatalf("unexpected queue db path: %s", status.QueueDBPath)
	}

	addResp, err := client.Add("https://youtu.be/dQw4w9WgXcQ", []string{"video", "audio"})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(addResp.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(addResp.Jobs))
	}
	for _, job := range addResp.Jobs {
		if job.Status != string(queue.StatusQueued) {
			t.Fatalf("expected queued job, got %s", job.Status)
		}
	}

	dupResp, err := client.Add("https://www.youtube.com/watch?v=dQw4w9WgXcQ", []string{"video"})
	if err != nil {
		t.Fatalf("Add duplicate failed: %v", err)
	}
	if len(dupResp.Jobs) != 0 {
		t.Fatalf("expected duplicate to be skipped, got %d jobs", len(dupResp.Jobs))
	}

	if _, err := client.Add("https://example.com/clip", nil); err == nil {
		t.Fatal("expected Add to reject non-YouTube link")
	}

	listResp, err := client.QueueList(nil)
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(listResp.Items) != 2 {
		t.Fatalf("expected 2 queue items, got %d", len(listResp.Items))
	}

	stopID := listResp.Items[0].ID
	stopResp, err := client.QueueStop(stopID)
	if err != nil {
		t.Fatalf("QueueStop failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected job to be stopped")
	}

	failedResp, err := client.QueueList([]string{string(queue.StatusFailed)})
	if err != nil {
		t.Fatalf("QueueList failed filter: %v", err)
	}
	if len(failedResp.Items) != 1 || failedResp.Items[0].ID != stopID {
		t.Fatalf("expected failed job %d, got %#v", stopID, failedResp.Items)
	}

	retryResp, err := client.QueueRetry(nil)
	if err != nil {
		t.Fatalf("QueueRetry failed: %v", err)
	}
	if retryResp.Updated != 1 {
		t.Fatalf("expected 1 retried job, got %d", retryResp.Updated)
	}

	resetResp, err := client.QueueReset()
	if err != nil {
		t.Fatalf("QueueReset failed: %v", err)
	}
	if resetResp.Updated != 0 {
		t.Fatalf("expected no stuck jobs, got %d", resetResp.Updated)
	}

	healthResp, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth failed: %v", err)
	}
	if healthResp.Total != 2 || healthResp.Retrying != 1 {
		t.Fatalf("unexpected health response: %#v", healthResp)
	}

	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "queue.db") {
		t.Fatalf("unexpected db path: %s", dbHealth.DBPath)
	}
	if !dbHealth.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}

	removeResp, err := client.QueueRemove(stopID)
	if err != nil {
		t.Fatalf("QueueRemove failed: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected job to be removed")
	}

	clearResp, err := client.QueueClear()
	if err != nil {
		t.Fatalf("QueueClear failed: %v", err)
	}
	if clearResp.Removed != 1 {
		t.Fatalf("expected 1 job cleared, got %d", clearResp.Removed)
	}

	histResp, err := client.HistoryList(10)
	if err != nil {
		t.Fatalf("HistoryList failed: %v", err)
	}
	if len(histResp.Items) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(histResp.Items))
	}

	logPath := d.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	notifyResp, err := client.TestNotification()
	if err != nil {
		t.Fatalf("TestNotification failed: %v", err)
	}
	if notifyResp.Sent {
		t.Fatal("expected notification to be skipped without a topic")
	}
	if notifyResp.Message == "" {
		t.Fatal("expected notification message")
	}

	stopDaemon, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopDaemon.Stopped {
		t.Fatal("expected stop response to be true")
	}
}

func TestStopRPCRequestsProcessShutdown(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hist := testsupport.MustOpenHistory(t, cfg)
	logger := logging.NewNop()
	mgr := workflow.NewManager(cfg, store, hist, logger, noopStage{})
	d, err := daemon.New(cfg, store, hist, logger, mgr, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(cfg.Paths.DataDir, "cliptubed.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	select {
	case <-d.ShutdownRequested():
		t.Fatal("shutdown must not be requested before the stop RPC")
	default:
	}

	resp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !resp.Stopped {
		t.Fatal("expected stop to be acknowledged")
	}

	// An acknowledged stop must take the whole process down, otherwise a
	// later start would find the socket alive and skip relaunching.
	select {
	case <-d.ShutdownRequested():
	case <-time.After(2 * time.Second):
		t.Fatal("expected stop to request process shutdown")
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status after stop failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to report not running after stop")
	}
}
