package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cliptube/internal/services"
)

func TestNewWritesPrettyLinesToFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "cliptubed.log")

	logger, err := New(Options{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	logger = NewComponentLogger(logger, "watcher")
	logger.Info("link detected", String(FieldURL, "https://www.youtube.com/watch?v=abc123def45"))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "INFO watcher: link detected") {
		t.Fatalf("unexpected log line: %q", line)
	}
	if !strings.Contains(line, "url=") {
		t.Fatalf("expected url attribute in %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestDailyLogPathUsesUTCDate(t *testing.T) {
	at := time.Date(2025, 3, 9, 23, 30, 0, 0, time.UTC)
	got := DailyLogPath("/var/log/cliptube", at)
	want := filepath.Join("/var/log/cliptube", "cliptubed_20250309.log")
	if got != want {
		t.Fatalf("DailyLogPath = %q, want %q", got, want)
	}
}

func TestContextFieldsCarryJobAndStage(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 7)
	ctx = services.WithStage(ctx, "download")
	ctx = services.WithRequestID(ctx, "req-42")

	fields := ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, field := range fields {
		keys[field.Key] = true
	}
	for _, want := range []string{FieldJobID, FieldStage, FieldCorrelationID} {
		if !keys[want] {
			t.Fatalf("missing field %s in %v", want, keys)
		}
	}
}

func TestCleanupOldLogsPrunesByAge(t *testing.T) {
	dir := t.TempDir()
	oldFile := filepath.Join(dir, "cliptubed_20200101.log")
	newFile := filepath.Join(dir, "cliptubed_today.log")
	for _, path := range []string{oldFile, newFile} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	past := time.Now().AddDate(0, 0, -60)
	if err := os.Chtimes(oldFile, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), 30, RetentionTarget{Dir: dir, Pattern: "cliptubed_*.log", Exclude: []string{newFile}})

	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Fatalf("expected old log pruned, stat err=%v", err)
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Fatalf("expected excluded log kept: %v", err)
	}
}
