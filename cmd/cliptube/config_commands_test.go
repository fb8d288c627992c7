package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cliptube/internal/config"
)

func TestConfigShowPrintsJSON(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if _, ok := decoded["video_quality"]; !ok {
		t.Fatalf("expected video_quality key in output, got: %s", out)
	}
}

func TestConfigSetUpdatesValue(t *testing.T) {
	env := setupOfflineEnv(t)

	out, _, err := runCLI(t, []string{"config", "set", "video_quality", "720"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config set: %v", err)
	}
	requireContains(t, out, "Wrote configuration to")

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.VideoQuality != "720" {
		t.Fatalf("expected video_quality 720, got %q", cfg.VideoQuality)
	}
}

func TestConfigSetBooleanValue(t *testing.T) {
	env := setupOfflineEnv(t)

	if _, _, err := runCLI(t, []string{"config", "set", "download_mp3", "false"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("config set: %v", err)
	}

	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if cfg.DownloadMP3 {
		t.Fatal("expected download_mp3 to be false")
	}
}

func TestConfigSetRejectsUnknownKey(t *testing.T) {
	env := setupOfflineEnv(t)

	_, _, err := runCLI(t, []string{"config", "set", "no_such_key", "1"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "unknown configuration key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestConfigSetRejectsBadBoolean(t *testing.T) {
	env := setupOfflineEnv(t)

	_, _, err := runCLI(t, []string{"config", "set", "download_video", "maybe"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "must be true or false") {
		t.Fatalf("expected boolean parse error, got %v", err)
	}
}

func TestConfigInitCreatesSample(t *testing.T) {
	env := setupOfflineEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.json")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote configuration to")
	if !fileExists(target) {
		t.Fatalf("expected sample config at %s", target)
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, env.socketPath, "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected overwrite guard, got %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, env.socketPath, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigPathSkipsConfigLoad(t *testing.T) {
	env := setupOfflineEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	out, _, err := runCLI(t, []string{"config", "path"}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if !strings.Contains(out, "cliptube") {
		t.Fatalf("expected cliptube config path, got %q", out)
	}
	if _, err := os.Stat(strings.TrimSpace(out)); err == nil {
		t.Log("config file already present, command still only prints the path")
	}
}
