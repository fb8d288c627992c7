package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed sample_config.json
var sampleConfig string

// Paths contains directory configuration for daemon state.
type Paths struct {
	DataDir string `json:"data_dir"`
	LogDir  string `json:"log_dir"`
}

// Watcher contains configuration for clipboard polling.
type Watcher struct {
	Enabled        bool `json:"enabled"`
	PollIntervalMS int  `json:"poll_interval_ms"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	QueuePollInterval  int `json:"queue_poll_interval"`
	ErrorRetryInterval int `json:"error_retry_interval"`
	RetryCeiling       int `json:"retry_ceiling"`
	HeartbeatInterval  int `json:"heartbeat_interval"`
	HeartbeatTimeout   int `json:"heartbeat_timeout"`
	ToolTimeout        int `json:"tool_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `json:"format"`
	Level         string `json:"level"`
	RetentionDays int    `json:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `json:"ntfy_topic"`
	RequestTimeout int    `json:"request_timeout"`
	LinkDetected   bool   `json:"link_detected"`
	Downloads      bool   `json:"downloads"`
	Queue          bool   `json:"queue"`
	Errors         bool   `json:"errors"`
}

// Tools contains external tool binary names.
type Tools struct {
	YtdlpBinary  string `json:"ytdlp_binary"`
	FFmpegBinary string `json:"ffmpeg_binary"`
}

// Config encapsulates all configuration values for cliptube.
//
// The top-level fields mirror the user-facing download settings; the
// nested sections configure daemon behavior:
//   - Paths: queue/history database and log directories
//   - Watcher: clipboard polling cadence
//   - Workflow: queue polling, retry ceiling, heartbeats
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - Tools: yt-dlp and ffmpeg binary names
type Config struct {
	DownloadMP3    bool   `json:"download_mp3"`
	DownloadVideo  bool   `json:"download_video"`
	VideoQuality   string `json:"video_quality"`
	AudioQuality   string `json:"audio_quality"`
	OutputVideoDir string `json:"output_video_dir"`
	OutputAudioDir string `json:"output_audio_dir"`
	Language       string `json:"language"`

	Paths         Paths         `json:"paths"`
	Watcher       Watcher       `json:"watcher"`
	Workflow      Workflow      `json:"workflow"`
	Logging       Logging       `json:"logging"`
	Notifications Notifications `json:"notifications"`
	Tools         Tools         `json:"tools"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cliptube/config.json")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The bool reports
// whether the file existed on disk.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := json.NewDecoder(file)
		if err := decoder.Decode(cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return cfg, resolvedPath, exists, nil
}

// Save writes the configuration as indented JSON using a temp-and-rename
// so a crash mid-write never truncates the settings file.
func (c *Config) Save(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(expanded); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp := expanded + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, expanded); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cliptube.json")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// Output directories are created on a best-effort basis so the daemon can
// start when external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	for _, dir := range []string{c.OutputVideoDir, c.OutputAudioDir} {
		if strings.TrimSpace(dir) != "" {
			_ = os.MkdirAll(dir, 0o755)
		}
	}
	return nil
}

// YtdlpBinary returns the yt-dlp executable name.
func (c *Config) YtdlpBinary() string {
	if name := strings.TrimSpace(c.Tools.YtdlpBinary); name != "" {
		return name
	}
	return "yt-dlp"
}

// FFmpegBinary returns the ffmpeg executable name used for merges and MP3 extraction.
func (c *Config) FFmpegBinary() string {
	if name := strings.TrimSpace(c.Tools.FFmpegBinary); name != "" {
		return name
	}
	return "ffmpeg"
}

// QueueDBPath returns the path of the queue database.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// HistoryDBPath returns the path of the history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// SocketPath returns the daemon control socket path.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "cliptubed.sock")
}

// LockPath returns the daemon single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "cliptubed.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
