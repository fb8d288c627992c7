package config

import (
	"fmt"
	"strings"
)

const (
	defaultDataDir           = "~/.local/share/cliptube"
	defaultLogDir            = "~/.local/share/cliptube/logs"
	defaultVideoDir          = "~/Videos"
	defaultAudioDir          = "~/Music"
	defaultVideoQuality      = "1080"
	defaultAudioQuality      = "best"
	defaultLanguage          = "en"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 30
	defaultPollIntervalMS    = 800
	defaultQueuePollInterval = 2
	defaultErrorRetry        = 10
	defaultRetryCeiling      = 3
	defaultHeartbeatInterval = 15
	defaultHeartbeatTimeout  = 120
	defaultToolTimeout       = 3600
	defaultNotifyTimeout     = 10
)

// VideoQualities lists the accepted video_quality values, lowest first.
var VideoQualities = []string{"360", "480", "720", "1080", "1440", "2160", "4320"}

// AudioQualities lists the accepted audio_quality values.
var AudioQualities = []string{"best", "good"}

// Languages lists the supported UI languages.
var Languages = []string{"en", "tr"}

// Default returns a Config populated with repository defaults.
func Default() *Config {
	return &Config{
		DownloadMP3:    true,
		DownloadVideo:  true,
		VideoQuality:   defaultVideoQuality,
		AudioQuality:   defaultAudioQuality,
		OutputVideoDir: defaultVideoDir,
		OutputAudioDir: defaultAudioDir,
		Language:       defaultLanguage,
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Watcher: Watcher{
			Enabled:        true,
			PollIntervalMS: defaultPollIntervalMS,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			RetryCeiling:       defaultRetryCeiling,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			ToolTimeout:        defaultToolTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			LinkDetected:   true,
			Downloads:      true,
			Queue:          true,
			Errors:         true,
		},
	}
}

func (c *Config) normalize() error {
	type pathField struct {
		name  string
		value *string
	}
	fields := []pathField{
		{"data_dir", &c.Paths.DataDir},
		{"log_dir", &c.Paths.LogDir},
		{"output_video_dir", &c.OutputVideoDir},
		{"output_audio_dir", &c.OutputAudioDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("expand %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	c.VideoQuality = strings.TrimSpace(c.VideoQuality)
	c.AudioQuality = strings.ToLower(strings.TrimSpace(c.AudioQuality))
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

// Validate checks configuration invariants and returns the first violation.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return fmt.Errorf("config validation: data_dir is required")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return fmt.Errorf("config validation: log_dir is required")
	}
	if !containsString(VideoQualities, c.VideoQuality) {
		return fmt.Errorf("config validation: video_quality %q not one of %s", c.VideoQuality, strings.Join(VideoQualities, ", "))
	}
	if !containsString(AudioQualities, c.AudioQuality) {
		return fmt.Errorf("config validation: audio_quality %q not one of %s", c.AudioQuality, strings.Join(AudioQualities, ", "))
	}
	if !containsString(Languages, c.Language) {
		return fmt.Errorf("config validation: language %q not one of %s", c.Language, strings.Join(Languages, ", "))
	}
	if !c.DownloadVideo && !c.DownloadMP3 {
		return fmt.Errorf("config validation: at least one of download_video or download_mp3 must be enabled")
	}
	if c.Watcher.PollIntervalMS <= 0 {
		return fmt.Errorf("config validation: watcher.poll_interval_ms must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return fmt.Errorf("config validation: workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return fmt.Errorf("config validation: workflow.error_retry_interval must be positive")
	}
	if c.Workflow.RetryCeiling < 1 || c.Workflow.RetryCeiling > 10 {
		return fmt.Errorf("config validation: workflow.retry_ceiling must be between 1 and 10")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return fmt.Errorf("config validation: workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return fmt.Errorf("config validation: workflow.heartbeat_timeout must exceed heartbeat_interval")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("config validation: logging.format %q not one of console, json", c.Logging.Format)
	}
	return nil
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
