package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cliptube/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))
	configCmd.AddCommand(newConfigPathCommand())
	configCmd.AddCommand(newConfigInitCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
			return nil
		},
	}
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Update a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if ctx.configFlag != nil {
				configPath = strings.TrimSpace(*ctx.configFlag)
			}
			cfg, path, _, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if err := applyConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%s", ctx.messages().T("config.invalid", err.Error()))
			}
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ctx.messages().T("config.written", path))
			return nil
		},
	}
}

// applyConfigValue maps the user-facing setting keys onto config fields. Keys
// match the JSON names so `config show` output doubles as documentation.
func applyConfigValue(cfg *config.Config, key, value string) error {
	parseBool := func() (bool, error) {
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return false, fmt.Errorf("value for %s must be true or false", key)
		}
		return parsed, nil
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "download_mp3":
		parsed, err := parseBool()
		if err != nil {
			return err
		}
		cfg.DownloadMP3 = parsed
	case "download_video":
		parsed, err := parseBool()
		if err != nil {
			return err
		}
		cfg.DownloadVideo = parsed
	case "video_quality":
		cfg.VideoQuality = strings.TrimSpace(value)
	case "audio_quality":
		cfg.AudioQuality = strings.TrimSpace(value)
	case "output_video_dir":
		cfg.OutputVideoDir = strings.TrimSpace(value)
	case "output_audio_dir":
		cfg.OutputAudioDir = strings.TrimSpace(value)
	case "language":
		cfg.Language = strings.TrimSpace(value)
	case "watcher.enabled":
		parsed, err := parseBool()
		if err != nil {
			return err
		}
		cfg.Watcher.Enabled = parsed
	case "notifications.ntfy_topic":
		cfg.Notifications.NtfyTopic = strings.TrimSpace(value)
	case "logging.level":
		cfg.Logging.Level = strings.TrimSpace(value)
	case "logging.format":
		cfg.Logging.Format = strings.TrimSpace(value)
	default:
		return fmt.Errorf("unknown configuration key %q", key)
	}
	return nil
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the configuration file location",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), ctx.messages().T("config.written", target))
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}
