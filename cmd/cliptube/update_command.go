package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cliptube/internal/updater"
)

func newUpdateToolCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-tool",
		Short: "Update the yt-dlp binary to its latest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			result, err := updater.New(cfg).Update(cmd.Context())
			if err != nil {
				return fmt.Errorf("update yt-dlp: %w", err)
			}

			out := cmd.OutOrStdout()
			if result.Updated {
				fmt.Fprintln(out, ctx.messages().T("update.updated", result.CurrentVersion))
			} else {
				fmt.Fprintln(out, ctx.messages().T("update.current", result.CurrentVersion))
			}
			return nil
		},
	}
}
