package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"cliptube/internal/ipc"
)

func newTestNotifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification through the configured ntfy topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TestNotification()
				if err != nil {
					return fmt.Errorf("send test notification: %w", err)
				}
				if !resp.Sent {
					if resp.Message != "" {
						return fmt.Errorf("test notification not sent: %s", resp.Message)
					}
					return fmt.Errorf("test notification not sent")
				}
				fmt.Fprintln(cmd.OutOrStdout(), ctx.messages().T("notify.sent"))
				return nil
			})
		},
	}
}
