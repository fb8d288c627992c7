package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"cliptube/internal/history"
	"cliptube/internal/ipc"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show completed downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := fetchHistory(ctx, cmd, limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ctx.messages().T("history.empty"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Kind", "Title", "Destination", "Completed"},
				buildHistoryRows(items),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries to show")
	return cmd
}

func fetchHistory(ctx *commandContext, cmd *cobra.Command, limit int) ([]ipc.HistoryItem, error) {
	client, err := ctx.dialClient()
	if err == nil {
		defer client.Close()
		resp, listErr := client.HistoryList(limit)
		if listErr != nil {
			return nil, listErr
		}
		return resp.Items, nil
	}

	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	store, openErr := history.Open(cfg)
	if openErr != nil {
		return nil, fmt.Errorf("open history store: %w", openErr)
	}
	defer store.Close()

	entries, recentErr := store.Recent(cmd.Context(), limit)
	if recentErr != nil {
		return nil, recentErr
	}
	items := make([]ipc.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, ipc.FromHistoryEntry(entry))
	}
	return items, nil
}

func buildHistoryRows(items []ipc.HistoryItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		completed := item.CompletedAt
		if ts, err := time.Parse(time.RFC3339, item.CompletedAt); err == nil {
			completed = ts.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Kind,
			item.Title,
			item.DestinationPath,
			completed,
		})
	}
	return rows
}
