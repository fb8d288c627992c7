package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"cliptube/internal/daemonctl"
	"cliptube/internal/ipc"
	"cliptube/internal/queue"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the cliptube daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.AlreadyRunning {
				fmt.Fprintln(stdout, ctx.messages().T("daemon.already_running"))
				return nil
			}
			fmt.Fprintln(stdout, ctx.messages().T("daemon.started"))
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the cliptube daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, ctx.messages().T("daemon.not_running"))
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, ctx.messages().T("daemon.stopped"))
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the cliptube daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			stopResult, stopErr := daemonctl.StopAndTerminate(ctx.socketPath(), 5*time.Second)
			if stopErr != nil && !errors.Is(stopErr, daemonctl.ErrDaemonNotRunning) {
				return stopErr
			}
			if stopErr == nil {
				if stopResult.ForcedKill && stopResult.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", stopResult.PID)
				}
				fmt.Fprintln(stdout, ctx.messages().T("daemon.stopped"))
			}

			if _, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, ctx.messages().T("daemon.started"))
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(ctx, cmd)
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStatus(ctx *commandContext, cmd *cobra.Command) error {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	status := fetchStatus(ctx)

	fmt.Fprintln(stdout, sectionHeader("Daemon", colorize))
	if status != nil && status.Running {
		fmt.Fprintln(stdout, statusLine("Cliptube", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
		if status.LastError != "" {
			fmt.Fprintln(stdout, statusLine("Last error", statusWarn, status.LastError, colorize))
		}
		if status.LastJob != nil {
			detail := fmt.Sprintf("#%d %s (%s)", status.LastJob.ID, status.LastJob.Title, status.LastJob.Status)
			fmt.Fprintln(stdout, statusLine("Last job", statusOK, detail, colorize))
		}
		health := status.StageHealth
		if health.Ready {
			fmt.Fprintln(stdout, statusLine("Downloader", statusOK, "Ready", colorize))
		} else {
			fmt.Fprintln(stdout, statusLine("Downloader", statusWarn, health.Detail, colorize))
		}
	} else {
		fmt.Fprintln(stdout, statusLine("Cliptube", statusWarn, "Not running (run `cliptube start`)", colorize))
	}

	cfg := ctx.configValue()
	if cfg != nil {
		if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
			fmt.Fprintln(stdout, statusLine("Notifications", statusOK, "Configured", colorize))
		} else {
			fmt.Fprintln(stdout, statusLine("Notifications", statusWarn, "Not configured", colorize))
		}
		fmt.Fprintln(stdout, statusLine("Clipboard watcher", statusOK, yesNo(cfg.Watcher.Enabled), colorize))
	}

	if status != nil && len(status.Dependencies) > 0 {
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, sectionHeader("Dependencies", colorize))
		for _, dep := range status.Dependencies {
			if dep.Available {
				message := "Ready"
				if dep.Command != "" {
					message = fmt.Sprintf("Ready (command: %s)", dep.Command)
				}
				fmt.Fprintln(stdout, statusLine(dep.Name, statusOK, message, colorize))
				continue
			}
			detail := strings.TrimSpace(dep.Detail)
			if detail == "" {
				detail = "not available"
			}
			fmt.Fprintln(stdout, statusLine(dep.Name, statusError, detail, colorize))
		}
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, sectionHeader("Queue", colorize))
	stats := queueStats(ctx, status)
	rows := buildQueueStatusRows(stats)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, ctx.messages().T("queue.empty"))
		return nil
	}
	fmt.Fprintln(stdout, renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight}))
	return nil
}

// fetchStatus returns nil when the daemon is unreachable.
func fetchStatus(ctx *commandContext) *ipc.StatusResponse {
	client, err := ipc.Dial(ctx.socketPath())
	if err != nil {
		return nil
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return nil
	}
	return status
}

// queueStats prefers the daemon's view and falls back to the database when
// the daemon is down.
func queueStats(ctx *commandContext, status *ipc.StatusResponse) map[string]int {
	if status != nil && len(status.QueueStats) > 0 {
		return status.QueueStats
	}
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return nil
	}
	defer store.Close()
	stats, err := store.Stats(context.Background())
	if err != nil {
		return nil
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	known := queue.AllStatuses()
	seen := make(map[string]bool, len(known))
	rows := make([][]string, 0, len(stats))
	for _, status := range known {
		key := string(status)
		seen[key] = true
		if count, ok := stats[key]; ok && count > 0 {
			rows = append(rows, []string{key, strconv.Itoa(count)})
		}
	}
	extras := make([]string, 0)
	for key := range stats {
		if !seen[key] && stats[key] > 0 {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		rows = append(rows, []string{key, strconv.Itoa(stats[key])})
	}
	return rows
}

type statusKind int

const (
	statusOK statusKind = iota
	statusWarn
	statusError
)

func sectionHeader(title string, colorize bool) string {
	if colorize {
		return text.Bold.Sprint(title)
	}
	return title
}

func statusLine(label string, kind statusKind, detail string, colorize bool) string {
	marker := "•"
	if colorize {
		switch kind {
		case statusOK:
			marker = text.FgGreen.Sprint("●")
		case statusWarn:
			marker = text.FgYellow.Sprint("●")
		case statusError:
			marker = text.FgRed.Sprint("●")
		}
	}
	return fmt.Sprintf("  %s %s: %s", marker, label, detail)
}

// daemonExecutable locates the cliptubed binary, preferring the one
// installed alongside the CLI.
func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	sibling := filepath.Join(filepath.Dir(exe), "cliptubed")
	if _, statErr := os.Stat(sibling); statErr == nil {
		return sibling, nil
	}
	found, lookErr := exec.LookPath("cliptubed")
	if lookErr != nil {
		return "", fmt.Errorf("locate cliptubed binary: %w", lookErr)
	}
	return found, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
