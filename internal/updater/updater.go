// Package updater runs yt-dlp's self-update and reports version changes.
package updater

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"cliptube/internal/config"
	"cliptube/internal/services"
)

// Result describes the outcome of an update run.
type Result struct {
	PreviousVersion string
	CurrentVersion  string
	Updated         bool
	Output          string
}

// Updater wraps yt-dlp's -U flag.
type Updater struct {
	binary  string
	timeout time.Duration
}

// New builds an updater from config.
func New(cfg *config.Config) *Updater {
	updater := &Updater{binary: "yt-dlp", timeout: 10 * time.Minute}
	if cfg != nil {
		updater.binary = cfg.YtdlpBinary()
		if timeout := time.Duration(cfg.Workflow.ToolTimeout) * time.Second; timeout > 0 {
			updater.timeout = timeout
		}
	}
	return updater
}

// Version reports the installed yt-dlp version.
func (u *Updater) Version(ctx context.Context) (string, error) {
	output, err := u.runCommand(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// Update runs yt-dlp -U and compares versions before and after.
func (u *Updater) Update(ctx context.Context) (*Result, error) {
	previous, err := u.Version(ctx)
	if err != nil {
		return nil, err
	}

	output, err := u.runCommand(ctx, "-U")
	if err != nil {
		return nil, err
	}

	current, err := u.Version(ctx)
	if err != nil {
		return nil, err
	}

	return &Result{
		PreviousVersion: previous,
		CurrentVersion:  current,
		Updated:         previous != current,
		Output:          strings.TrimSpace(output),
	}, nil
}

func (u *Updater) runCommand(ctx context.Context, args ...string) (string, error) {
	runCtx := ctx
	if u.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, u.binary, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return "", services.Wrap(services.ErrTimeout, "updater", strings.Join(args, " "), "yt-dlp did not finish in time", runCtx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "yt-dlp failed"
		}
		return "", services.Wrap(services.ErrExternalTool, "updater", strings.Join(args, " "), detail, err)
	}
	return stdout.String(), nil
}
