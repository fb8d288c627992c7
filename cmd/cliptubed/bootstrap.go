package main

import (
	"log/slog"

	"cliptube/internal/config"
	"cliptube/internal/download"
	"cliptube/internal/history"
	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/workflow"
)

func buildWorkflow(cfg *config.Config, store *queue.Store, hist *history.Store, logger *slog.Logger) *workflow.Manager {
	client := download.NewClient(cfg)
	handler := download.NewStage(cfg, store, logger, client)
	return workflow.NewManager(cfg, store, hist, logger, handler)
}

func pruneOldLogs(cfg *config.Config, logger *slog.Logger) {
	if cfg == nil || cfg.Logging.RetentionDays <= 0 {
		return
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "cliptubed_*.log",
	})
}
