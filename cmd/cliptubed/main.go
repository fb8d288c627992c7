package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"cliptube/internal/config"
	"cliptube/internal/daemon"
	"cliptube/internal/history"
	"cliptube/internal/ipc"
	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	pruneOldLogs(cfg, logger)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return
	}

	hist, err := history.Open(cfg)
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		_ = store.Close()
		return
	}

	workflowManager := buildWorkflow(cfg, store, hist, logger)

	d, err := daemon.New(cfg, store, hist, logger, workflowManager, nil)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		return
	}
	defer d.Close()
	d.AttachWatcher(watcher.New(cfg, logger, d))

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		logger.Error("start IPC server", logging.Error(err))
		return
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(ctx); err != nil {
		logger.Error("daemon start", logging.Error(err))
		return
	}

	select {
	case <-ctx.Done():
	case <-d.ShutdownRequested():
	}
	logger.Info("cliptubed shutting down")
}
