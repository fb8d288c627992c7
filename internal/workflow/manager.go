package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"cliptube/internal/config"
	"cliptube/internal/history"
	"cliptube/internal/logging"
	"cliptube/internal/notifications"
	"cliptube/internal/queue"
	"cliptube/internal/stage"
)

// Manager coordinates queue processing through the download stage.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	history      *history.Store
	logger       *slog.Logger
	notifier     notifications.Service
	handler      stage.Handler
	pollInterval time.Duration

	heartbeat *HeartbeatMonitor

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job

	activeJobID  int64
	activeCancel context.CancelFunc
	userStopped  map[int64]bool

	queueActive bool
	queueStart  time.Time
	processed   int
	failed      int
}

// NewManager constructs a workflow manager with the default notifier.
func NewManager(cfg *config.Config, store *queue.Store, hist *history.Store, logger *slog.Logger, handler stage.Handler) *Manager {
	return NewManagerWithNotifier(cfg, store, hist, logger, handler, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, hist *history.Store, logger *slog.Logger, handler stage.Handler, notifier notifications.Service) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		history:      hist,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		notifier:     notifier,
		handler:      handler,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		userStopped: make(map[int64]bool),
	}
}
