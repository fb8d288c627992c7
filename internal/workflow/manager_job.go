package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/services"
)

const stageName = "download"

func (m *Manager) processJob(ctx context.Context, job *queue.Job) error {
	requestID := uuid.NewString()
	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithStage(jobCtx, stageName)
	jobCtx = services.WithRequestID(jobCtx, requestID)
	jobCtx, cancel := context.WithCancel(jobCtx)
	defer cancel()

	m.setActiveJob(job.ID, cancel)
	defer m.clearActiveJob(job.ID)

	logger := logging.WithContext(jobCtx, m.logger)

	if err := m.transitionToActive(jobCtx, job); err != nil {
		logger.Error("failed to transition job to active", logging.Error(err))
		m.setLastError(err)
		return err
	}
	m.markQueueStarted()

	logger.Info("download started",
		logging.String(logging.FieldEventType, "download_start"),
		logging.String(logging.FieldURL, job.URL),
		logging.String(logging.FieldKind, string(job.Kind)),
		logging.Int("attempt", job.Attempts),
	)
	if err := m.notifier.NotifyDownloadStarted(jobCtx, job); err != nil {
		logger.Debug("start notification failed", logging.Error(err))
	}

	start := time.Now()

	if err := m.handler.Prepare(jobCtx, job); err != nil {
		if stopped := m.finishInterrupted(ctx, jobCtx, job, err); stopped {
			return err
		}
		m.handleJobFailure(ctx, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(jobCtx, job); err != nil {
		wrapped := fmt.Errorf("persist job preparation: %w", err)
		logger.Error("failed to persist job preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(jobCtx, job)
	if execErr != nil {
		if stopped := m.finishInterrupted(ctx, jobCtx, job, execErr); stopped {
			return execErr
		}
		m.handleJobFailure(ctx, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	job.Status = queue.StatusDone
	job.ErrorMessage = ""
	job.LastHeartbeat = nil
	job.SetProgress(100, "Download complete")
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist job result: %w", err)
		logger.Error("failed to persist job result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	if m.history != nil {
		if _, err := m.history.Append(ctx, job); err != nil {
			logger.Warn("history append failed; download finished anyway",
				logging.Error(err),
				logging.String(logging.FieldEventType, "history_append_failed"),
				logging.String(logging.FieldErrorHint, "check history database access"),
			)
		}
	}

	logger.Info("download complete",
		logging.String(logging.FieldEventType, "download_complete"),
		logging.String("destination", job.DestinationPath),
		logging.Int("attempt", job.Attempts),
		logging.Duration("download_duration", time.Since(start)),
	)
	if err := m.notifier.NotifyDownloadCompleted(ctx, job); err != nil {
		logger.Debug("completion notification failed", logging.Error(err))
	}

	m.setLastJob(job)
	m.recordOutcome(true)
	m.checkQueueCompletion(ctx)
	return nil
}

// finishInterrupted handles the two cancellation paths: daemon shutdown
// leaves the job active for recovery on restart, a user stop marks it failed.
func (m *Manager) finishInterrupted(ctx, jobCtx context.Context, job *queue.Job, err error) bool {
	if jobCtx.Err() == nil && !errors.Is(err, context.Canceled) {
		return false
	}

	if m.consumeUserStop(job.ID) {
		job.SetFailed(queue.UserStopReason)
		if updateErr := m.store.Update(ctx, job); updateErr != nil {
			m.logger.Error("failed to persist user stop", logging.Error(updateErr))
		}
		m.setLastJob(job)
		m.recordOutcome(false)
		return true
	}

	if ctx.Err() != nil {
		// Daemon shutdown; ResetStuckActive reclaims the job on next start.
		m.logger.Debug("download interrupted by shutdown", logging.Int64(logging.FieldJobID, job.ID))
		return true
	}
	return false
}

func (m *Manager) executeWithHeartbeat(ctx context.Context, job *queue.Job) error {
	execCtx := ctx
	var timeoutCancel context.CancelFunc
	if timeout := time.Duration(m.cfg.Workflow.ToolTimeout) * time.Second; timeout > 0 {
		execCtx, timeoutCancel = context.WithTimeout(ctx, timeout)
		defer timeoutCancel()
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	execErr := m.handler.Execute(execCtx, job)
	hbCancel()
	hbWG.Wait()
	return execErr
}

func (m *Manager) transitionToActive(ctx context.Context, job *queue.Job) error {
	now := time.Now().UTC()
	job.Status = queue.StatusActive
	job.Attempts++
	job.ErrorMessage = ""
	job.SetProgress(0, "Download started")
	job.LastHeartbeat = &now

	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist active transition: %w", err)
	}
	if err := m.store.UpdateHeartbeat(ctx, job.ID); err != nil {
		return fmt.Errorf("persist active heartbeat: %w", err)
	}
	m.setLastJob(job)
	return nil
}

func (m *Manager) setActiveJob(id int64, cancel context.CancelFunc) {
	m.mu.Lock()
	m.activeJobID = id
	m.activeCancel = cancel
	m.mu.Unlock()
}

func (m *Manager) clearActiveJob(id int64) {
	m.mu.Lock()
	if m.activeJobID == id {
		m.activeJobID = 0
		m.activeCancel = nil
	}
	m.mu.Unlock()
}

func (m *Manager) consumeUserStop(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userStopped[id] {
		delete(m.userStopped, id)
		return true
	}
	return false
}

func (m *Manager) markQueueStarted() {
	m.mu.Lock()
	if !m.queueActive {
		m.queueActive = true
		m.queueStart = time.Now()
		m.processed = 0
		m.failed = 0
	}
	m.mu.Unlock()
}

func (m *Manager) recordOutcome(success bool) {
	m.mu.Lock()
	if success {
		m.processed++
	} else {
		m.failed++
	}
	m.mu.Unlock()
}

func (m *Manager) checkQueueCompletion(ctx context.Context) {
	health, err := m.store.Health(ctx)
	if err != nil {
		m.logger.Debug("queue completion check failed", logging.Error(err))
		return
	}
	if health.Queued+health.Retrying+health.Active > 0 {
		return
	}

	m.mu.Lock()
	if !m.queueActive {
		m.mu.Unlock()
		return
	}
	m.queueActive = false
	processed := m.processed
	failed := m.failed
	duration := time.Since(m.queueStart)
	m.mu.Unlock()

	if err := m.notifier.NotifyQueueCompleted(ctx, processed, failed, duration); err != nil {
		m.logger.Debug("queue completion notification failed", logging.Error(err))
	}
}
