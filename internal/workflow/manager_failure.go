package workflow

import (
	"context"
	"errors"
	"strings"

	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/services"
)

// handleJobFailure decides between another attempt and giving up. Retryable
// errors park the job as retrying until the retry ceiling is reached;
// terminal errors fail immediately.
func (m *Manager) handleJobFailure(ctx context.Context, job *queue.Job, jobErr error) {
	logger := m.logger.With(logging.Int64(logging.FieldJobID, job.ID))
	message := failureMessage(jobErr)

	retryable := services.Retryable(jobErr)
	ceiling := m.cfg.Workflow.RetryCeiling

	if retryable && job.Attempts < ceiling {
		job.SetRetrying(message)
		logger.Warn("download failed; will retry",
			logging.Error(jobErr),
			logging.String(logging.FieldEventType, "download_retry"),
			logging.Int("attempt", job.Attempts),
			logging.Int("retry_ceiling", ceiling),
			logging.String(logging.FieldErrorHint, "job returns to the queue automatically"),
		)
	} else {
		job.SetFailed(message)
		reason := "not retryable"
		if retryable {
			reason = "retry ceiling reached"
		}
		logger.Error("download failed permanently",
			logging.Error(jobErr),
			logging.String(logging.FieldEventType, "download_failed"),
			logging.Int("attempt", job.Attempts),
			logging.String("reason", reason),
			logging.String(logging.FieldErrorHint, "run 'cliptube queue retry' to try again"),
		)
		if err := m.notifier.NotifyDownloadFailed(ctx, job, message); err != nil {
			logger.Debug("failure notification failed", logging.Error(err))
		}
		m.recordOutcome(false)
	}

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist job failure")
		} else {
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}

	m.setLastJob(job)
	if job.Status == queue.StatusFailed {
		m.checkQueueCompletion(ctx)
	}
}

func failureMessage(err error) string {
	if err == nil {
		return "download failed without error detail"
	}
	message := strings.TrimSpace(err.Error())
	if message == "" {
		return "download failed"
	}
	return message
}
