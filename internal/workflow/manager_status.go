package workflow

import (
	"context"
	"fmt"

	"cliptube/internal/logging"
	"cliptube/internal/queue"
	"cliptube/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{Running: running, QueueStats: stats}
	if m.handler != nil {
		summary.StageHealth = m.handler.HealthCheck(ctx)
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copied := *lastJob
		summary.LastJob = &copied
	}
	return summary
}

// StopJob aborts the currently running job if it matches id. Queued or
// retrying jobs are failed in place.
func (m *Manager) StopJob(ctx context.Context, id int64) error {
	m.mu.Lock()
	if m.activeJobID == id && m.activeCancel != nil {
		m.userStopped[id] = true
		cancel := m.activeCancel
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.mu.Unlock()

	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %d not found", id)
	}
	if job.Status.IsTerminal() {
		return fmt.Errorf("job %d already %s", id, job.Status)
	}
	job.SetFailed(queue.UserStopReason)
	return m.store.Update(ctx, job)
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copied := *job
		m.lastJob = &copied
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
