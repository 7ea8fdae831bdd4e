package workflow

import (
	"context"

	"vigil/internal/queue"
	"vigil/internal/stage"
)

// StatusSummary captures a point-in-time view of the workflow.
type StatusSummary struct {
	Running    bool
	LastError  error
	LastRun    *queue.Run
	QueueStats map[queue.Status]int
	Health     []stage.Health
}

// Status reports the manager's current state, queue counts, and the
// readiness of each configured stage handler.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		Running:   m.running,
		LastError: m.lastErr,
	}
	if m.lastRun != nil {
		runCopy := *m.lastRun
		summary.LastRun = &runCopy
	}
	stages := make([]pipelineStage, len(m.stages))
	copy(stages, m.stages)
	m.mu.RUnlock()

	if stats, err := m.store.Stats(ctx); err == nil {
		summary.QueueStats = stats
	}
	for _, stg := range stages {
		summary.Health = append(summary.Health, stg.handler.HealthCheck(ctx))
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastRun(run *queue.Run) {
	if run == nil {
		return
	}
	runCopy := *run
	m.mu.Lock()
	m.lastRun = &runCopy
	m.mu.Unlock()
}
