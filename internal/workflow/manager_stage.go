package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigil/internal/logging"
	"vigil/internal/queue"
	"vigil/internal/services"
)

func (m *Manager) processRun(ctx context.Context, run *queue.Run) error {
	stg, ok := m.stageByStart[run.Status]
	if !ok {
		m.logger.Warn("no stage configured for status", logging.String("status", string(run.Status)))
		m.waitForRunOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := services.WithRequestID(services.WithStage(services.WithRunID(ctx, run.ID), stg.name), requestID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	if err := m.transitionToProcessing(stageCtx, stg, run); err != nil {
		stageLogger.Error("failed to transition run to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, run)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, run *queue.Run) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", strings.TrimSpace(run.Title)),
		logging.String("source_file", strings.TrimSpace(run.SourcePath)),
	)

	if err := stg.handler.Prepare(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			m.failInterruptedRun(stageLogger, run)
			return err
		}
		m.handleStageFailure(ctx, stg.name, run, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, run); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	if execErr := stg.handler.Execute(ctx, run); execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			m.failInterruptedRun(stageLogger, run)
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, run, execErr)
		m.setLastError(execErr)
		return execErr
	}

	if run.Status == stg.processingStatus || run.Status == "" {
		run.Status = stg.doneStatus
	}
	if run.Status == queue.StatusCompleted {
		if run.ProgressPercent < 100 {
			run.ProgressPercent = 100
		}
		run.ProgressStage = deriveStageLabel(queue.StatusCompleted)
		if strings.TrimSpace(run.ProgressMessage) == "" {
			run.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, run); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(run.Status)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastRun(run)
	return nil
}

func (m *Manager) transitionToProcessing(ctx context.Context, stg pipelineStage, run *queue.Run) error {
	run.Status = stg.processingStatus
	run.InitProgress(deriveStageLabel(stg.processingStatus), fmt.Sprintf("%s started", deriveStageLabel(stg.processingStatus)))
	if err := m.store.Update(ctx, run); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastRun(run)
	return nil
}

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, run *queue.Run, stageErr error) {
	message := services.Details(stageErr)
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	run.SetFailed(message)

	logger := logging.WithContext(ctx, m.logger)
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", message),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, run); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastRun(run)
}

// failInterruptedRun persists a cancellation as a failed run using a fresh
// context, since the run context is already dead. Stage artifacts and any
// verdicts written before the cancellation stay in place.
func (m *Manager) failInterruptedRun(stageLogger *slog.Logger, run *queue.Run) {
	run.SetFailed("run cancelled")

	persistCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Update(persistCtx, run); err != nil {
		stageLogger.Error("failed to persist cancelled run", logging.Error(err))
		return
	}
	stageLogger.Info("run cancelled; partial progress preserved",
		logging.String(logging.FieldEventType, "stage_failure"))
	m.setLastRun(run)
}

func deriveStageLabel(status queue.Status) string {
	switch status {
	case queue.StatusTranscribing:
		return "Transcribing"
	case queue.StatusSegmenting:
		return "Segmenting"
	case queue.StatusAnalyzing:
		return "Analyzing"
	case queue.StatusAggregating:
		return "Aggregating"
	case queue.StatusCompleted:
		return "Completed"
	case queue.StatusFailed:
		return "Failed"
	default:
		return string(status)
	}
}
