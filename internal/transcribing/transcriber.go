package transcribing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/queue"
	"vigil/internal/services"
	"vigil/internal/services/whisper"
	"vigil/internal/stage"
	"vigil/internal/transcript"
)

// Transcriber converts footage into a normalized transcript artifact using the
// local whisper backend.
type Transcriber struct {
	cfg     *config.Config
	store   *queue.Store
	logger  *slog.Logger
	service *whisper.Service
}

// New constructs the transcription stage handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Transcriber {
	if logger == nil {
		logger = logging.NewNop()
	}
	service := whisper.NewService(whisper.Config{
		Binary:       cfg.Transcriber.Binary,
		ModelPath:    cfg.Transcriber.ModelPath,
		FFmpegBinary: cfg.Transcriber.FFmpegBinary,
		Language:     cfg.Transcriber.Language,
	})
	return &Transcriber{cfg: cfg, store: store, logger: logger, service: service}
}

// Service exposes the underlying whisper service so tests can install a
// command runner stub.
func (t *Transcriber) Service() *whisper.Service {
	return t.service
}

func (t *Transcriber) Prepare(ctx context.Context, run *queue.Run) error {
	source := strings.TrimSpace(run.SourcePath)
	if source == "" {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", "run has no source path", nil)
	}
	info, err := os.Stat(source)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", fmt.Sprintf("source footage %s is not readable", source), err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "transcriber", "prepare", fmt.Sprintf("source footage %s is a directory", source), nil)
	}
	run.SetProgress("Transcribing", "Extracting audio track", 5)
	return nil
}

func (t *Transcriber) Execute(ctx context.Context, run *queue.Run) error {
	workDir := t.runWorkDir(run)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcriber", "staging", "could not create staging directory", err)
	}

	wavPath := filepath.Join(workDir, "audio.wav")
	if err := t.service.ExtractAudio(ctx, run.SourcePath, wavPath); err != nil {
		return services.Wrap(services.ErrExternalTool, "transcriber", "extract audio", "ffmpeg failed", err)
	}
	run.AudioFile = wavPath

	run.SetProgress("Transcribing", "Running speech recognition", 25)
	if err := t.store.Update(ctx, run); err != nil {
		return fmt.Errorf("persist transcription progress: %w", err)
	}

	utterances, err := t.service.Transcribe(ctx, wavPath, workDir)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "transcriber", "transcribe", "speech recognition failed", err)
	}

	payload, err := transcript.Marshal(utterances)
	if err != nil {
		return services.Wrap(services.ErrValidation, "transcriber", "transcribe", "could not encode transcript", err)
	}
	run.TranscriptJSON = payload

	logger := logging.WithContext(ctx, t.logger)
	if len(utterances) == 0 {
		// Silent footage still flows through the pipeline and yields an
		// empty report rather than an error.
		logger.Warn("transcript contains no speech", logging.Int64(logging.FieldRunID, run.ID))
	}
	logger.Info("transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("utterances", len(utterances)),
	)
	run.SetProgress("Transcribing", "Transcript ready", 100)
	return nil
}

func (t *Transcriber) HealthCheck(ctx context.Context) stage.Health {
	if err := t.service.HealthCheck(); err != nil {
		return stage.Unhealthy("transcriber", err.Error())
	}
	if strings.TrimSpace(t.cfg.Transcriber.ModelPath) == "" {
		return stage.Unhealthy("transcriber", "transcriber.model_path is not configured")
	}
	if _, err := os.Stat(t.cfg.Transcriber.ModelPath); err != nil {
		return stage.Unhealthy("transcriber", fmt.Sprintf("whisper model missing: %v", err))
	}
	return stage.Healthy("transcriber")
}

func (t *Transcriber) runWorkDir(run *queue.Run) string {
	return filepath.Join(t.cfg.Paths.StagingDir, fmt.Sprintf("run-%d", run.ID))
}
