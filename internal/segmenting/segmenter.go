package segmenting

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/queue"
	"vigil/internal/segment"
	"vigil/internal/services"
	"vigil/internal/stage"
	"vigil/internal/transcript"
)

// Segmenter is the pipeline stage that windows a transcript into overlapping
// analysis segments.
type Segmenter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New constructs the segmentation stage handler.
func New(cfg *config.Config, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Segmenter{cfg: cfg, logger: logger}
}

func (s *Segmenter) Prepare(_ context.Context, run *queue.Run) error {
	if strings.TrimSpace(run.TranscriptJSON) == "" {
		return services.Wrap(services.ErrValidation, "segmenter", "prepare", "run has no transcript artifact", nil)
	}
	run.SetProgress("Segmenting", "Windowing transcript", 10)
	return nil
}

func (s *Segmenter) Execute(ctx context.Context, run *queue.Run) error {
	utterances, err := transcript.Unmarshal(run.TranscriptJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "segmenter", "decode transcript", "transcript artifact is corrupt", err)
	}

	seg, err := s.newSegmenter()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "segmenter", "configure", "invalid windowing parameters", err)
	}

	segments := seg.Plan(utterances)
	payload, err := segment.Marshal(segments)
	if err != nil {
		return services.Wrap(services.ErrValidation, "segmenter", "encode segments", "could not encode segment plan", err)
	}
	run.SegmentsJSON = payload

	logging.WithContext(ctx, s.logger).Info("segmentation complete",
		logging.String(logging.FieldEventType, "segmentation_complete"),
		logging.Int("segments", len(segments)),
		logging.Duration("window", seg.Target()),
		logging.Duration("overlap", seg.Overlap()),
	)
	run.SetProgress("Segmenting", "Segment plan ready", 100)
	return nil
}

func (s *Segmenter) HealthCheck(context.Context) stage.Health {
	if _, err := s.newSegmenter(); err != nil {
		return stage.Unhealthy("segmenter", err.Error())
	}
	return stage.Healthy("segmenter")
}

func (s *Segmenter) newSegmenter() (*segment.Segmenter, error) {
	window := time.Duration(s.cfg.Segmenter.WindowSeconds) * time.Second
	overlap := time.Duration(s.cfg.Segmenter.OverlapSeconds) * time.Second
	return segment.New(window, overlap)
}
