package aggregating

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/queue"
	"vigil/internal/report"
	"vigil/internal/segment"
	"vigil/internal/services"
	"vigil/internal/stage"
)

// Aggregator is the final pipeline stage. It folds persisted per-segment
// verdicts into a single timeline report and stores it on the run.
type Aggregator struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

// New constructs the aggregation stage handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Aggregator{cfg: cfg, store: store, logger: logger}
}

func (a *Aggregator) Prepare(_ context.Context, run *queue.Run) error {
	if strings.TrimSpace(run.SegmentsJSON) == "" {
		return services.Wrap(services.ErrValidation, "aggregator", "prepare", "run has no segment plan", nil)
	}
	run.SetProgress("Aggregating", "Building timeline report", 10)
	return nil
}

func (a *Aggregator) Execute(ctx context.Context, run *queue.Run) error {
	segments, err := segment.Unmarshal(run.SegmentsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "aggregator", "decode segments", "segment plan is corrupt", err)
	}

	rep, err := BuildReport(ctx, a.store, run, segments, a.cfg.Analysis.EscalateOnDisagreement)
	if err != nil {
		return services.Wrap(services.ErrValidation, "aggregator", "finalize", "could not assemble report", err)
	}

	payload, err := rep.Marshal()
	if err != nil {
		return services.Wrap(services.ErrValidation, "aggregator", "encode report", "could not encode report", err)
	}
	run.ReportJSON = payload

	logging.WithContext(ctx, a.logger).Info("report assembled",
		logging.String(logging.FieldEventType, "report_complete"),
		logging.Int("segments", rep.Summary.TotalSegments),
		logging.Int("policy_concerns", rep.Summary.PolicyConcern),
		logging.Int("inconclusive", rep.Summary.Inconclusive),
	)
	run.SetProgress("Aggregating", "Report ready", 100)
	return nil
}

func (a *Aggregator) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("aggregator")
}

// BuildReport assembles the timeline report for a run from its segment plan
// and persisted verdicts. Finalize rejects runs with unanalyzed segments, so
// an incomplete run surfaces as an error rather than a silently short report.
func BuildReport(ctx context.Context, store *queue.Store, run *queue.Run, segments []segment.Segment, escalate bool) (report.Report, error) {
	agg, err := ingestVerdicts(ctx, store, run, segments, escalate)
	if err != nil {
		return report.Report{}, err
	}
	return agg.Finalize()
}

// BuildPartialReport assembles a snapshot report covering whatever verdicts a
// run has so far. Used for inspecting interrupted or failed runs.
func BuildPartialReport(ctx context.Context, store *queue.Store, run *queue.Run, segments []segment.Segment, escalate bool) (report.Report, error) {
	agg, err := ingestVerdicts(ctx, store, run, segments, escalate)
	if err != nil {
		return report.Report{}, err
	}
	return agg.Snapshot(), nil
}

func ingestVerdicts(ctx context.Context, store *queue.Store, run *queue.Run, segments []segment.Segment, escalate bool) (*report.Aggregator, error) {
	spans := make([]report.Span, 0, len(segments))
	for _, seg := range segments {
		spans = append(spans, report.Span{ID: seg.ID, Start: seg.Start, End: seg.End})
	}
	agg := report.NewAggregator(spans, report.WithEscalation(escalate))

	records, err := store.ListVerdicts(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	for _, rec := range records {
		var verdict report.Verdict
		if err := json.Unmarshal([]byte(rec.Payload), &verdict); err != nil {
			return nil, fmt.Errorf("decode verdict for segment %d: %w", rec.SegmentID, err)
		}
		if err := agg.Ingest(verdict); err != nil {
			return nil, fmt.Errorf("ingest verdict for segment %d: %w", rec.SegmentID, err)
		}
	}
	return agg, nil
}
