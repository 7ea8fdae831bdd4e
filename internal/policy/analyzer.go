package policy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/logging"
	"vigil/internal/manualindex"
	"vigil/internal/report"
	"vigil/internal/segment"
	"vigil/internal/services/llm"
)

// Retriever is the narrow capability the analyzer needs from the manual
// index: similarity lookup by text.
type Retriever interface {
	Query(ctx context.Context, text string, k int) ([]manualindex.Match, error)
}

// Inferencer is the capability boundary to the local language model.
type Inferencer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tune analyzer behavior.
type Options struct {
	// TopK is how many manual excerpts to retrieve per segment.
	TopK int
	// MaxAttempts bounds inference retries before a segment is downgraded
	// to Inconclusive.
	MaxAttempts int
	// PromptTokenBudget caps the composed prompt size.
	PromptTokenBudget int
	// AttemptTimeout bounds each individual inference call.
	AttemptTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.PromptTokenBudget <= 0 {
		o.PromptTokenBudget = 3000
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = llm.DefaultHTTPTimeout()
	}
	return o
}

// Analyzer judges transcript segments against retrieved procedure-manual
// context. A failure on one segment never aborts the run: malformed model
// output and exhausted retries both produce an Inconclusive verdict, and the
// only error Analyze returns is cancellation of the run context.
type Analyzer struct {
	retriever Retriever
	inference Inferencer
	gate      *Gate
	opts      Options
	logger    *slog.Logger
}

// NewAnalyzer constructs an analyzer. The gate mediates access to the
// inference backend and is shared across workers and runs.
func NewAnalyzer(retriever Retriever, inference Inferencer, gate *Gate, opts Options, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Analyzer{
		retriever: retriever,
		inference: inference,
		gate:      gate,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// verdictPayload is the JSON schema the model is instructed to emit.
type verdictPayload struct {
	Category      string  `json:"category"`
	Rationale     string  `json:"rationale"`
	Confidence    float64 `json:"confidence"`
	CitedExcerpts []int   `json:"cited_excerpts"`
}

// Analyze produces a verdict for one segment. Deterministic given
// deterministic retrieval and inference.
func (a *Analyzer) Analyze(ctx context.Context, seg segment.Segment) (report.Verdict, error) {
	verdict := report.Verdict{
		SegmentID:    seg.ID,
		SegmentStart: seg.Start,
		SegmentEnd:   seg.End,
	}

	matches, err := a.retriever.Query(ctx, seg.Text(), a.opts.TopK)
	if err != nil {
		if ctx.Err() != nil {
			return verdict, ctx.Err()
		}
		// Retrieval trouble degrades the segment, not the run.
		a.logger.Warn("manual retrieval failed", logging.Int("segment", seg.ID), logging.Error(err))
		verdict.Category = report.CategoryInconclusive
		verdict.Rationale = fmt.Sprintf("manual retrieval failed: %v", err)
		return verdict, nil
	}

	prompt, chunkIDs := composePrompt(seg, matches, a.opts.PromptTokenBudget)

	var lastErr error
	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		content, err := a.inferOnce(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return verdict, ctx.Err()
			}
			lastErr = err
			a.logger.Warn("inference attempt failed",
				logging.Int("segment", seg.ID),
				logging.Int("attempt", attempt),
				logging.Error(err))
			continue
		}

		var payload verdictPayload
		if err := llm.DecodeLLMJSON(content, &payload); err != nil {
			// Malformed output is not transient; retrying the same prompt
			// against a deterministic model would return the same text.
			verdict.Category = report.CategoryInconclusive
			verdict.Rationale = fmt.Sprintf("model output could not be parsed: %v", err)
			return verdict, nil
		}

		verdict.Category = report.ParseCategory(payload.Category)
		verdict.Rationale = payload.Rationale
		verdict.Confidence = clampConfidence(payload.Confidence)
		verdict.CitedExcerpts = resolveCitations(payload.CitedExcerpts, chunkIDs)
		return verdict, nil
	}

	verdict.Category = report.CategoryInconclusive
	verdict.Rationale = fmt.Sprintf("inference failed after %d attempts: %v", a.opts.MaxAttempts, lastErr)
	return verdict, nil
}

// inferOnce runs a single gated inference call with a per-attempt timeout.
func (a *Analyzer) inferOnce(ctx context.Context, prompt string) (string, error) {
	if err := a.gate.Acquire(ctx); err != nil {
		return "", err
	}
	defer a.gate.Release()

	attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
	defer cancel()
	return a.inference.CompleteJSON(attemptCtx, systemPrompt, prompt)
}

func clampConfidence(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// resolveCitations maps the model's 1-based excerpt numbers back to manual
// chunk IDs, dropping out-of-range references.
func resolveCitations(numbers []int, chunkIDs []int64) []int64 {
	var cited []int64
	for _, n := range numbers {
		if n < 1 || n > len(chunkIDs) {
			continue
		}
		cited = append(cited, chunkIDs[n-1])
	}
	return cited
}
