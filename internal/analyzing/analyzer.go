package analyzing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"vigil/internal/config"
	"vigil/internal/logging"
	"vigil/internal/manualindex"
	"vigil/internal/policy"
	"vigil/internal/queue"
	"vigil/internal/segment"
	"vigil/internal/services"
	"vigil/internal/services/embed"
	"vigil/internal/services/llm"
	"vigil/internal/stage"
)

// Analyzer is the pipeline stage that evaluates each segment against the
// procedure manual corpus using retrieval plus local inference. Verdicts are
// persisted per segment as they land so an interrupted run keeps its partial
// progress.
type Analyzer struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger

	retriever   policy.Retriever
	inference   policy.Inferencer
	fingerprint string
}

// Option customizes an Analyzer, primarily for tests.
type Option func(*Analyzer)

// WithRetriever replaces the manual index retriever.
func WithRetriever(r policy.Retriever) Option {
	return func(a *Analyzer) { a.retriever = r }
}

// WithInferencer replaces the LLM-backed inference client.
func WithInferencer(inf policy.Inferencer) Option {
	return func(a *Analyzer) { a.inference = inf }
}

// New constructs the analysis stage handler.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Analyzer{cfg: cfg, store: store, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Analyzer) Prepare(ctx context.Context, run *queue.Run) error {
	if strings.TrimSpace(run.SegmentsJSON) == "" {
		return services.Wrap(services.ErrValidation, "analyzer", "prepare", "run has no segment plan", nil)
	}
	if err := a.ensureCollaborators(ctx, run); err != nil {
		return err
	}
	run.SetProgress("Analyzing", "Evaluating segments", 0)
	return nil
}

// ensureCollaborators opens the manual index and inference client unless the
// constructor already received replacements.
func (a *Analyzer) ensureCollaborators(ctx context.Context, run *queue.Run) error {
	if a.inference == nil {
		a.inference = llm.NewClient(llm.Config{
			APIKey:         a.cfg.LLM.APIKey,
			BaseURL:        a.cfg.LLM.BaseURL,
			Model:          a.cfg.LLM.Model,
			TimeoutSeconds: a.cfg.LLM.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
	}
	if a.retriever != nil {
		return nil
	}

	embedder, err := embed.NewClient(embed.Config{
		BaseURL: a.cfg.Embeddings.BaseURL,
		Model:   a.cfg.Embeddings.Model,
		APIKey:  a.cfg.Embeddings.APIKey,
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "analyzer", "embeddings", "invalid embeddings configuration", err)
	}
	indexStore, err := manualindex.OpenStore(a.cfg.Paths.IndexPath)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "analyzer", "manual index", "could not open manual index", err)
	}
	index := manualindex.NewIndex(indexStore, embedder)
	if err := index.Load(ctx); err != nil {
		indexStore.Close()
		return services.Wrap(services.ErrConfiguration, "analyzer", "manual index",
			"manual index is not built; run 'vigil index build' first", err)
	}
	a.retriever = index
	a.fingerprint = index.Fingerprint()
	return nil
}

func (a *Analyzer) Execute(ctx context.Context, run *queue.Run) error {
	segments, err := segment.Unmarshal(run.SegmentsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "analyzer", "decode segments", "segment plan is corrupt", err)
	}
	if a.fingerprint != "" {
		run.CorpusFingerprint = a.fingerprint
	}

	logger := logging.WithContext(ctx, a.logger)
	if len(segments) == 0 {
		logger.Info("no segments to analyze")
		run.SetProgress("Analyzing", "No segments", 100)
		return nil
	}

	pending, err := a.pendingSegments(ctx, run, segments)
	if err != nil {
		return err
	}
	done := len(segments) - len(pending)
	if done > 0 {
		logger.Info("resuming analysis with persisted verdicts",
			logging.Int("completed", done),
			logging.Int("remaining", len(pending)),
		)
	}

	gate := policy.NewGate(a.cfg.Analysis.InferenceSlots)
	analyzer := policy.NewAnalyzer(a.retriever, a.inference, gate, policy.Options{
		TopK:              a.cfg.Retrieval.TopK,
		MaxAttempts:       a.cfg.Analysis.MaxAttempts,
		PromptTokenBudget: a.cfg.Analysis.PromptTokenBudget,
		AttemptTimeout:    time.Duration(a.cfg.LLM.TimeoutSeconds) * time.Second,
	}, a.logger)

	workers := a.cfg.Analysis.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(pending) {
		workers = len(pending)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	jobs := make(chan segment.Segment)
	total := len(segments)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for seg := range jobs {
				if err := a.analyzeSegment(workerCtx, analyzer, run, seg); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancelWorkers()
					return
				}
				mu.Lock()
				done++
				percent := float64(done) / float64(total) * 100
				run.SetProgress("Analyzing", fmt.Sprintf("Segment %d of %d", done, total), percent)
				_ = a.store.Update(workerCtx, run)
				mu.Unlock()
			}
		}()
	}

feed:
	for _, seg := range pending {
		select {
		case jobs <- seg:
		case <-workerCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	logger.Info("analysis complete",
		logging.String(logging.FieldEventType, "analysis_complete"),
		logging.Int("segments", total),
	)
	run.SetProgress("Analyzing", "All segments evaluated", 100)
	return nil
}

func (a *Analyzer) analyzeSegment(ctx context.Context, analyzer *policy.Analyzer, run *queue.Run, seg segment.Segment) error {
	segCtx := services.WithSegmentID(ctx, seg.ID)
	started := time.Now()

	verdict, err := analyzer.Analyze(segCtx, seg)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("encode verdict for segment %d: %w", seg.ID, err)
	}
	if err := a.store.SaveVerdict(ctx, run.ID, seg.ID, string(payload)); err != nil {
		return fmt.Errorf("persist verdict for segment %d: %w", seg.ID, err)
	}

	logging.WithContext(segCtx, a.logger).Info("segment evaluated",
		logging.String(logging.FieldEventType, "segment_verdict"),
		logging.String("category", string(verdict.Category)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

// pendingSegments filters out segments that already have a persisted verdict,
// so a retried run does not repeat completed inference work.
func (a *Analyzer) pendingSegments(ctx context.Context, run *queue.Run, segments []segment.Segment) ([]segment.Segment, error) {
	records, err := a.store.ListVerdicts(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("list persisted verdicts: %w", err)
	}
	seen := make(map[int]struct{}, len(records))
	for _, rec := range records {
		seen[rec.SegmentID] = struct{}{}
	}

	var pending []segment.Segment
	for _, seg := range segments {
		if _, ok := seen[seg.ID]; !ok {
			pending = append(pending, seg)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].ID < pending[j].ID })
	return pending, nil
}

func (a *Analyzer) HealthCheck(ctx context.Context) stage.Health {
	client, ok := a.inference.(*llm.Client)
	if !ok || client == nil {
		if a.inference != nil {
			return stage.Healthy("analyzer")
		}
		client = llm.NewClient(llm.Config{
			APIKey:         a.cfg.LLM.APIKey,
			BaseURL:        a.cfg.LLM.BaseURL,
			Model:          a.cfg.LLM.Model,
			TimeoutSeconds: a.cfg.LLM.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.HealthCheck(checkCtx); err != nil {
		return stage.Unhealthy("analyzer", fmt.Sprintf("inference server unreachable: %v", err))
	}
	return stage.Healthy("analyzer")
}
