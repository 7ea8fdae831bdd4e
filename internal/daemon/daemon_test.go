package daemon_test

import (
	"context"
	"testing"

	"vigil/internal/daemon"
	"vigil/internal/logging"
	"vigil/internal/queue"
	"vigil/internal/stage"
	"vigil/internal/testsupport"
	"vigil/internal/workflow"
)

type noopHandler struct{ name string }

func (h noopHandler) Prepare(context.Context, *queue.Run) error { return nil }
func (h noopHandler) Execute(context.Context, *queue.Run) error { return nil }
func (h noopHandler) HealthCheck(context.Context) stage.Health  { return stage.Healthy(h.name) }

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{
		Transcriber: noopHandler{name: "transcriber"},
		Segmenter:   noopHandler{name: "segmenter"},
		Analyzer:    noopHandler{name: "analyzer"},
		Aggregator:  noopHandler{name: "aggregator"},
	})

	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestStartStopLifecycle(t *testing.T) {
	d, _ := newTestDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	status := d.Status(context.Background())
	if !status.Running {
		t.Fatal("status should report running")
	}
	d.Stop()

	status = d.Status(context.Background())
	if status.Running {
		t.Fatal("status should report stopped")
	}
}

func TestStartRollsBackInterruptedRuns(t *testing.T) {
	d, store := newTestDaemon(t)

	run := testsupport.NewRun(t, store, "/footage/shift-050.mp4", "Shift 50")
	run.Status = queue.StatusAnalyzing
	run.SegmentsJSON = `[]`
	if err := store.Update(context.Background(), run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	reloaded, err := store.GetByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if reloaded.Status != queue.StatusSegmented && reloaded.Status != queue.StatusAnalyzing && reloaded.Status != queue.StatusAnalyzed && reloaded.Status != queue.StatusCompleted {
		t.Fatalf("status = %s, expected run rolled back and reprocessed", reloaded.Status)
	}
	if reloaded.SegmentsJSON == "" {
		t.Fatal("segment artifact should survive rollback")
	}
}

func TestNewRejectsMissingDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected constructor error")
	}
}
