package queue

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenPath(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestNewRunDefaults(t *testing.T) {
	store := newTestStore(t)
	run, err := store.NewRun(context.Background(), "/footage/stop_0412.mp4", "")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if run.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", run.Status)
	}
	if run.Title != "stop_0412" {
		t.Fatalf("expected title inferred from path, got %q", run.Title)
	}
	if run.CreatedAt.IsZero() || run.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}

	if _, err := store.NewRun(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for blank source path")
	}
}

func TestUpdatePersistsArtifacts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	run, err := store.NewRun(ctx, "/footage/a.mp4", "Traffic Stop")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	run.Status = StatusTranscribed
	run.AudioFile = "/staging/a.wav"
	run.TranscriptJSON = `[{"start":0,"end":1000000000,"text":"hello"}]`
	run.SetProgressComplete("Transcribing", "Transcript ready")
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	loaded, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != StatusTranscribed || loaded.AudioFile != "/staging/a.wav" {
		t.Fatalf("artifacts not persisted: %+v", loaded)
	}
	if loaded.TranscriptJSON == "" || loaded.ProgressPercent != 100 {
		t.Fatalf("progress or transcript missing: %+v", loaded)
	}
}

func TestGetByIDMissing(t *testing.T) {
	store := newTestStore(t)
	run, err := store.GetByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if run != nil {
		t.Fatalf("expected nil for missing run, got %+v", run)
	}
}

func TestNextForStatusesOrdersByCreation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.NewRun(ctx, "/footage/first.mp4", "")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	if _, err := store.NewRun(ctx, "/footage/second.mp4", ""); err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	next, err := store.NextForStatuses(ctx, StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending run %d, got %+v", first.ID, next)
	}

	none, err := store.NextForStatuses(ctx, StatusAnalyzing)
	if err != nil {
		t.Fatalf("NextForStatuses: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no analyzing runs, got %+v", none)
	}
}

func TestResetStuckProcessingRollsBackOneStage(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/footage/a.mp4", "")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	run.Status = StatusAnalyzing
	run.SegmentsJSON = `[]`
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one reset, got %d", affected)
	}

	loaded, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != StatusSegmented {
		t.Fatalf("expected rollback to segmented, got %s", loaded.Status)
	}
	if loaded.SegmentsJSON == "" {
		t.Fatal("stage artifacts must survive a rollback")
	}
}

func TestRetryFailed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/footage/a.mp4", "")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	run.SetFailed("transcription crashed")
	if err := store.Update(ctx, run); err != nil {
		t.Fatalf("Update: %v", err)
	}

	affected, err := store.RetryFailed(ctx, run.ID)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected one retried run, got %d", affected)
	}
	loaded, err := store.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if loaded.Status != StatusPending || loaded.ErrorMessage != "" {
		t.Fatalf("retry did not reset run: %+v", loaded)
	}
}

func TestVerdictPersistence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run, err := store.NewRun(ctx, "/footage/a.mp4", "")
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}

	if err := store.SaveVerdict(ctx, run.ID, 0, `{"category":"Compliant"}`); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}
	if err := store.SaveVerdict(ctx, run.ID, 2, `{"category":"PolicyConcern"}`); err != nil {
		t.Fatalf("SaveVerdict: %v", err)
	}
	// Upsert replaces rather than duplicating.
	if err := store.SaveVerdict(ctx, run.ID, 0, `{"category":"Inconclusive"}`); err != nil {
		t.Fatalf("SaveVerdict upsert: %v", err)
	}

	records, err := store.ListVerdicts(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListVerdicts: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(records))
	}
	if records[0].SegmentID != 0 || records[0].Payload != `{"category":"Inconclusive"}` {
		t.Fatalf("upsert did not replace payload: %+v", records[0])
	}
	if records[1].SegmentID != 2 {
		t.Fatalf("verdicts not in segment order: %+v", records)
	}

	if err := store.ClearVerdicts(ctx, run.ID); err != nil {
		t.Fatalf("ClearVerdicts: %v", err)
	}
	records, err = store.ListVerdicts(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListVerdicts: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no verdicts after clear, got %d", len(records))
	}
}

func TestStatsAndHealth(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, status := range []Status{StatusPending, StatusAnalyzing, StatusCompleted, StatusFailed} {
		run, err := store.NewRun(ctx, "/footage/"+string(status)+".mp4", "")
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		run.Status = status
		if err := store.Update(ctx, run); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 4 || health.Pending != 1 || health.Processing != 1 || health.Failed != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %+v", health)
	}
}

func TestClearVariants(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, status := range []Status{StatusCompleted, StatusFailed, StatusPending} {
		run, err := store.NewRun(ctx, "/footage/"+string(status)+".mp4", "")
		if err != nil {
			t.Fatalf("NewRun: %v", err)
		}
		run.Status = status
		if err := store.Update(ctx, run); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	if n, err := store.ClearCompleted(ctx); err != nil || n != 1 {
		t.Fatalf("ClearCompleted = %d, %v", n, err)
	}
	if n, err := store.ClearFailed(ctx); err != nil || n != 1 {
		t.Fatalf("ClearFailed = %d, %v", n, err)
	}
	if n, err := store.Clear(ctx); err != nil || n != 1 {
		t.Fatalf("Clear = %d, %v", n, err)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ParseStatus(" Analyzing "); !ok || status != StatusAnalyzing {
		t.Fatalf("ParseStatus failed: %v %v", status, ok)
	}
	if _, ok := ParseStatus("ripping"); ok {
		t.Fatal("unknown status accepted")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatal("empty status accepted")
	}
}
