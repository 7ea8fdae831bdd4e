package report

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"time"
)

func testSpans() []Span {
	// Three overlapping five-minute windows with 30s overlap, plus a short
	// trailing window.
	return []Span{
		{ID: 0, Start: 0, End: 5 * time.Minute},
		{ID: 1, Start: 4*time.Minute + 30*time.Second, End: 9*time.Minute + 30*time.Second},
		{ID: 2, Start: 9 * time.Minute, End: 14 * time.Minute},
		{ID: 3, Start: 13*time.Minute + 30*time.Second, End: 15 * time.Minute},
	}
}

func verdictFor(span Span, category Category) Verdict {
	return Verdict{
		SegmentID:    span.ID,
		SegmentStart: span.Start,
		SegmentEnd:   span.End,
		Category:     category,
		Rationale:    "test rationale",
		Confidence:   0.9,
	}
}

func TestFinalizeRequiresAllVerdicts(t *testing.T) {
	spans := testSpans()
	agg := NewAggregator(spans)
	for _, span := range spans[:2] {
		if err := agg.Ingest(verdictFor(span, CategoryCompliant)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	if _, err := agg.Finalize(); !errors.Is(err, ErrIncompleteRun) {
		t.Fatalf("expected ErrIncompleteRun, got %v", err)
	}

	if err := agg.MarkSkipped(spans[2].ID, "analysis cancelled"); err != nil {
		t.Fatalf("MarkSkipped: %v", err)
	}
	if err := agg.Ingest(verdictFor(spans[3], CategoryCompliant)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if rep.Summary.Skipped != 1 {
		t.Fatalf("expected one skipped entry, got %+v", rep.Summary)
	}
}

func TestEqualStartSpansOwnDisjointRanges(t *testing.T) {
	// An oversized utterance isolated at a window boundary produces a span
	// that starts exactly where the window span does.
	spans := []Span{
		{ID: 0, Start: 0, End: time.Minute},
		{ID: 1, Start: time.Minute, End: 2 * time.Minute},
		{ID: 2, Start: time.Minute, End: 4 * time.Minute},
	}
	agg := NewAggregator(spans)
	for _, span := range spans {
		if err := agg.Ingest(verdictFor(span, CategoryCompliant)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(rep.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(rep.Entries))
	}

	if e := rep.Entries[1]; e.Start != time.Minute || e.End != time.Minute {
		t.Fatalf("earlier equal-start entry must own zero width, got %v-%v", e.Start, e.End)
	}
	if e := rep.Entries[2]; e.Start != time.Minute || e.End != 4*time.Minute {
		t.Fatalf("later equal-start entry must own the shared range, got %v-%v", e.Start, e.End)
	}
	for i := 1; i < len(rep.Entries); i++ {
		if rep.Entries[i].Start != rep.Entries[i-1].End {
			t.Fatalf("entries %d/%d must abut, got %v then %v", i-1, i, rep.Entries[i-1].End, rep.Entries[i].Start)
		}
	}
}

func TestIngestIsIdempotentReplace(t *testing.T) {
	spans := testSpans()[:1]
	agg := NewAggregator(spans)
	if err := agg.Ingest(verdictFor(spans[0], CategoryPolicyConcern)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := agg.Ingest(verdictFor(spans[0], CategoryCompliant)); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if len(rep.Entries) != 1 || rep.Entries[0].Category != CategoryCompliant {
		t.Fatalf("expected single Compliant entry, got %+v", rep.Entries)
	}
}

func TestIngestRejectsUnknownSegment(t *testing.T) {
	agg := NewAggregator(testSpans()[:1])
	if err := agg.Ingest(Verdict{SegmentID: 99}); err == nil {
		t.Fatal("expected error for unknown segment")
	}
	if err := agg.MarkSkipped(99, "nope"); err == nil {
		t.Fatal("expected error for unknown segment skip")
	}
}

func TestPrimaryRangesCoverTimelineWithoutDuplication(t *testing.T) {
	spans := testSpans()
	agg := NewAggregator(spans)
	for _, span := range spans {
		if err := agg.Ingest(verdictFor(span, CategoryCompliant)); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Each overlap region belongs to the earlier segment: entries tile the
	// timeline with no gaps or double coverage.
	for i := 1; i < len(rep.Entries); i++ {
		prev, cur := rep.Entries[i-1], rep.Entries[i]
		if prev.End != cur.Start {
			t.Fatalf("entries %d/%d do not tile: %v then %v", i-1, i, prev.End, cur.Start)
		}
	}
	last := rep.Entries[len(rep.Entries)-1]
	if last.End != 15*time.Minute {
		t.Fatalf("timeline truncated at %v", last.End)
	}
}

func TestOverlapDisagreementEscalates(t *testing.T) {
	spans := testSpans()[:2]
	agg := NewAggregator(spans)
	if err := agg.Ingest(verdictFor(spans[0], CategoryCompliant)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := agg.Ingest(verdictFor(spans[1], CategoryPolicyConcern)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if rep.Entries[0].Category != CategoryPolicyConcern || !rep.Entries[0].Escalated {
		t.Fatalf("expected escalated PolicyConcern entry, got %+v", rep.Entries[0])
	}
	if rep.Summary.PolicyConcern != 2 {
		t.Fatalf("expected both entries flagged, got %+v", rep.Summary)
	}
	if len(rep.FlaggedRanges) != 1 {
		t.Fatalf("expected merged flagged range, got %+v", rep.FlaggedRanges)
	}
}

func TestEscalationCanBeDisabled(t *testing.T) {
	spans := testSpans()[:2]
	agg := NewAggregator(spans, WithEscalation(false))
	if err := agg.Ingest(verdictFor(spans[0], CategoryCompliant)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := agg.Ingest(verdictFor(spans[1], CategoryPolicyConcern)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if rep.Entries[0].Category != CategoryCompliant {
		t.Fatalf("expected unescalated entry, got %+v", rep.Entries[0])
	}
}

func TestFinalizeCommutativeInArrivalOrder(t *testing.T) {
	spans := testSpans()
	categories := []Category{CategoryCompliant, CategoryPolicyConcern, CategoryInconclusive, CategoryCompliant}

	baseline := buildInOrder(t, spans, categories, []int{0, 1, 2, 3})

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 10; trial++ {
		order := rng.Perm(len(spans))
		rep := buildInOrder(t, spans, categories, order)
		if !reflect.DeepEqual(stripTime(baseline), stripTime(rep)) {
			t.Fatalf("order %v produced a different report", order)
		}
	}
}

func buildInOrder(t *testing.T, spans []Span, categories []Category, order []int) Report {
	t.Helper()
	agg := NewAggregator(spans)
	for _, idx := range order {
		if err := agg.Ingest(verdictFor(spans[idx], categories[idx])); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return rep
}

func stripTime(rep Report) Report {
	rep.GeneratedAt = time.Time{}
	return rep
}

func TestSnapshotIsPartial(t *testing.T) {
	spans := testSpans()
	agg := NewAggregator(spans)
	if err := agg.Ingest(verdictFor(spans[1], CategoryPolicyConcern)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep := agg.Snapshot()
	if !rep.Partial {
		t.Fatal("expected partial report")
	}
	if len(rep.Entries) != 1 || rep.Entries[0].SegmentID != 1 {
		t.Fatalf("expected single entry for segment 1, got %+v", rep.Entries)
	}
	if rep.Summary.TotalSegments != len(spans) {
		t.Fatalf("summary should count all expected segments, got %+v", rep.Summary)
	}
}

func TestReportRoundTrip(t *testing.T) {
	spans := testSpans()[:1]
	agg := NewAggregator(spans)
	if err := agg.Ingest(verdictFor(spans[0], CategoryPolicyConcern)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	rep, err := agg.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	raw, err := rep.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(stripTime(rep), stripTime(decoded)) {
		t.Fatal("report changed across marshal round trip")
	}
}

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"Compliant":      CategoryCompliant,
		"compliant":      CategoryCompliant,
		"PolicyConcern":  CategoryPolicyConcern,
		"policy_concern": CategoryPolicyConcern,
		"policy concern": CategoryPolicyConcern,
		"Inconclusive":   CategoryInconclusive,
		"garbage":        CategoryInconclusive,
		"":               CategoryInconclusive,
	}
	for input, want := range cases {
		if got := ParseCategory(input); got != want {
			t.Fatalf("ParseCategory(%q) = %q, want %q", input, got, want)
		}
	}
}
