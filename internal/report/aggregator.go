package report

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrIncompleteRun reports a finalize attempt while segments are still
// missing verdicts. It signals an orchestration bug, not a runtime condition.
var ErrIncompleteRun = errors.New("run incomplete: segments missing verdicts")

// Span identifies one expected segment and its timeline bounds. The
// aggregator needs bounds for every segment up front so skipped segments
// still occupy their place in the final timeline.
type Span struct {
	ID    int
	Start time.Duration
	End   time.Duration
}

// Option customizes aggregation policy.
type Option func(*Aggregator)

// WithEscalation controls whether category disagreement across an overlap
// escalates the owning entry to PolicyConcern. Enabled by default.
func WithEscalation(enabled bool) Option {
	return func(a *Aggregator) {
		a.escalate = enabled
	}
}

// Aggregator assembles per-segment verdicts into a timeline-ordered report.
// Verdicts may arrive in any completion order; the output depends only on the
// final verdict set, never on arrival order. Not safe for concurrent use.
type Aggregator struct {
	spans    []Span
	verdicts map[int]Verdict
	skipped  map[int]string
	escalate bool
}

// NewAggregator creates an aggregator expecting exactly the given spans.
func NewAggregator(spans []Span, opts ...Option) *Aggregator {
	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].ID < sorted[j].ID
	})
	agg := &Aggregator{
		spans:    sorted,
		verdicts: make(map[int]Verdict),
		skipped:  make(map[int]string),
		escalate: true,
	}
	for _, opt := range opts {
		opt(agg)
	}
	return agg
}

// Ingest records a verdict, replacing any prior verdict for the same segment.
func (a *Aggregator) Ingest(verdict Verdict) error {
	if !a.knownSegment(verdict.SegmentID) {
		return fmt.Errorf("ingest verdict: unknown segment %d", verdict.SegmentID)
	}
	a.verdicts[verdict.SegmentID] = verdict
	delete(a.skipped, verdict.SegmentID)
	return nil
}

// MarkSkipped records that a segment will never receive a verdict, so
// Finalize does not treat it as missing.
func (a *Aggregator) MarkSkipped(segmentID int, reason string) error {
	if !a.knownSegment(segmentID) {
		return fmt.Errorf("mark skipped: unknown segment %d", segmentID)
	}
	if _, ok := a.verdicts[segmentID]; ok {
		return fmt.Errorf("mark skipped: segment %d already has a verdict", segmentID)
	}
	a.skipped[segmentID] = reason
	return nil
}

// Finalize produces the complete report. Every expected segment must hold a
// verdict or an explicit skip.
func (a *Aggregator) Finalize() (Report, error) {
	var missing []int
	for _, span := range a.spans {
		if _, ok := a.verdicts[span.ID]; ok {
			continue
		}
		if _, ok := a.skipped[span.ID]; ok {
			continue
		}
		missing = append(missing, span.ID)
	}
	if len(missing) > 0 {
		return Report{}, fmt.Errorf("%w: %v", ErrIncompleteRun, missing)
	}
	return a.build(false), nil
}

// Snapshot produces a partial report from whatever verdicts have arrived so
// far. Used when a run fails or is cancelled mid-analysis.
func (a *Aggregator) Snapshot() Report {
	return a.build(true)
}

func (a *Aggregator) knownSegment(id int) bool {
	for _, span := range a.spans {
		if span.ID == id {
			return true
		}
	}
	return false
}

func (a *Aggregator) build(partial bool) Report {
	entries := make([]Entry, 0, len(a.spans))
	for i, span := range a.spans {
		verdict, hasVerdict := a.verdicts[span.ID]
		skipReason, wasSkipped := a.skipped[span.ID]
		if !hasVerdict && !wasSkipped {
			// Only reachable from Snapshot; Finalize rejects missing verdicts.
			continue
		}

		start, end := a.primaryRange(i)
		entry := Entry{
			SegmentID:  span.ID,
			Start:      start,
			End:        end,
			StartLabel: label(start),
			EndLabel:   label(end),
		}
		if wasSkipped {
			entry.Category = CategoryInconclusive
			entry.Skipped = true
			entry.SkipReason = skipReason
		} else {
			entry.Category = verdict.Category
			entry.Rationale = verdict.Rationale
			entry.Confidence = verdict.Confidence
			entry.CitedExcerpts = verdict.CitedExcerpts
			if a.escalate && a.disagreesWithNext(i, verdict) && entry.Category != CategoryPolicyConcern {
				entry.Category = CategoryPolicyConcern
				entry.Escalated = true
			}
		}
		entries = append(entries, entry)
	}

	report := Report{
		Entries:     entries,
		Partial:     partial,
		GeneratedAt: time.Now().UTC(),
	}
	report.Summary = summarize(entries, len(a.spans))
	report.FlaggedRanges = flaggedRanges(entries)
	return report
}

// primaryRange attributes overlap regions to the earlier segment: each
// segment owns the timeline from its start until the next segment begins,
// and the last segment owns through its end. Spans sharing a start leave the
// earlier entry zero-width so no timestamp is owned twice.
func (a *Aggregator) primaryRange(i int) (time.Duration, time.Duration) {
	span := a.spans[i]
	end := span.End
	if i+1 < len(a.spans) {
		next := a.spans[i+1]
		if next.Start < end {
			end = next.Start
		}
	}
	return span.Start, end
}

// disagreesWithNext reports whether the verdict for span i conflicts in
// category with the verdict for the next, overlapping span.
func (a *Aggregator) disagreesWithNext(i int, verdict Verdict) bool {
	if i+1 >= len(a.spans) {
		return false
	}
	span, next := a.spans[i], a.spans[i+1]
	if next.Start >= span.End {
		return false
	}
	nextVerdict, ok := a.verdicts[next.ID]
	if !ok {
		return false
	}
	return nextVerdict.Category != verdict.Category
}

func summarize(entries []Entry, total int) Summary {
	summary := Summary{TotalSegments: total}
	for _, entry := range entries {
		switch {
		case entry.Skipped:
			summary.Skipped++
		case entry.Category == CategoryCompliant:
			summary.Compliant++
		case entry.Category == CategoryPolicyConcern:
			summary.PolicyConcern++
		default:
			summary.Inconclusive++
		}
	}
	return summary
}

// flaggedRanges merges consecutive PolicyConcern entries into contiguous
// time ranges for the reviewer-facing summary.
func flaggedRanges(entries []Entry) []TimeRange {
	var ranges []TimeRange
	for _, entry := range entries {
		if entry.Category != CategoryPolicyConcern || entry.Skipped {
			continue
		}
		if n := len(ranges); n > 0 && ranges[n-1].End == entry.Start {
			ranges[n-1].End = entry.End
			ranges[n-1].EndLabel = entry.EndLabel
			continue
		}
		ranges = append(ranges, TimeRange{
			Start:      entry.Start,
			End:        entry.End,
			StartLabel: entry.StartLabel,
			EndLabel:   entry.EndLabel,
		})
	}
	return ranges
}
