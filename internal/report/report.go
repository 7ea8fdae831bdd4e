package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil/internal/transcript"
)

// Category is the analyzer's judgment for one segment.
type Category string

const (
	CategoryCompliant     Category = "Compliant"
	CategoryPolicyConcern Category = "PolicyConcern"
	CategoryInconclusive  Category = "Inconclusive"
)

// ParseCategory maps model output onto a known category, falling back to
// Inconclusive for anything unrecognized.
func ParseCategory(value string) Category {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "compliant":
		return CategoryCompliant
	case "policyconcern", "policy_concern", "policy concern", "concern":
		return CategoryPolicyConcern
	default:
		return CategoryInconclusive
	}
}

// Verdict is the structured judgment for one segment. Immutable once emitted.
type Verdict struct {
	SegmentID     int           `json:"segment_id"`
	SegmentStart  time.Duration `json:"segment_start"`
	SegmentEnd    time.Duration `json:"segment_end"`
	Category      Category      `json:"category"`
	Rationale     string        `json:"rationale"`
	Confidence    float64       `json:"confidence"`
	CitedExcerpts []int64       `json:"cited_excerpts,omitempty"`
}

// Entry is one timeline row of the final report. Start and End bound the
// entry's primary range: the portion of the timeline this segment canonically
// owns after overlap attribution.
type Entry struct {
	SegmentID     int           `json:"segment_id"`
	Start         time.Duration `json:"start"`
	End           time.Duration `json:"end"`
	StartLabel    string        `json:"start_label"`
	EndLabel      string        `json:"end_label"`
	Category      Category      `json:"category"`
	Rationale     string        `json:"rationale"`
	Confidence    float64       `json:"confidence"`
	CitedExcerpts []int64       `json:"cited_excerpts,omitempty"`
	Escalated     bool          `json:"escalated,omitempty"`
	Skipped       bool          `json:"skipped,omitempty"`
	SkipReason    string        `json:"skip_reason,omitempty"`
}

// TimeRange bounds a flagged span of the recording.
type TimeRange struct {
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	StartLabel string        `json:"start_label"`
	EndLabel   string        `json:"end_label"`
}

// Summary carries the per-category counts for a report.
type Summary struct {
	TotalSegments int `json:"total_segments"`
	Compliant     int `json:"compliant"`
	PolicyConcern int `json:"policy_concern"`
	Inconclusive  int `json:"inconclusive"`
	Skipped       int `json:"skipped"`
}

// Report is the timeline-ordered aggregation of all verdicts for one run.
type Report struct {
	Entries       []Entry     `json:"entries"`
	Summary       Summary     `json:"summary"`
	FlaggedRanges []TimeRange `json:"flagged_ranges,omitempty"`
	Partial       bool        `json:"partial,omitempty"`
	GeneratedAt   time.Time   `json:"generated_at"`
}

// Marshal encodes the report as the JSON artifact persisted on the run row.
func (r Report) Marshal() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes a persisted report artifact.
func Unmarshal(raw string) (Report, error) {
	var report Report
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return report, errors.New("report artifact is empty")
	}
	if err := json.Unmarshal([]byte(trimmed), &report); err != nil {
		return report, fmt.Errorf("parse report: %w", err)
	}
	return report, nil
}

func label(d time.Duration) string {
	return transcript.FormatTimestamp(d)
}
