package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an analysis run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSegmenting   Status = "segmenting"
	StatusSegmented    Status = "segmented"
	StatusAnalyzing    Status = "analyzing"
	StatusAnalyzed     Status = "analyzed"
	StatusAggregating  Status = "aggregating"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// DaemonStopReason is the error message set when runs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusTranscribing,
	StatusTranscribed,
	StatusSegmenting,
	StatusSegmented,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusAggregating,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTranscribing: {},
	StatusSegmenting:   {},
	StatusAnalyzing:    {},
	StatusAggregating:  {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted run to the last stable
// status so the stage can restart from its persisted inputs.
var stageRollbackTransitions = []statusTransition{
	{from: StatusTranscribing, to: StatusPending},
	{from: StatusSegmenting, to: StatusTranscribed},
	{from: StatusAnalyzing, to: StatusSegmented},
	{from: StatusAggregating, to: StatusAnalyzed},
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// Run represents an analysis run persisted in SQLite. Stage artifacts
// (extracted audio path, transcript, segments, report) live on the row so a
// restarted daemon resumes from the last stable status.
type Run struct {
	ID                int64
	SourcePath        string
	Title             string
	Status            Status
	ErrorMessage      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ProgressStage     string
	ProgressPercent   float64
	ProgressMessage   string
	AudioFile         string
	TranscriptJSON    string
	SegmentsJSON      string
	ReportJSON        string
	CorpusFingerprint string
}

// VerdictRecord is one persisted per-segment verdict. Verdicts are written
// incrementally as analysis completes so cancellation preserves partial
// progress.
type VerdictRecord struct {
	RunID     int64
	SegmentID int
	Payload   string
	CreatedAt time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (r Run) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether no further stage will run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// InitProgress resets progress fields for a new stage.
func (r *Run) InitProgress(stage, message string) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = 0
	r.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (r *Run) SetProgressComplete(stage, message string) {
	r.SetProgress(stage, message, 100)
}

// SetFailed marks the run as failed with the given error message. Persisted
// artifacts, including any partial report, are left in place so reviewers can
// inspect partial results.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressPercent = 0
	r.ProgressMessage = message
	r.ProgressStage = "Failed"
}
