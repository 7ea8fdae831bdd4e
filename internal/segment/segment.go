package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vigil/internal/transcript"
)

// Segment is a bounded, overlapping window of transcript utterances analyzed
// as one unit. Segments are read-only once emitted.
type Segment struct {
	ID         int                    `json:"id"`
	Start      time.Duration          `json:"start"`
	End        time.Duration          `json:"end"`
	Utterances []transcript.Utterance `json:"utterances"`
}

// Text renders the segment transcript with speaker attribution, one utterance
// per line, the form used for retrieval queries and analysis prompts.
func (s Segment) Text() string {
	lines := make([]string, 0, len(s.Utterances))
	for _, u := range s.Utterances {
		lines = append(lines, u.Line())
	}
	return strings.Join(lines, "\n")
}

// Duration returns the span covered by the segment.
func (s Segment) Duration() time.Duration {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Marshal encodes segments as the JSON artifact persisted on the run row.
func Marshal(segments []Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("marshal segments: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes a persisted segments artifact.
func Unmarshal(raw string) ([]Segment, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("segments artifact is empty")
	}
	var segments []Segment
	if err := json.Unmarshal([]byte(trimmed), &segments); err != nil {
		return nil, fmt.Errorf("parse segments: %w", err)
	}
	return segments, nil
}
