package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Utterance is a single time-stamped span of speech produced by the
// transcription backend. Utterances are immutable once created and ordered by
// start time.
type Utterance struct {
	Start   time.Duration `json:"start"`
	End     time.Duration `json:"end"`
	Speaker string        `json:"speaker,omitempty"`
	Text    string        `json:"text"`
}

// Duration returns the span covered by the utterance.
func (u Utterance) Duration() time.Duration {
	if u.End <= u.Start {
		return 0
	}
	return u.End - u.Start
}

// Line renders the utterance with speaker attribution and a timestamp, the
// form fed into analysis prompts.
func (u Utterance) Line() string {
	speaker := strings.TrimSpace(u.Speaker)
	if speaker == "" {
		speaker = "UNKNOWN"
	}
	return fmt.Sprintf("[%s] %s: %s", FormatTimestamp(u.Start), speaker, strings.TrimSpace(u.Text))
}

// Normalize sorts utterances by start time and drops empty entries. The input
// slice is not modified.
func Normalize(utterances []Utterance) []Utterance {
	out := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// Marshal encodes utterances as the JSON artifact persisted on the run row.
func Marshal(utterances []Utterance) (string, error) {
	data, err := json.Marshal(utterances)
	if err != nil {
		return "", fmt.Errorf("marshal transcript: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes a persisted transcript artifact.
func Unmarshal(raw string) ([]Utterance, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, errors.New("transcript artifact is empty")
	}
	var utterances []Utterance
	if err := json.Unmarshal([]byte(trimmed), &utterances); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	return utterances, nil
}

// FormatTimestamp renders a duration as mm:ss (or h:mm:ss past an hour), the
// form used in report entries and prompt lines.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
