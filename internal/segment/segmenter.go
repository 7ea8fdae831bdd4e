package segment

import (
	"errors"
	"fmt"
	"iter"
	"time"

	"vigil/internal/transcript"
)

// ErrInvalidConfig reports unusable windowing parameters.
var ErrInvalidConfig = errors.New("invalid segmenter config")

// Segmenter slices an ordered utterance stream into analysis windows of a
// target duration, carrying a configured overlap between consecutive windows
// so no utterance is ever analyzed with zero context at a boundary.
type Segmenter struct {
	target  time.Duration
	overlap time.Duration
}

// New validates windowing parameters and returns a Segmenter. The overlap must
// be non-negative and strictly shorter than the target window.
func New(target, overlap time.Duration) (*Segmenter, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: target window must be positive, got %s", ErrInvalidConfig, target)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %s", ErrInvalidConfig, overlap)
	}
	if overlap >= target {
		return nil, fmt.Errorf("%w: overlap %s must be shorter than target window %s", ErrInvalidConfig, overlap, target)
	}
	return &Segmenter{target: target, overlap: overlap}, nil
}

// Target returns the configured window duration.
func (s *Segmenter) Target() time.Duration { return s.target }

// Overlap returns the configured overlap duration.
func (s *Segmenter) Overlap() time.Duration { return s.overlap }

// Windows lazily yields segments covering the full utterance span in timeline
// order. Window starts advance by target-overlap so consecutive windows share
// exactly the configured overlap; the trailing window is clipped to the final
// utterance end rather than padded. An utterance that individually exceeds the
// target duration is yielded alone in its own segment instead of being split
// mid-turn. Silent stretches never open a hole: when no speech falls inside a
// window, the following segment is widened backward so consecutive segments
// always abut and every timestamp in the span belongs to a segment.
func (s *Segmenter) Windows(utterances []transcript.Utterance) iter.Seq[Segment] {
	target := s.target
	step := s.target - s.overlap

	return func(yield func(Segment) bool) {
		us := transcript.Normalize(utterances)
		if len(us) == 0 {
			return
		}

		timelineEnd := us[0].End
		for _, u := range us {
			if u.End > timelineEnd {
				timelineEnd = u.End
			}
		}

		oversizedDone := make(map[int]bool)
		id := 0
		winStart := us[0].Start
		covered := us[0].Start

		emit := func(seg Segment) bool {
			if seg.Start > covered {
				seg.Start = covered
			}
			if seg.End > covered {
				covered = seg.End
			}
			return yield(seg)
		}

		for winStart < timelineEnd {
			winEnd := winStart + target
			clippedEnd := winEnd
			if clippedEnd > timelineEnd {
				clippedEnd = timelineEnd
			}

			var members []transcript.Utterance
			var oversized []int
			for i, u := range us {
				if u.Start < winStart || u.Start >= winEnd {
					continue
				}
				if u.Duration() > target {
					if !oversizedDone[i] {
						oversized = append(oversized, i)
					}
					continue
				}
				members = append(members, u)
			}

			if len(members) > 0 {
				seg := Segment{ID: id, Start: winStart, End: clippedEnd, Utterances: members}
				id++
				if !emit(seg) {
					return
				}
			}
			for _, i := range oversized {
				oversizedDone[i] = true
				u := us[i]
				seg := Segment{ID: id, Start: u.Start, End: u.End, Utterances: []transcript.Utterance{u}}
				id++
				if !emit(seg) {
					return
				}
			}

			if winEnd >= timelineEnd {
				break
			}
			winStart += step
		}

		// An utterance can outlast every window that contains its start.
		// Close the span with a final segment so its tail is still owned.
		if covered < timelineEnd {
			var tail []transcript.Utterance
			for _, u := range us {
				if u.End > covered {
					tail = append(tail, u)
				}
			}
			emit(Segment{ID: id, Start: covered, End: timelineEnd, Utterances: tail})
		}
	}
}

// Plan collects the full window sequence into a slice.
func (s *Segmenter) Plan(utterances []transcript.Utterance) []Segment {
	var segments []Segment
	for seg := range s.Windows(utterances) {
		segments = append(segments, seg)
	}
	return segments
}
