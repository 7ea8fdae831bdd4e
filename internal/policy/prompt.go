package policy

import (
	"fmt"
	"strings"

	"vigil/internal/manualindex"
	"vigil/internal/segment"
	"vigil/internal/transcript"
)

const systemPrompt = `You are reviewing a transcript excerpt from body-worn camera footage of a law enforcement encounter. You are given numbered excerpts from the agency's procedure manuals and a timestamped portion of the transcript.

Judge whether the conduct evidenced in the transcript complies with the cited procedures. Base your judgment only on the manual excerpts provided. If the transcript does not contain enough evidence to judge, say so rather than guessing.

Respond with a single JSON object and nothing else:
{
  "category": "Compliant" | "PolicyConcern" | "Inconclusive",
  "rationale": "one or two sentences citing the relevant excerpt numbers",
  "confidence": 0.0-1.0,
  "cited_excerpts": [excerpt numbers you relied on]
}`

// approxTokens estimates the token count of a text. A rune-count heuristic is
// close enough for budget enforcement against local models.
func approxTokens(text string) int {
	return len([]rune(text))/4 + 1
}

// composePrompt renders the user prompt for a segment within the token
// budget. Excerpts arrive ordered by descending relevance; when the budget
// would be exceeded, the lowest-relevance excerpts are dropped first. The
// segment text itself is never truncated. Returns the prompt and the chunk
// IDs of the excerpts actually included, indexed by excerpt number.
func composePrompt(seg segment.Segment, matches []manualindex.Match, tokenBudget int) (string, []int64) {
	var header strings.Builder
	fmt.Fprintf(&header, "Transcript window %s to %s:\n\n", transcript.FormatTimestamp(seg.Start), transcript.FormatTimestamp(seg.End))
	header.WriteString(seg.Text())
	header.WriteString("\n\nProcedure manual excerpts:\n")

	fixed := approxTokens(systemPrompt) + approxTokens(header.String())
	budget := tokenBudget - fixed

	var included []manualindex.Match
	for _, match := range matches {
		cost := approxTokens(match.Chunk.Text) + 8
		if budget-cost < 0 && len(included) > 0 {
			break
		}
		included = append(included, match)
		budget -= cost
	}

	var body strings.Builder
	body.WriteString(header.String())
	citedIDs := make([]int64, 0, len(included))
	for i, match := range included {
		fmt.Fprintf(&body, "\n[%d] (%s)\n%s\n", i+1, match.Chunk.Source, match.Chunk.Text)
		citedIDs = append(citedIDs, match.Chunk.ID)
	}
	if len(included) == 0 {
		body.WriteString("\n(no relevant excerpts retrieved)\n")
	}
	return body.String(), citedIDs
}
