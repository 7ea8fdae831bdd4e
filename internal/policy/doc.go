// Package policy judges transcript segments against procedure-manual context
// retrieved from the manual index. Each segment's prompt combines the
// timestamped transcript window with the most relevant manual excerpts,
// bounded by a token budget; the local model's structured response becomes a
// report verdict. Inference failures are contained per segment and degrade to
// Inconclusive verdicts instead of aborting the run.
package policy
