// Package aggregating implements the pipeline stage that folds per-segment
// verdicts into the final timeline report.
package aggregating
