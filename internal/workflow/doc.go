// Package workflow advances analysis runs through the configured processing
// stages.
//
// The Manager polls the run store and feeds runs into registered stage
// handlers (transcriber, segmenter, analyzer, aggregator), capturing progress
// and failure metadata. Transcription and segmentation are strictly
// sequential upstream of analysis; the analysis stage fans out internally
// over its own worker pool. Cancellation at any point persists whatever the
// interrupted run produced so far, so a reviewer sees a partial report
// instead of nothing.
package workflow
