// Package segmenting implements the pipeline stage that windows a transcript
// into fixed-duration, overlapping segments for analysis.
package segmenting
