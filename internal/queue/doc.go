// Package queue persists analysis runs and their stage artifacts in SQLite.
// Each run row carries the outputs of completed stages (audio path,
// transcript, segments, report) plus progress fields; per-segment verdicts
// are stored incrementally in a companion table so a cancelled run keeps the
// verdicts it finished. The workflow manager drives runs through the status
// lifecycle defined in models.go.
package queue
