// Package transcript defines the utterance model shared by the transcription,
// segmentation, and analysis stages, plus the JSON artifact format persisted
// on run rows.
package transcript
