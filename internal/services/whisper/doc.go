// Package whisper wraps local whisper.cpp transcription.
//
// This package handles:
//   - Audio extraction from source footage (mono 16kHz WAV via ffmpeg)
//   - whisper.cpp CLI invocation with JSON output
//   - Parsing whisper.cpp output into timestamped utterances
//
// Both tools run as local subprocesses; nothing leaves the machine.
package whisper
