// Package transcribing implements the pipeline stage that extracts audio from
// footage and produces a normalized transcript using local speech recognition.
package transcribing
