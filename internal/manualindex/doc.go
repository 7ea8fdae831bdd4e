// Package manualindex builds and queries an embedded index over procedure
// manuals. Documents are chunked, embedded through a local model server, and
// persisted in SQLite keyed by a corpus fingerprint so unchanged corpora are
// never re-embedded.
package manualindex
