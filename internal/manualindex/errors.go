package manualindex

import "errors"

var (
	// ErrEmptyCorpus reports a build attempt with no documents.
	ErrEmptyCorpus = errors.New("manual corpus is empty")
	// ErrNotBuilt reports a query against an index that has not been built.
	ErrNotBuilt = errors.New("manual index not built")
)
