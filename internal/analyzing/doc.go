// Package analyzing implements the pipeline stage that evaluates transcript
// segments against the procedure manual index using a bounded pool of workers
// and a local inference server.
package analyzing
