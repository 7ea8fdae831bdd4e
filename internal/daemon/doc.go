// Package daemon coordinates the long-running vigil process.
//
// It wires configuration, the run queue, and the workflow manager into a
// single lifecycle with flock-based locking to prevent multiple instances.
// Runs left mid-stage by a previous shutdown are rolled back to the last
// durable checkpoint before processing resumes.
package daemon
