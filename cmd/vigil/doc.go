// Package main hosts the vigil CLI entrypoint and command graph.
//
// The Cobra-based command tree covers queueing footage, running the
// processing daemon, inspecting reports, and maintaining the procedure manual
// index. It centralizes configuration resolution and logging setup so
// subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
