// Package daemon coordinates the long-running GenStudio process.
//
// It wires configuration, the workflow template store, the dispatch pool,
// the generation ledger, and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon tracks every
// job it starts in an in-memory registry that feeds job listings and the
// websocket event stream, and owns completion/failure notifications.
//
// Keep orchestration logic here: job execution lives in internal/jobs and
// operation semantics in internal/generate while the daemon focuses on
// startup, shutdown, and high level coordination.
package daemon
