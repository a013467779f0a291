// Package history persists a ledger of generation jobs in SQLite. Each run
// is recorded when it is submitted and finalized with its terminal state and
// artifact path, giving the CLI and HTTP API a durable view of past work.
package history
