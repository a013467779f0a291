// Package services defines shared utilities consumed by the job runner and
// the external engine integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job correlation IDs, operation names, and
//     engine addresses for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent terminal job statuses.
//
// Use these helpers when wiring new generation logic so operational behaviour
// (error handling, observability) stays uniform across operations.
package services
