// Package preflight provides readiness checks for the engine endpoints and
// filesystem paths that GenStudio depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures without refusing
//     to start, since an engine may come up later.
//   - The CLI "genstudio status" command uses the same results to display
//     environment health before a user queues work.
//
// Engine checks are best-effort connectivity probes, not API validation.
package preflight
