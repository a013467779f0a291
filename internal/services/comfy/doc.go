// Package comfy implements the HTTP client for the remote node-graph
// execution engine: asset upload, prompt submission, history polling, and
// artifact download. One client instance talks to one engine server; the
// deployment runs three identical servers differentiated only by address.
package comfy
