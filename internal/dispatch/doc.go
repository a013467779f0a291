// Package dispatch bounds how many jobs run against the engines at once.
// A fixed worker pool drains a bounded pending queue; submissions beyond
// the queue's capacity are rejected immediately rather than blocking the
// caller.
package dispatch
