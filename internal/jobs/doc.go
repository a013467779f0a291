// Package jobs runs generation jobs against the remote engine: upload inputs,
// patch the template, submit, poll for completion, and download the selected
// artifact.
//
// A job's progress surfaces as a channel of Updates. The channel is the lazy
// progress sequence consumers iterate; it closes after the terminal update,
// and the last update carrying a non-empty Artifact is the result. Every
// failure mode ends the sequence with a terminal status message; nothing
// escapes as a panic into the consumer.
package jobs
