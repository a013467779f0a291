// Package notifications delivers generation lifecycle events via ntfy.
//
// The default implementation publishes to the topic configured in config.toml
// and gracefully degrades to a no-op when no topic is set, so callers never
// branch on whether notifications are enabled. All job code depends only on
// the simple Service interface.
package notifications
