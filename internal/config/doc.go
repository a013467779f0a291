// Package config loads, normalizes, and validates the TOML configuration used
// by the genstudio CLI and daemon.
package config
