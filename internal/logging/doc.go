// Package logging wraps log/slog with the conventions used across genstudio:
// a console handler for interactive use, a JSON handler for machine
// consumption, standardized field names, and attr helpers so call sites stay
// terse.
package logging
