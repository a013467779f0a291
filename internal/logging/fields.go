package logging

import (
	"context"
	"log/slog"

	"genstudio/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job correlation identifiers.
	FieldJobID = "job_id"
	// FieldOperation is the standardized structured logging key for generation operation names.
	FieldOperation = "operation"
	// FieldTemplate is the standardized structured logging key for workflow template names.
	FieldTemplate = "template"
	// FieldServer is the standardized structured logging key for engine server addresses.
	FieldServer = "server"
	// FieldState is the standardized structured logging key for job lifecycle states.
	FieldState = "state"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if op, ok := services.OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, op))
	}
	if server, ok := services.ServerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldServer, server))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
