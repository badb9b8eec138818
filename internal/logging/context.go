package logging

import (
	"context"
	"log/slog"

	"linkhaul/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldDownloadID is the standardized structured logging key for download identifiers.
	FieldDownloadID = "download_id"
	// FieldContainerID is the standardized structured logging key for container identifiers.
	FieldContainerID = "container_id"
	// FieldEngineHandle is the standardized structured logging key for engine handles (aria2 GIDs).
	FieldEngineHandle = "engine_handle"
	// FieldURL is the standardized structured logging key for source URLs.
	FieldURL = "url"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the operator's next step.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.ContainerIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldContainerID, id))
	}
	if id, ok := services.DownloadIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldDownloadID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
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
	return logger.With(Args(fields...)...)
}
