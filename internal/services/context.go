package services

import "context"

type contextKey string

const (
	downloadIDKey  contextKey = "download_id"
	containerIDKey contextKey = "container_id"
	requestIDKey   contextKey = "request_id"
)

// WithDownloadID annotates context with the download identifier.
func WithDownloadID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, downloadIDKey, id)
}

// DownloadIDFromContext extracts the download identifier if present.
func DownloadIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, downloadIDKey)
}

// WithContainerID annotates context with the container identifier.
func WithContainerID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, containerIDKey, id)
}

// ContainerIDFromContext extracts the container identifier if present.
func ContainerIDFromContext(ctx context.Context) (int64, bool) {
	return int64Value(ctx, containerIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64Value(ctx context.Context, key contextKey) (int64, bool) {
	v := ctx.Value(key)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}
