// Package tracectx propagates a per-event trace ID through context.
// The ingestion boundary (out of process) assigns one ID per submitted
// payload; every log line produced while that payload moves through the
// pipeline carries it.
package tracectx

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const traceIDKey = contextKey("trace-id")

// WithTraceID returns a context carrying the given trace ID.
// An empty id is replaced with a freshly generated UUID.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.New().String()
	}
	return context.WithValue(ctx, traceIDKey, id)
}

// TraceID extracts the trace ID from the context.
// Returns empty string if not found.
func TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(traceIDKey).(string); ok {
		return id
	}
	return ""
}
