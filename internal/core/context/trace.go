// Package context carries per-request identity through context.Context.
package context

import (
	"context"
)

// TraceContext identifies the HTTP request or worker tick a log line belongs to.
type TraceContext struct {
	TraceID   string
	RequestID string
}

type traceContextKey struct{}

// WithTrace stores trace ids on ctx.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns the trace ids stored on ctx, or nil.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// LogFields returns trace ids as key/value pairs for structured logging.
func LogFields(ctx context.Context) []any {
	t := GetTrace(ctx)
	if t == nil {
		return nil
	}
	fields := make([]any, 0, 4)
	if t.TraceID != "" {
		fields = append(fields, "trace_id", t.TraceID)
	}
	if t.RequestID != "" {
		fields = append(fields, "request_id", t.RequestID)
	}
	return fields
}
