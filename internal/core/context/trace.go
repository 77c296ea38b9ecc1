package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext builds a TraceContext for a request. When an OpenTelemetry
// span is active its identifiers win over generated ones.
func NewTraceContext(ctx context.Context, requestID, traceID string) *TraceContext {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	tc := &TraceContext{RequestID: requestID, TraceID: traceID}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		tc.TraceID = sc.TraceID().String()
		tc.SpanID = sc.SpanID().String()
	}
	if tc.TraceID == "" {
		tc.TraceID = uuid.NewString()
	}
	return tc
}
