// Package internal holds small ambient helpers (tracing, logging
// conventions) shared by the sync3 engine, its transport, and the example
// CLI, mirroring the calling conventions dendrite's syncapi uses for
// per-request spans and structured log fields.
package internal

import (
	"context"

	"github.com/opentracing/opentracing-go"
)

// StartSpan starts a child span named operationName under the span (if any)
// carried by ctx, and returns the span together with a context carrying it.
// Callers must call span.Finish() (usually via defer).
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	span, spanCtx := opentracing.StartSpanFromContext(ctx, operationName)
	return span, spanCtx
}

// SetTag is a small convenience wrapper so call sites read like
// span.SetTag(...) without importing opentracing directly everywhere.
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span == nil {
		return
	}
	span.SetTag(key, value)
}
