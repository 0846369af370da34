package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new internal span with the given name and attributes.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// SpanFromContext returns the current span from context.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// SetSpanError marks the span as errored.
func SetSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanOK marks the span as successful.
func SetSpanOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Common attribute keys for sandbox spans.
var (
	AttrEngine     = attribute.Key("novasandbox.engine")     // js, lua, py, rb
	AttrScript     = attribute.Key("novasandbox.script")     // script identity/source name
	AttrFunction   = attribute.Key("novasandbox.function")   // callee name for call_function
	AttrRequestID  = attribute.Key("novasandbox.request_id")
	AttrDurationMs = attribute.Key("novasandbox.duration_ms")
	AttrSandboxed  = attribute.Key("novasandbox.sandboxed")
	AttrTimeout    = attribute.Key("novasandbox.timeout")
	AttrReentrant  = attribute.Key("novasandbox.reentrant")
)
