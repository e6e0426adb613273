package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// tracer is nil until a Provider starts, in which case spans are no-ops.
var tracer trace.Tracer

func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span of whatever ctx carries.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name)
}

func StartSpanWithAttributes(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan marks span with the outcome of err and ends it.
func EndSpan(span trace.Span, err error) {
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// active reports the span context of a recording trace, if any.
func active(ctx context.Context) (trace.SpanContext, bool) {
	if tracer == nil {
		return trace.SpanContext{}, false
	}
	sc := trace.SpanContextFromContext(ctx)
	return sc, sc.IsValid()
}

func GetTraceID(ctx context.Context) string {
	if sc, ok := active(ctx); ok {
		return sc.TraceID().String()
	}
	return ""
}

func GetSpanID(ctx context.Context) string {
	if sc, ok := active(ctx); ok {
		return sc.SpanID().String()
	}
	return ""
}

// Headers returns the W3C traceparent and tracestate for ctx. The map is
// empty when no trace is active.
func Headers(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	if _, ok := active(ctx); ok {
		propagation.TraceContext{}.Inject(ctx, carrier)
	}
	return carrier
}

func GetTraceParent(ctx context.Context) string {
	return Headers(ctx)["traceparent"]
}
