package otelx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// TraceContext is the W3C trace context of a span in a form that can be
// stored next to a database row and restored later.
type TraceContext struct {
	Traceparent string
	Tracestate  string
}

// CaptureTraceContext serializes the span in ctx with the global propagator.
func CaptureTraceContext(ctx context.Context) TraceContext {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return TraceContext{Traceparent: carrier.Get("traceparent"), Tracestate: carrier.Get("tracestate")}
}

// Restore returns ctx carrying tc as its remote parent. An empty tc returns ctx unchanged.
func (tc TraceContext) Restore(ctx context.Context) context.Context {
	if tc.Traceparent == "" {
		return ctx
	}
	carrier := propagation.MapCarrier{"traceparent": tc.Traceparent}
	if tc.Tracestate != "" {
		carrier.Set("tracestate", tc.Tracestate)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
