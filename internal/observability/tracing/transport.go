package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Transport creates a client span for each outbound request and injects the
// trace context into the request headers.
//
// The span is named after the operation set with WithOperation, falling back
// to "HTTP {method}". Responses with status >= 500 and transport errors mark
// the span as failed.
type Transport struct {
	// Base is the underlying transport. Nil means http.DefaultTransport.
	Base http.RoundTripper
	// TracerProvider overrides the global provider when set.
	TracerProvider trace.TracerProvider
	// Propagator overrides the global text map propagator when set.
	Propagator propagation.TextMapPropagator
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	tracer := GetTracer()
	if t.TracerProvider != nil {
		tracer = t.TracerProvider.Tracer(TracerName)
	}
	propagator := t.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	name := OperationFromContext(req.Context())
	if name == "" {
		name = "HTTP " + req.Method
	}

	ctx, span := tracer.Start(req.Context(), name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.path", req.URL.Path),
			attribute.String("net.peer.name", req.URL.Hostname()),
		),
	)
	defer span.End()

	out := req.Clone(ctx)
	propagator.Inject(ctx, propagation.HeaderCarrier(out.Header))

	resp, err := base.RoundTrip(out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= 500 {
		span.SetStatus(codes.Error, resp.Status)
		span.SetAttributes(attribute.Bool("error", true))
	}
	return resp, nil
}
