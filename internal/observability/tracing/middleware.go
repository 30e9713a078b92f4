package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDHeader is the response header carrying the server span's trace id.
const TraceIDHeader = "X-Trace-Id"

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Handler creates a server span for each request it serves. It is the server
// side counterpart of Transport: a client span injected by Transport becomes
// the parent of the span created here.
type Handler struct {
	// Next serves the request.
	Next http.Handler
	// SpanName names the span. Nil or an empty result means "{method} {escaped path}".
	SpanName func(*http.Request) string
	// TracerProvider overrides the global provider when set.
	TracerProvider trace.TracerProvider
	// Propagator overrides the global text map propagator when set.
	Propagator propagation.TextMapPropagator
}

// Middleware wraps next in a Handler with default settings.
//
//	router := mux.NewRouter()
//	router.Use(tracing.Middleware)
func Middleware(next http.Handler) http.Handler {
	return &Handler{Next: next}
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tracer := GetTracer()
	if h.TracerProvider != nil {
		tracer = h.TracerProvider.Tracer(TracerName)
	}
	propagator := h.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := tracer.Start(ctx, h.spanName(r),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.EscapedPath()),
		),
	)
	defer span.End()

	if sc := span.SpanContext(); sc.HasTraceID() {
		w.Header().Set(TraceIDHeader, sc.TraceID().String())
	}

	rw := newStatusRecorder(w)
	h.Next.ServeHTTP(rw, r.WithContext(ctx))

	span.SetAttributes(attribute.Int("http.status_code", rw.status))
	if rw.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rw.status))
	}
}

func (h *Handler) spanName(r *http.Request) string {
	if h.SpanName != nil {
		if name := h.SpanName(r); name != "" {
			return name
		}
	}
	return r.Method + " " + r.URL.EscapedPath()
}
