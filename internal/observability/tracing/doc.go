// Package tracing provides OpenTelemetry tracing for API traffic.
//
// Transport wraps an http.RoundTripper so every outbound API call becomes a client
// span and carries W3C trace context headers. Middleware is the server-side
// counterpart used by the in-memory API server.
//
// Example usage:
//
//	httpClient := &http.Client{
//	    Transport: &tracing.Transport{Base: http.DefaultTransport},
//	}
//	ctx = tracing.WithOperation(ctx, "tags.fetch")
package tracing
