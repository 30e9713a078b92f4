// Package observability groups the logging, metrics and tracing support used by the
// API client, the fake API server and the CLI.
//
// Subpackages:
//   - logging: slog loggers configured from LOG_LEVEL and LOG_FORMAT, context propagation
//   - metrics: Prometheus recorders for API calls, entry decoding and caching
//   - tracing: OpenTelemetry client transport and server middleware
package observability
