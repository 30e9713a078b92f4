// Package logging provides structured logging utilities with context propagation.
//
// This package wraps the standard library's log/slog package with helper functions
// for the logging patterns shared by the API client, the fake API server and the CLI.
//
// Key features:
//   - JSON and text output formats
//   - Request ID propagation
//   - Context-aware logging
//   - Configurable log levels
//
// Example usage:
//
//	import "feedlykit/internal/observability/logging"
//
//	func main() {
//	    logger := logging.New(os.Stderr, logging.OptionsFromEnv())
//	    logger.Info("watch started", slog.String("stream", streamID))
//	}
//
//	func handle(ctx context.Context) {
//	    logger := logging.WithRequestID(ctx, slog.Default())
//	    logger.Info("request served")
//	}
package logging
