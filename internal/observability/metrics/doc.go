// Package metrics provides Prometheus recorders for the API client.
//
// Metrics are registered on a caller-supplied registerer so tests and
// embedding applications can keep them off the default registry.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	rec := metrics.NewRecorder(reg)
//	client, err := cloudapi.NewClient(cfg, cloudapi.WithMetrics(rec))
package metrics
