package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

const namespace = "feedly"

// Recorder records API client and model decoding metrics.
// It satisfies entity.DecodeRecorder and the cloudapi metrics interface.
type Recorder struct {
	// API call metrics track request patterns and latency per endpoint
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	rateLimitWait   prometheus.Histogram
	breakerState    *prometheus.GaugeVec

	// Model metrics track decode quality of API documents
	entriesDecoded  prometheus.Counter
	malformedFields *prometheus.CounterVec
	decodeFailures  *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
}

// NewRecorder creates a Recorder and registers its collectors on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method and status",
			},
			[]string{"endpoint", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds, including retries",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_retries_total",
				Help:      "Total number of retried API attempts",
			},
			[]string{"endpoint"},
		),
		rateLimitWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_rate_limit_wait_seconds",
				Help:      "Time spent waiting for the client-side rate limiter",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		entriesDecoded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entries_decoded_total",
				Help:      "Total number of entries decoded from API documents",
			},
		),
		malformedFields: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_malformed_fields_total",
				Help:      "Total number of entry fields skipped because of an unexpected JSON type",
			},
			[]string{"field"},
		),
		decodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_decode_failures_total",
				Help:      "Total number of entry documents that could not be decoded",
			},
			[]string{"reason"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entry_cache_lookups_total",
				Help:      "Entry cache lookups by result (hit, miss)",
			},
			[]string{"result"},
		),
	}
}

// RecordRequest records one logical API call. Status is the HTTP status code,
// or 0 when no response was received.
func (r *Recorder) RecordRequest(endpoint, method string, status int, duration time.Duration) {
	statusLabel := "error"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	r.requestsTotal.WithLabelValues(endpoint, method, statusLabel).Inc()
	r.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry counts one retried attempt.
func (r *Recorder) RecordRetry(endpoint string) {
	r.retriesTotal.WithLabelValues(endpoint).Inc()
}

// RecordRateLimitWait records time spent blocked on the rate limiter.
func (r *Recorder) RecordRateLimitWait(d time.Duration) {
	r.rateLimitWait.Observe(d.Seconds())
}

// RecordBreakerState records the current state of a circuit breaker.
func (r *Recorder) RecordBreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	r.breakerState.WithLabelValues(name).Set(v)
}

// RecordCacheLookup counts an entry cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// RecordEntryDecoded implements entity.DecodeRecorder.
func (r *Recorder) RecordEntryDecoded() {
	r.entriesDecoded.Inc()
}

// RecordMalformedField implements entity.DecodeRecorder.
func (r *Recorder) RecordMalformedField(field string) {
	r.malformedFields.WithLabelValues(field).Inc()
}

// RecordDecodeFailure implements entity.DecodeRecorder.
func (r *Recorder) RecordDecodeFailure(reason string) {
	r.decodeFailures.WithLabelValues(reason).Inc()
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordRequest(string, string, int, time.Duration) {}
func (Noop) RecordRetry(string)                               {}
func (Noop) RecordRateLimitWait(time.Duration)                {}
func (Noop) RecordBreakerState(string, gobreaker.State)       {}
func (Noop) RecordCacheLookup(bool)                           {}
func (Noop) RecordEntryDecoded()                              {}
func (Noop) RecordMalformedField(string)                      {}
func (Noop) RecordDecodeFailure(string)                       {}
