// Package cloudapi is a client for the Feedly Cloud API v3.
//
// Every call goes through the same pipeline: the client-side token bucket, the
// shared circuit breaker, retry with exponential backoff for idempotent calls,
// and an HTTP transport that stamps request ids and trace context. Responses
// are decoded into pkg/entity models.
package cloudapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"feedlykit/internal/observability/logging"
	"feedlykit/internal/observability/metrics"
	"feedlykit/internal/observability/tracing"
	"feedlykit/internal/requestid"
	"feedlykit/internal/resilience/circuitbreaker"
	"feedlykit/internal/resilience/retry"
	"feedlykit/pkg/entity"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 32 << 20

// Metrics records client activity. *metrics.Recorder implements it.
type Metrics interface {
	entity.DecodeRecorder
	RecordRequest(endpoint, method string, status int, duration time.Duration)
	RecordRetry(endpoint string)
	RecordRateLimitWait(d time.Duration)
	RecordBreakerState(name string, state gobreaker.State)
	RecordCacheLookup(hit bool)
}

// Client talks to the Feedly Cloud API. It is safe for concurrent use.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Metrics
	decoder    entity.Decoder
	limiter    *rate.Limiter
	breaker    *circuitbreaker.CircuitBreaker
	cache      *entryCache

	mu      sync.RWMutex
	token   string
	profile *entity.Profile
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its transport is wrapped with request id
// and tracing transports; the client itself is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for request and decode logs.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithDecoder sets the entry decoder. Its Logger and Metrics default to the
// client's when unset.
func WithDecoder(d entity.Decoder) Option {
	return func(c *Client) {
		c.decoder = d
	}
}

// NewClient creates a client from cfg.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:     cfg,
		baseURL: cfg.Endpoint(),
		logger:  slog.Default(),
		metrics: metrics.Noop{},
		token:   cfg.AccessToken,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = wrapHTTPClient(c.httpClient, cfg.Timeout)
	if c.decoder.Logger == nil {
		c.decoder.Logger = c.logger
	}
	if c.decoder.Metrics == nil {
		c.decoder.Metrics = c.metrics
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	breakerCfg := cfg.Breaker
	if breakerCfg.Logger == nil {
		breakerCfg.Logger = c.logger
	}
	userIsFailure := breakerCfg.IsFailure
	breakerCfg.IsFailure = func(err error) bool {
		if userIsFailure != nil {
			return userIsFailure(err)
		}
		// Client errors (4xx other than 408/429) mean the request was wrong, not that the API is down.
		return retry.IsRetryable(err)
	}
	userOnStateChange := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(name string, from, to gobreaker.State) {
		c.metrics.RecordBreakerState(name, to)
		if userOnStateChange != nil {
			userOnStateChange(name, from, to)
		}
	}
	c.breaker = circuitbreaker.New(breakerCfg)
	c.metrics.RecordBreakerState(c.breaker.Name(), c.breaker.State())

	cache, err := newEntryCache(cfg.EntryCacheSize, c.metrics)
	if err != nil {
		return nil, fmt.Errorf("create entry cache: %w", err)
	}
	c.cache = cache

	return c, nil
}

func wrapHTTPClient(hc *http.Client, timeout time.Duration) *http.Client {
	var out http.Client
	if hc != nil {
		out = *hc
	}
	if out.Timeout == 0 {
		out.Timeout = timeout
	}
	out.Transport = &tracing.Transport{
		Base: &requestid.Transport{Base: out.Transport},
	}
	return &out
}

// SetAccessToken replaces the OAuth access token used by subsequent calls.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != c.token {
		c.profile = nil
	}
	c.token = token
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BreakerState returns the state of the client's circuit breaker.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// call describes one API request.
type call struct {
	// op names the operation in metrics, spans and logs, e.g. "tags.put".
	op     string
	method string
	// path is the already escaped request path, e.g. "/v3/tags/user%2F1%2Ftag%2Fgo".
	path  string
	query url.Values
	body  []byte
	// once disables retries for calls that are not idempotent.
	once bool
}

// do runs c through the request pipeline and returns the 2xx response body.
func (c *Client) do(ctx context.Context, req call) ([]byte, error) {
	token := c.AccessToken()
	if token == "" {
		return nil, fmt.Errorf("%s: %w", req.op, ErrNoAccessToken)
	}

	ctx = tracing.WithOperation(ctx, "feedly."+req.op)
	ctx, _ = requestid.Ensure(ctx)
	logger := logging.WithRequestID(ctx, c.logger)

	retryCfg := c.cfg.Retry
	if req.once {
		retryCfg = retry.SingleAttemptConfig()
	}
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.metrics.RecordRetry(req.op)
	}

	start := time.Now()
	var (
		body   []byte
		status int
	)
	err := retry.WithBackoff(ctx, retryCfg, func() error {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		c.metrics.RecordRateLimitWait(time.Since(waitStart))

		res, err := circuitbreaker.Do(c.breaker, func() (response, error) {
			return c.roundTrip(ctx, req, token)
		})
		status = res.status
		body = res.body
		return err
	})
	elapsed := time.Since(start)
	c.metrics.RecordRequest(req.op, req.method, status, elapsed)

	if err != nil {
		logger.Debug("feedly API call failed",
			slog.String("op", req.op),
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("status", status),
			slog.Duration("duration", elapsed),
			slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", req.op, err)
	}

	logger.Debug("feedly API call",
		slog.String("op", req.op),
		slog.String("method", req.method),
		slog.String("path", req.path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed))
	return body, nil
}

type response struct {
	status int
	body   []byte
}

func (c *Client) roundTrip(ctx context.Context, req call, token string) (response, error) {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var reqBody io.Reader
	if req.body != nil {
		reqBody = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, reqBody)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return response{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return response{status: resp.StatusCode}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return response{status: resp.StatusCode}, newAPIError(resp.StatusCode, resp.Header, body)
	}
	return response{status: resp.StatusCode, body: body}, nil
}

// joinIDs path-escapes each id and joins them with commas, the API's list separator.
func joinIDs(ids []string) string {
	escaped := make([]string, len(ids))
	for i, id := range ids {
		escaped[i] = url.PathEscape(id)
	}
	return strings.Join(escaped, ",")
}
