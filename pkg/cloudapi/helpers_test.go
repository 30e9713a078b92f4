package cloudapi

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"feedlykit/internal/fakecloud"
	"feedlykit/internal/observability/logging"
	"feedlykit/internal/resilience/retry"
)

// testConfig returns a config pointed at baseURL that retries quickly and never rate limits.
func testConfig(baseURL, token string) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.AccessToken = token
	cfg.Timeout = 5 * time.Second
	cfg.RateLimit = 0
	cfg.Retry = retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
	return cfg
}

func newTestClient(t *testing.T, cfg Config, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	return c
}

type fakeAPI struct {
	*fakecloud.Server
	url string
}

func newFakeServer(t *testing.T) *fakeAPI {
	t.Helper()
	fake := fakecloud.New()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return &fakeAPI{Server: fake, url: srv.URL}
}

// newFakeClient starts a fake API and returns a client authenticated against it.
func newFakeClient(t *testing.T, opts ...Option) (*fakecloud.Server, *Client) {
	t.Helper()
	fake := newFakeServer(t)
	return fake.Server, newTestClient(t, testConfig(fake.url, fake.Token()), opts...)
}

func seed(t *testing.T, fake *fakecloud.Server, docs ...string) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := fake.SeedEntry([]byte(doc))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

// metricValue returns the value of the counter or gauge series of name whose labels
// include want, or 0 when there is none.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			if !hasLabels(m, want) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		got[pair.GetName()] = pair.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
