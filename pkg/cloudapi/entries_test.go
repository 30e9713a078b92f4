package cloudapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"feedlykit/internal/observability/metrics"
	"feedlykit/pkg/entity"
	"feedlykit/tests/fixtures"
)

func TestClient_CreateEntry(t *testing.T) {
	fake, c := newFakeClient(t)
	ctx := context.Background()
	profile, err := c.FetchProfile(ctx)
	require.NoError(t, err)

	e := entity.NewEntry("")
	e.Title = lo.ToPtr("Created from a test")
	e.Published = 1700000000000
	e.Tags = []entity.Tag{profile.Tag("inbox")}

	ids, err := c.CreateEntry(ctx, e)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	got, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Created from a test", *got.Title)
	assert.Equal(t, int64(1700000000000), got.Published)
	require.Len(t, got.Tags, 1)
	assert.Equal(t, profile.TagID("inbox"), got.Tags[0].ID)
	assert.Equal(t, 1, fake.Hits("entries.create"))
}

func TestClient_FetchEntry_UsesCache(t *testing.T) {
	reg := prometheus.NewRegistry()
	fake, c := newFakeClient(t, WithMetrics(metrics.NewRecorder(reg)))
	ids := seed(t, fake, fixtures.FullEntryJSON)
	ctx := context.Background()

	first, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)
	second, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, "Why Go modules matter", *second.Title)
	assert.Equal(t, 1, fake.Hits("entries.get"))
	assert.Equal(t, 1.0, metricValue(t, reg, "feedly_entry_cache_lookups_total", map[string]string{"result": "hit"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "feedly_entry_cache_lookups_total", map[string]string{"result": "miss"}))

	// Replacing a field on the returned entry does not leak into the cache.
	second.Title = lo.ToPtr("changed")
	third, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Why Go modules matter", *third.Title)
}

func TestClient_FetchEntry_CacheInvalidatedByTagging(t *testing.T) {
	fake, c := newFakeClient(t)
	ids := seed(t, fake, `{"id":"e1","title":"One"}`)
	ctx := context.Background()
	profile, err := c.FetchProfile(ctx)
	require.NoError(t, err)

	before, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)
	assert.Empty(t, before.Tags)

	require.NoError(t, c.TagEntry(ctx, []string{profile.TagID("later")}, ids[0]))

	after, err := c.FetchEntry(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, after.Tags, 1)
	assert.Equal(t, "later", after.Tags[0].Label)
	assert.Equal(t, 2, fake.Hits("entries.get"))
}

func TestClient_FetchEntry_CacheDisabled(t *testing.T) {
	fake := newFakeServer(t)
	cfg := testConfig(fake.url, fake.Token())
	cfg.EntryCacheSize = 0
	c := newTestClient(t, cfg)
	ids := seed(t, fake.Server, `{"id":"e1"}`)

	for range 2 {
		_, err := c.FetchEntry(context.Background(), ids[0])
		require.NoError(t, err)
	}
	assert.Equal(t, 2, fake.Hits("entries.get"))
}

func TestClient_FetchEntry_NotFound(t *testing.T) {
	_, c := newFakeClient(t)

	_, err := c.FetchEntry(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestClient_FetchEntry_EmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	c := newTestClient(t, testConfig(srv.URL, "t"))

	_, err := c.FetchEntry(context.Background(), "gone")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestClient_FetchEntry_EscapesID(t *testing.T) {
	var rawPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawPath = r.URL.EscapedPath()
		w.Write([]byte(`{"id":"feed/x_1"}`))
	}))
	defer srv.Close()
	c := newTestClient(t, testConfig(srv.URL, "t"))

	e, err := c.FetchEntry(context.Background(), "feed/x_1")
	require.NoError(t, err)
	assert.Equal(t, "feed/x_1", e.ID)
	assert.Equal(t, "/v3/entries/feed%2Fx_1", rawPath)
}

func TestClient_FetchEntries_KeepsRequestOrder(t *testing.T) {
	fake, c := newFakeClient(t)
	seed(t, fake, `{"id":"a"}`, `{"id":"b"}`, `{"id":"c"}`)

	entries, err := c.FetchEntries(context.Background(), []string{"c", "missing", "a", "c", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, lo.Map(entries, func(e *entity.Entry, _ int) string { return e.ID }))
	assert.Equal(t, 1, fake.Hits("entries.mget"))
}

func TestClient_FetchEntries_Empty(t *testing.T) {
	fake, c := newFakeClient(t)

	entries, err := c.FetchEntries(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
	assert.Zero(t, fake.Hits("entries.mget"))
}

func TestClient_FetchEntries_Batches(t *testing.T) {
	var (
		mu      sync.Mutex
		batches []int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ids := gjson.GetBytes(body, "ids").Array()

		mu.Lock()
		batches = append(batches, len(ids))
		mu.Unlock()

		out := []byte(`[]`)
		for _, id := range ids {
			out, _ = sjson.SetRawBytes(out, "-1", []byte(fmt.Sprintf(`{"id":%q}`, id.String())))
		}
		w.Write(out)
	}))
	defer srv.Close()
	c := newTestClient(t, testConfig(srv.URL, "t"))

	ids := make([]string, 2500)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%04d", i)
	}
	entries, err := c.FetchEntries(context.Background(), ids)
	require.NoError(t, err)

	require.Len(t, entries, len(ids))
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
	assert.ElementsMatch(t, []int{1000, 1000, 500}, batches)
}

func TestClient_FetchEntries_BatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errorCode":400,"errorMessage":"too many ids"}`))
	}))
	defer srv.Close()
	c := newTestClient(t, testConfig(srv.URL, "t"))

	_, err := c.FetchEntries(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch 1/1")
	assert.Contains(t, err.Error(), "too many ids")
}

func TestClient_DecoderLogsMalformedFields(t *testing.T) {
	var seen []string
	reg := prometheus.NewRegistry()
	fake, c := newFakeClient(t, WithMetrics(metrics.NewRecorder(reg)), WithDecoder(entity.Decoder{
		OnDecode: func(e *entity.Entry, _ gjson.Result) { seen = append(seen, e.ID) },
	}))
	seed(t, fake, `{"id":"odd","title":42}`)

	e, err := c.FetchEntry(context.Background(), "odd")
	require.NoError(t, err)
	assert.Nil(t, e.Title)
	assert.Equal(t, []string{"odd"}, seen)
	assert.Equal(t, 1.0, metricValue(t, reg, "feedly_entry_malformed_fields_total", map[string]string{"field": "title"}))
}
