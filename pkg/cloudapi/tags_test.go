package cloudapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"feedlykit/pkg/entity"
)

type recordedRequest struct {
	method string
	path   string
	body   gjson.Result
}

type recorder struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (r *recorder) requests() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.reqs...)
}

// recordingServer answers every request with 200 and the given body, recording requests.
func recordingServer(t *testing.T, response string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.reqs = append(rec.reqs, recordedRequest{method: r.Method, path: r.URL.EscapedPath(), body: gjson.ParseBytes(body)})
		rec.mu.Unlock()
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClient_TagRequests(t *testing.T) {
	srv, got := recordingServer(t, ``)
	c := newTestClient(t, testConfig(srv.URL, "t"))
	ctx := context.Background()
	tags := []string{"user/u1/tag/go", "user/u1/tag/read later"}

	require.NoError(t, c.TagEntry(ctx, tags, "e/1"))
	require.NoError(t, c.TagEntries(ctx, tags[:1], []string{"e1", "e2"}))
	require.NoError(t, c.UntagEntries(ctx, tags, []string{"e1", "e/2"}))
	require.NoError(t, c.ChangeTagLabel(ctx, tags[0], "golang"))
	require.NoError(t, c.DeleteTags(ctx, tags))

	reqs := got.requests()
	require.Len(t, reqs, 5)

	assert.Equal(t, http.MethodPut, reqs[0].method)
	assert.Equal(t, "/v3/tags/user%2Fu1%2Ftag%2Fgo,user%2Fu1%2Ftag%2Fread%20later", reqs[0].path)
	assert.Equal(t, "e/1", reqs[0].body.Get("entryId").String())
	assert.False(t, reqs[0].body.Get("entryIds").Exists())

	assert.Equal(t, http.MethodPut, reqs[1].method)
	assert.Equal(t, "/v3/tags/user%2Fu1%2Ftag%2Fgo", reqs[1].path)
	assert.Equal(t, `["e1","e2"]`, reqs[1].body.Get("entryIds").Raw)

	assert.Equal(t, http.MethodDelete, reqs[2].method)
	assert.Equal(t, "/v3/tags/user%2Fu1%2Ftag%2Fgo,user%2Fu1%2Ftag%2Fread%20later/e1,e%2F2", reqs[2].path)

	assert.Equal(t, http.MethodPost, reqs[3].method)
	assert.Equal(t, "/v3/tags/user%2Fu1%2Ftag%2Fgo", reqs[3].path)
	assert.Equal(t, "golang", reqs[3].body.Get("label").String())

	assert.Equal(t, http.MethodDelete, reqs[4].method)
	assert.Equal(t, "/v3/tags/user%2Fu1%2Ftag%2Fgo,user%2Fu1%2Ftag%2Fread%20later", reqs[4].path)
}

func TestClient_TagOperationsRequireIDs(t *testing.T) {
	srv, got := recordingServer(t, ``)
	c := newTestClient(t, testConfig(srv.URL, "t"))
	ctx := context.Background()

	assert.ErrorIs(t, c.TagEntry(ctx, nil, "e1"), ErrNoIDs)
	assert.ErrorIs(t, c.TagEntry(ctx, []string{"t"}, ""), ErrNoIDs)
	assert.ErrorIs(t, c.TagEntries(ctx, []string{"t"}, nil), ErrNoIDs)
	assert.ErrorIs(t, c.UntagEntries(ctx, nil, []string{"e1"}), ErrNoIDs)
	assert.ErrorIs(t, c.DeleteTags(ctx, nil), ErrNoIDs)
	assert.ErrorIs(t, c.ChangeTagLabel(ctx, "", "x"), ErrNoIDs)
	assert.Error(t, c.ChangeTagLabel(ctx, "t", "  "))
	assert.Empty(t, got.requests())
}

func TestClient_FetchTagsAndCategories(t *testing.T) {
	fake, c := newFakeClient(t)
	ctx := context.Background()
	fake.AddCategory("tech")
	seed(t, fake, `{"id":"e1","tags":[{"id":"user/`+fake.UserID()+`/tag/go","label":"go"}]}`)

	tags, err := c.FetchTags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"global.saved", "go"}, lo.Map(tags, func(t entity.Tag, _ int) string { return t.Label }))

	user := UserTags(tags)
	require.Len(t, user, 1)
	assert.Equal(t, "user/"+fake.UserID()+"/tag/go", user[0].ID)

	categories, err := c.FetchCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "tech", categories[0].Label)
}

func TestClient_FetchTags_UnexpectedBody(t *testing.T) {
	srv, _ := recordingServer(t, `{"not":"an array"}`)
	c := newTestClient(t, testConfig(srv.URL, "t"))

	_, err := c.FetchTags(context.Background())
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestClient_FetchTags_SkipsNonObjects(t *testing.T) {
	srv, _ := recordingServer(t, `[{"id":"user/u/tag/a","label":"a"}, "junk", null]`)
	c := newTestClient(t, testConfig(srv.URL, "t"))

	tags, err := c.FetchTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.Tag{{ID: "user/u/tag/a", Label: "a"}}, tags)
}

func TestClient_DeleteTagsPurgesCache(t *testing.T) {
	fake, c := newFakeClient(t)
	ctx := context.Background()
	tagID := "user/" + fake.UserID() + "/tag/go"
	seed(t, fake, `{"id":"e1","tags":[{"id":"`+tagID+`"}]}`)

	e, err := c.FetchEntry(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, e.Tags, 1)

	require.NoError(t, c.DeleteTags(ctx, []string{tagID}))
	e, err = c.FetchEntry(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, e.Tags)
	assert.Equal(t, 2, fake.Hits("entries.get"))
}
