package cloudapi

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_MarkerBodies(t *testing.T) {
	srv, got := recordingServer(t, ``)
	c := newTestClient(t, testConfig(srv.URL, "t"))
	ctx := context.Background()
	ids := []string{"e1", "e2"}

	require.NoError(t, c.MarkEntriesAsRead(ctx, ids))
	require.NoError(t, c.KeepEntriesAsUnread(ctx, ids))
	require.NoError(t, c.MarkEntriesAsSaved(ctx, ids))
	require.NoError(t, c.MarkEntriesAsUnsaved(ctx, ids))

	reqs := got.requests()
	require.Len(t, reqs, 4)
	for i, action := range []string{"markAsRead", "keepUnread", "markAsSaved", "markAsUnsaved"} {
		assert.Equal(t, "/v3/markers", reqs[i].path)
		assert.Equal(t, action, reqs[i].body.Get("action").String())
		assert.Equal(t, "entries", reqs[i].body.Get("type").String())
		assert.Equal(t, `["e1","e2"]`, reqs[i].body.Get("entryIds").Raw)
	}

	assert.ErrorIs(t, c.MarkEntriesAsRead(ctx, nil), ErrNoIDs)
}

func TestClient_MarkersChangeReadState(t *testing.T) {
	fake, c := newFakeClient(t)
	ctx := context.Background()
	seed(t, fake, `{"id":"e1"}`, `{"id":"e2"}`)
	profile, err := c.FetchProfile(ctx)
	require.NoError(t, err)

	e, err := c.FetchEntry(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, e.Unread)

	require.NoError(t, c.MarkEntriesAsRead(ctx, []string{"e1"}))
	e, err = c.FetchEntry(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, e.Unread)

	unread := true
	page, err := c.FetchEntryIDs(ctx, profile.GlobalAllID(), PaginationParams{UnreadOnly: &unread})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, page.IDs)

	require.NoError(t, c.MarkEntriesAsSaved(ctx, []string{"e2"}))
	saved, err := c.FetchEntryIDs(ctx, profile.GlobalSavedID(), PaginationParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"e2"}, saved.IDs)
}
