package cloudapi

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedlykit/internal/observability/logging"
	"feedlykit/pkg/entity"
)

// workflowClient returns a client for the tag workflow. With FEEDLY_ACCESS_TOKEN set it
// talks to the real API (FEEDLY_TARGET picks the deployment); otherwise to a seeded fake.
func workflowClient(t *testing.T) *Client {
	t.Helper()
	if os.Getenv("FEEDLY_ACCESS_TOKEN") != "" {
		if testing.Short() {
			t.Skip("live API workflow skipped in short mode")
		}
		cfg, err := LoadConfigFromEnv(logging.Discard(), nil)
		require.NoError(t, err)
		return newTestClient(t, cfg)
	}

	fake, c := newFakeClient(t)
	for i := range 3 {
		seed(t, fake, fmt.Sprintf(`{
			"id": "workflow_%d",
			"title": "Workflow entry %d",
			"published": %d,
			"origin": {"streamId": "feed/https://blog.example.com/rss", "title": "Example"}
		}`, i, i, time.Date(2026, 10, 1, i, 0, 0, 0, time.UTC).UnixMilli()))
	}
	return c
}

func tagLabels(tags []entity.Tag) []string {
	return lo.Map(tags, func(t entity.Tag, _ int) string { return t.Label })
}

func TestTagWorkflow(t *testing.T) {
	c := workflowClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	step := func(name string, fn func(t *testing.T)) {
		if !t.Run(name, fn) {
			t.FailNow()
		}
	}

	var (
		profile  *entity.Profile
		entries  []*entity.Entry
		entryIDs []string
		tagID    string
	)

	step("fetch tags excludes global tags", func(t *testing.T) {
		tags, err := c.FetchTags(ctx)
		require.NoError(t, err)
		for _, tag := range UserTags(tags) {
			assert.False(t, strings.Contains(tag.ID, "tag/global."), tag.ID)
		}
	})

	step("create entry with a new tag", func(t *testing.T) {
		var err error
		profile, err = c.Profile(ctx)
		require.NoError(t, err)
		entries, err = c.FetchLatestEntries(ctx, 3)
		require.NoError(t, err)
		require.NotEmpty(t, entries, "the account needs at least one entry")
		entryIDs = lo.Map(entries, func(e *entity.Entry, _ int) string { return e.ID })

		label := "test_" + uuid.NewString()
		tagID = profile.TagID(label)

		e := *entries[0]
		e.Tags = []entity.Tag{profile.Tag(label)}
		_, err = c.CreateEntry(ctx, &e)
		require.NoError(t, err)

		tags, err := c.FetchTags(ctx)
		require.NoError(t, err)
		assert.Contains(t, tagLabels(tags), label)
	})

	step("tag one entry", func(t *testing.T) {
		require.NoError(t, c.TagEntry(ctx, []string{tagID}, entryIDs[0]))

		page, err := c.FetchContents(ctx, tagID, PaginationParams{Count: 100})
		require.NoError(t, err)
		titles := lo.FilterMap(page.Items, func(e *entity.Entry, _ int) (string, bool) {
			return lo.FromPtr(e.Title), e.Title != nil
		})
		assert.Contains(t, titles, lo.FromPtr(entries[0].Title))
	})

	step("tag several entries", func(t *testing.T) {
		require.NoError(t, c.TagEntries(ctx, []string{tagID}, entryIDs))

		page, err := c.FetchEntryIDs(ctx, tagID, PaginationParams{Count: 100})
		require.NoError(t, err)
		assert.Subset(t, page.IDs, entryIDs)
	})

	step("rename tag", func(t *testing.T) {
		require.NoError(t, c.ChangeTagLabel(ctx, tagID, "changed_test"))

		tags, err := c.FetchTags(ctx)
		require.NoError(t, err)
		assert.Contains(t, tagLabels(tags), "changed_test")
	})

	step("untag entries", func(t *testing.T) {
		require.NoError(t, c.UntagEntries(ctx, []string{tagID}, entryIDs))

		page, err := c.FetchEntryIDs(ctx, tagID, PaginationParams{Count: 100})
		require.NoError(t, err)
		for _, id := range entryIDs {
			assert.NotContains(t, page.IDs, id)
		}
	})

	step("delete tags", func(t *testing.T) {
		count := func() int {
			tags, err := c.FetchTags(ctx)
			require.NoError(t, err)
			return len(UserTags(tags))
		}

		before := count()
		extra := profile.TagID("delete_me_" + uuid.NewString())
		require.NoError(t, c.TagEntry(ctx, []string{extra}, entryIDs[0]))
		assert.Equal(t, before+1, count())

		require.NoError(t, c.DeleteTags(ctx, []string{extra}))
		assert.Equal(t, before, count())

		require.NoError(t, c.DeleteTags(ctx, []string{tagID}))
		assert.Equal(t, before-1, count())
	})
}
