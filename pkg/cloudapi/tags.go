package cloudapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/sjson"

	"feedlykit/pkg/entity"
)

// FetchTags returns every tag of the user, system tags such as global.saved included.
func (c *Client) FetchTags(ctx context.Context) ([]entity.Tag, error) {
	body, err := c.do(ctx, call{op: "tags.list", method: http.MethodGet, path: "/v3/tags"})
	if err != nil {
		return nil, err
	}
	return decodeArray("tags.list", body, entity.ParseTag)
}

// FetchCategories returns every category of the user.
func (c *Client) FetchCategories(ctx context.Context) ([]entity.Category, error) {
	body, err := c.do(ctx, call{op: "categories.list", method: http.MethodGet, path: "/v3/categories"})
	if err != nil {
		return nil, err
	}
	return decodeArray("categories.list", body, entity.ParseCategory)
}

// UserTags drops system tags (global.saved, global.read, ...) from tags.
func UserTags(tags []entity.Tag) []entity.Tag {
	return lo.Filter(tags, func(t entity.Tag, _ int) bool {
		return !t.IsGlobal()
	})
}

// TagEntry attaches every tag in tagIDs to one entry. Tags that do not exist yet are created.
func (c *Client) TagEntry(ctx context.Context, tagIDs []string, entryID string) error {
	if len(tagIDs) == 0 || entryID == "" {
		return fmt.Errorf("tags.put: %w", ErrNoIDs)
	}
	body, err := sjson.SetBytes(nil, "entryId", entryID)
	if err != nil {
		return fmt.Errorf("tags.put: encode body: %w", err)
	}
	if _, err := c.do(ctx, call{
		op:     "tags.put",
		method: http.MethodPut,
		path:   "/v3/tags/" + joinIDs(tagIDs),
		body:   body,
	}); err != nil {
		return err
	}
	c.cache.remove(entryID)
	return nil
}

// TagEntries attaches every tag in tagIDs to every entry in entryIDs.
func (c *Client) TagEntries(ctx context.Context, tagIDs, entryIDs []string) error {
	if len(tagIDs) == 0 || len(entryIDs) == 0 {
		return fmt.Errorf("tags.put: %w", ErrNoIDs)
	}
	body, err := sjson.SetBytes(nil, "entryIds", entryIDs)
	if err != nil {
		return fmt.Errorf("tags.put: encode body: %w", err)
	}
	if _, err := c.do(ctx, call{
		op:     "tags.put",
		method: http.MethodPut,
		path:   "/v3/tags/" + joinIDs(tagIDs),
		body:   body,
	}); err != nil {
		return err
	}
	c.cache.remove(entryIDs...)
	return nil
}

// UntagEntries detaches every tag in tagIDs from every entry in entryIDs.
func (c *Client) UntagEntries(ctx context.Context, tagIDs, entryIDs []string) error {
	if len(tagIDs) == 0 || len(entryIDs) == 0 {
		return fmt.Errorf("tags.untag: %w", ErrNoIDs)
	}
	if _, err := c.do(ctx, call{
		op:     "tags.untag",
		method: http.MethodDelete,
		path:   "/v3/tags/" + joinIDs(tagIDs) + "/" + joinIDs(entryIDs),
	}); err != nil {
		return err
	}
	c.cache.remove(entryIDs...)
	return nil
}

// ChangeTagLabel renames a tag. The tag id is unchanged.
func (c *Client) ChangeTagLabel(ctx context.Context, tagID, label string) error {
	if tagID == "" {
		return fmt.Errorf("tags.rename: %w", ErrNoIDs)
	}
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("tags.rename: label must not be empty")
	}
	body, err := sjson.SetBytes(nil, "label", label)
	if err != nil {
		return fmt.Errorf("tags.rename: encode body: %w", err)
	}
	if _, err := c.do(ctx, call{
		op:     "tags.rename",
		method: http.MethodPost,
		path:   "/v3/tags/" + url.PathEscape(tagID),
		body:   body,
	}); err != nil {
		return err
	}
	// Cached entries carry the old label.
	c.cache.purge()
	return nil
}

// DeleteTags deletes tags. Entries lose the tags but are not deleted.
func (c *Client) DeleteTags(ctx context.Context, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return fmt.Errorf("tags.delete: %w", ErrNoIDs)
	}
	if _, err := c.do(ctx, call{
		op:     "tags.delete",
		method: http.MethodDelete,
		path:   "/v3/tags/" + joinIDs(tagIDs),
	}); err != nil {
		return err
	}
	c.cache.purge()
	return nil
}
