package cloudapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/sjson"
)

// MarkerAction is the read-state change applied by a markers call.
type MarkerAction string

const (
	MarkAsRead    MarkerAction = "markAsRead"
	KeepUnread    MarkerAction = "keepUnread"
	MarkAsSaved   MarkerAction = "markAsSaved"
	MarkAsUnsaved MarkerAction = "markAsUnsaved"
)

// MarkEntriesAsRead marks entries read.
func (c *Client) MarkEntriesAsRead(ctx context.Context, entryIDs []string) error {
	return c.markEntries(ctx, MarkAsRead, entryIDs)
}

// KeepEntriesAsUnread marks entries unread again.
func (c *Client) KeepEntriesAsUnread(ctx context.Context, entryIDs []string) error {
	return c.markEntries(ctx, KeepUnread, entryIDs)
}

// MarkEntriesAsSaved adds entries to the global.saved tag.
func (c *Client) MarkEntriesAsSaved(ctx context.Context, entryIDs []string) error {
	return c.markEntries(ctx, MarkAsSaved, entryIDs)
}

// MarkEntriesAsUnsaved removes entries from the global.saved tag.
func (c *Client) MarkEntriesAsUnsaved(ctx context.Context, entryIDs []string) error {
	return c.markEntries(ctx, MarkAsUnsaved, entryIDs)
}

func (c *Client) markEntries(ctx context.Context, action MarkerAction, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return fmt.Errorf("markers.%s: %w", action, ErrNoIDs)
	}

	body := []byte(`{"type":"entries"}`)
	body, err := sjson.SetBytes(body, "action", string(action))
	if err == nil {
		body, err = sjson.SetBytes(body, "entryIds", entryIDs)
	}
	if err != nil {
		return fmt.Errorf("markers.%s: encode body: %w", action, err)
	}

	if _, err := c.do(ctx, call{
		op:     "markers." + string(action),
		method: http.MethodPost,
		path:   "/v3/markers",
		body:   body,
	}); err != nil {
		return err
	}
	c.cache.remove(entryIDs...)
	return nil
}
