package cloudapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"feedlykit/pkg/entity"
)

// Ranking orders stream pages.
const (
	RankedNewest = "newest"
	RankedOldest = "oldest"
)

// PaginationParams selects one page of a stream. Zero fields are not sent and the
// API defaults apply (20 items, newest first, read and unread).
type PaginationParams struct {
	Count        int
	Ranked       string
	UnreadOnly   *bool
	NewerThan    int64
	Continuation string
}

// Validate rejects values the API would refuse.
func (p PaginationParams) Validate() error {
	if p.Count < 0 || p.Count > 10000 {
		return fmt.Errorf("count must be in [0, 10000], got %d", p.Count)
	}
	if p.Ranked != "" && p.Ranked != RankedNewest && p.Ranked != RankedOldest {
		return fmt.Errorf("ranked must be %q or %q, got %q", RankedNewest, RankedOldest, p.Ranked)
	}
	if p.NewerThan < 0 {
		return fmt.Errorf("newerThan must not be negative, got %d", p.NewerThan)
	}
	return nil
}

func (p PaginationParams) query(streamID string) url.Values {
	q := url.Values{"streamId": {streamID}}
	if p.Count > 0 {
		q.Set("count", strconv.Itoa(p.Count))
	}
	if p.Ranked != "" {
		q.Set("ranked", p.Ranked)
	}
	if p.UnreadOnly != nil {
		q.Set("unreadOnly", strconv.FormatBool(*p.UnreadOnly))
	}
	if p.NewerThan > 0 {
		q.Set("newerThan", strconv.FormatInt(p.NewerThan, 10))
	}
	if p.Continuation != "" {
		q.Set("continuation", p.Continuation)
	}
	return q
}

// PaginatedEntries is one page of a stream's contents.
// Continuation is empty on the last page.
type PaginatedEntries struct {
	ID           string
	Updated      *int64
	Continuation string
	Items        []*entity.Entry
}

// PaginatedEntryIDs is one page of a stream's entry ids.
type PaginatedEntryIDs struct {
	IDs          []string
	Continuation string
}

// FetchContents returns one page of the entries in a stream (a feed, category or tag id).
func (c *Client) FetchContents(ctx context.Context, streamID string, params PaginationParams) (*PaginatedEntries, error) {
	if streamID == "" {
		return nil, fmt.Errorf("streams.contents: %w", ErrNoIDs)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("streams.contents: %w", err)
	}

	body, err := c.do(ctx, call{
		op:     "streams.contents",
		method: http.MethodGet,
		path:   "/v3/streams/contents",
		query:  params.query(streamID),
	})
	if err != nil {
		return nil, err
	}
	doc, err := parseObject("streams.contents", body)
	if err != nil {
		return nil, err
	}

	page := &PaginatedEntries{
		ID:           doc.Get("id").String(),
		Continuation: doc.Get("continuation").String(),
		Items:        []*entity.Entry{},
	}
	if updated := doc.Get("updated"); updated.Type == gjson.Number {
		v := updated.Int()
		page.Updated = &v
	}
	if items := doc.Get("items"); items.IsArray() {
		entries, err := c.decoder.EntriesFromResult(items)
		if err != nil {
			return nil, fmt.Errorf("streams.contents: %w", err)
		}
		page.Items = entries
	}
	return page, nil
}

// FetchEntryIDs returns one page of the entry ids in a stream.
func (c *Client) FetchEntryIDs(ctx context.Context, streamID string, params PaginationParams) (*PaginatedEntryIDs, error) {
	if streamID == "" {
		return nil, fmt.Errorf("streams.ids: %w", ErrNoIDs)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("streams.ids: %w", err)
	}

	body, err := c.do(ctx, call{
		op:     "streams.ids",
		method: http.MethodGet,
		path:   "/v3/streams/ids",
		query:  params.query(streamID),
	})
	if err != nil {
		return nil, err
	}
	doc, err := parseObject("streams.ids", body)
	if err != nil {
		return nil, err
	}

	page := &PaginatedEntryIDs{
		IDs:          []string{},
		Continuation: doc.Get("continuation").String(),
	}
	doc.Get("ids").ForEach(func(_, node gjson.Result) bool {
		if node.Type == gjson.String {
			page.IDs = append(page.IDs, node.String())
		}
		return true
	})
	return page, nil
}

// FetchLatestEntries returns the newest entries across all of the user's subscriptions.
func (c *Client) FetchLatestEntries(ctx context.Context, count int) ([]*entity.Entry, error) {
	profile, err := c.Profile(ctx)
	if err != nil {
		return nil, err
	}
	page, err := c.FetchContents(ctx, profile.GlobalAllID(), PaginationParams{Count: count})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func parseObject(op string, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: %w: invalid JSON", op, ErrUnexpectedResponse)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return gjson.Result{}, fmt.Errorf("%s: %w: expected object, got %s", op, ErrUnexpectedResponse, doc.Type)
	}
	return doc, nil
}

// ErrPagerDone is returned by StreamPager.Next after the last page.
var ErrPagerDone = errors.New("no more pages")

// StreamPager walks a stream page by page, following continuation tokens.
//
//	pager := client.NewStreamPager(tagID, cloudapi.PaginationParams{Count: 100})
//	for pager.HasNext() {
//		page, err := pager.Next(ctx)
//		...
//	}
type StreamPager struct {
	client   *Client
	streamID string
	params   PaginationParams
	pages    int
	done     bool
}

// NewStreamPager returns a pager starting at params.Continuation.
func (c *Client) NewStreamPager(streamID string, params PaginationParams) *StreamPager {
	return &StreamPager{client: c, streamID: streamID, params: params}
}

// HasNext reports whether another page may be fetched.
func (p *StreamPager) HasNext() bool {
	return !p.done
}

// Pages returns the number of pages fetched so far.
func (p *StreamPager) Pages() int {
	return p.pages
}

// Next fetches the next page. A failed fetch can be retried by calling Next again.
func (p *StreamPager) Next(ctx context.Context) (*PaginatedEntries, error) {
	if p.done {
		return nil, ErrPagerDone
	}
	page, err := p.client.FetchContents(ctx, p.streamID, p.params)
	if err != nil {
		return nil, err
	}
	p.pages++
	if page.Continuation == "" || page.Continuation == p.params.Continuation {
		p.done = true
	}
	p.params.Continuation = page.Continuation
	return page, nil
}

// Collect fetches pages until the stream is exhausted or at least limit entries
// were seen (limit <= 0 means no limit). Entries are de-duplicated by id and
// returned in stream order, truncated to limit.
func (p *StreamPager) Collect(ctx context.Context, limit int) ([]*entity.Entry, error) {
	var all []*entity.Entry
	for p.HasNext() {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		page, err := p.Next(ctx)
		if err != nil {
			return all, err
		}
		all = lo.UniqBy(append(all, page.Items...), (*entity.Entry).Key)
		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
	}
	if all == nil {
		all = []*entity.Entry{}
	}
	return all, nil
}
