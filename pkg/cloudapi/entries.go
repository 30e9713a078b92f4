package cloudapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/sync/errgroup"

	"feedlykit/pkg/entity"
)

// CreateEntry adds an entry to the user's account and returns the ids the API assigned.
// Tags listed on the entry are attached (and created when needed).
// The call is never retried, since a retry after a lost response would create a duplicate.
func (c *Client) CreateEntry(ctx context.Context, e *entity.Entry) ([]string, error) {
	body, err := e.ToParameters().JSON()
	if err != nil {
		return nil, fmt.Errorf("entries.create: encode body: %w", err)
	}
	resp, err := c.do(ctx, call{
		op:     "entries.create",
		method: http.MethodPost,
		path:   "/v3/entries",
		body:   body,
		once:   true,
	})
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(resp) {
		return nil, fmt.Errorf("entries.create: %w: invalid JSON", ErrUnexpectedResponse)
	}
	doc := gjson.ParseBytes(resp)
	if !doc.IsArray() {
		return nil, fmt.Errorf("entries.create: %w: expected array, got %s", ErrUnexpectedResponse, doc.Type)
	}
	ids := make([]string, 0, 1)
	doc.ForEach(func(_, node gjson.Result) bool {
		if node.Type == gjson.String {
			ids = append(ids, node.String())
		}
		return true
	})
	return ids, nil
}

// FetchEntry returns one entry by id, from the entry cache when possible.
func (c *Client) FetchEntry(ctx context.Context, id string) (*entity.Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("entries.get: %w", ErrNoIDs)
	}
	if e, ok := c.cache.get(id); ok {
		return e, nil
	}

	body, err := c.do(ctx, call{
		op:     "entries.get",
		method: http.MethodGet,
		path:   "/v3/entries/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}

	// The API answers with a one-element array; a bare object is accepted too.
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("entries.get: %w: invalid JSON", ErrUnexpectedResponse)
	}
	doc := gjson.ParseBytes(body)
	if doc.IsArray() {
		items := doc.Array()
		if len(items) == 0 {
			return nil, fmt.Errorf("entries.get %s: %w", id, ErrEntryNotFound)
		}
		doc = items[0]
	}
	if !doc.IsObject() {
		return nil, fmt.Errorf("entries.get: %w: expected object, got %s", ErrUnexpectedResponse, doc.Type)
	}

	e, err := c.decoder.EntryFromResult(doc)
	if err != nil {
		return nil, fmt.Errorf("entries.get: %w", err)
	}
	c.cache.add(e)
	return e, nil
}

// FetchEntries returns the entries with the given ids in the order requested.
//
// Ids are sent in batches of MaxBatchSize, several batches at a time. Ids the API does
// not return (deleted or unknown entries) are left out of the result; duplicates are
// fetched once.
func (c *Client) FetchEntries(ctx context.Context, ids []string) ([]*entity.Entry, error) {
	ids = lo.Uniq(lo.Filter(ids, func(id string, _ int) bool { return id != "" }))
	if len(ids) == 0 {
		return []*entity.Entry{}, nil
	}

	batches := lo.Chunk(ids, MaxBatchSize)
	results := make([][]*entity.Entry, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			entries, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]*entity.Entry, len(ids))
	for _, batch := range results {
		for _, e := range batch {
			byID[e.ID] = e
		}
	}
	out := make([]*entity.Entry, 0, len(byID))
	for _, id := range ids {
		if e, ok := byID[id]; ok {
			out = append(out, e)
		}
	}
	c.cache.add(out...)
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, ids []string) ([]*entity.Entry, error) {
	body, err := sjson.SetBytes(nil, "ids", ids)
	if err != nil {
		return nil, fmt.Errorf("entries.mget: encode body: %w", err)
	}
	resp, err := c.do(ctx, call{
		op:     "entries.mget",
		method: http.MethodPost,
		path:   "/v3/entries/.mget",
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	entries, err := c.decoder.DecodeEntries(resp)
	if err != nil {
		return nil, fmt.Errorf("entries.mget: %w", err)
	}
	return entries, nil
}
