package cloudapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"feedlykit/pkg/entity"
)

// FetchProfile returns the profile of the token's owner.
// The result is remembered for deriving stream ids until the token changes.
func (c *Client) FetchProfile(ctx context.Context) (*entity.Profile, error) {
	body, err := c.do(ctx, call{op: "profile.get", method: http.MethodGet, path: "/v3/profile"})
	if err != nil {
		return nil, err
	}
	profile, err := entity.ParseProfile(body)
	if err != nil {
		return nil, fmt.Errorf("profile.get: %w", err)
	}

	c.mu.Lock()
	c.profile = profile
	c.mu.Unlock()
	return profile, nil
}

// Profile returns the remembered profile, fetching it on first use.
func (c *Client) Profile(ctx context.Context) (*entity.Profile, error) {
	c.mu.RLock()
	profile := c.profile
	c.mu.RUnlock()
	if profile != nil {
		return profile, nil
	}
	return c.FetchProfile(ctx)
}

// decodeArray parses body as a JSON array and maps every object element with parse.
// Non-object elements are skipped.
func decodeArray[T any](op string, body []byte, parse func(gjson.Result) T) ([]T, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s: %w: invalid JSON", op, ErrUnexpectedResponse)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsArray() {
		return nil, fmt.Errorf("%s: %w: expected array, got %s", op, ErrUnexpectedResponse, doc.Type)
	}

	out := make([]T, 0, len(doc.Array()))
	doc.ForEach(func(_, node gjson.Result) bool {
		if node.IsObject() {
			out = append(out, parse(node))
		}
		return true
	})
	return out, nil
}
