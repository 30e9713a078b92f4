package cloudapi

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"feedlykit/pkg/entity"
)

// entryCache is a bounded LRU of entries keyed by id.
// A nil *entryCache is a disabled cache.
type entryCache struct {
	lru     *lru.Cache[string, *entity.Entry]
	metrics Metrics
}

func newEntryCache(size int, m Metrics) (*entryCache, error) {
	if size <= 0 {
		return nil, nil
	}
	l, err := lru.New[string, *entity.Entry](size)
	if err != nil {
		return nil, err
	}
	return &entryCache{lru: l, metrics: m}, nil
}

// get returns a shallow copy so callers cannot replace fields of the cached entry.
func (c *entryCache) get(id string) (*entity.Entry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lru.Get(id)
	c.metrics.RecordCacheLookup(ok)
	if !ok {
		return nil, false
	}
	cp := *e
	return &cp, true
}

func (c *entryCache) add(entries ...*entity.Entry) {
	if c == nil {
		return
	}
	for _, e := range entries {
		cp := *e
		c.lru.Add(e.ID, &cp)
	}
}

func (c *entryCache) remove(ids ...string) {
	if c == nil {
		return
	}
	for _, id := range ids {
		c.lru.Remove(id)
	}
}

func (c *entryCache) purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}
