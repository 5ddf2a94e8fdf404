// Package lrucache keeps recently fetched encoded bytes in memory in front
// of a slower source, so re-decoding an evicted texture does not pay for
// the network or disk again. Concurrent misses for a key share one fetch.
package lrucache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/arc/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/IvanBrykalov/tilestream/internal/singleflight"
	"github.com/IvanBrykalov/tilestream/source"
	"github.com/IvanBrykalov/tilestream/tier"
)

// Policy selects the replacement strategy of the byte cache.
type Policy string

const (
	// PolicyLRU evicts the least recently used payload.
	PolicyLRU Policy = "lru"
	// PolicyARC balances recency and frequency; it resists scans such as a
	// fast pan across a large board.
	PolicyARC Policy = "arc"
)

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the number of cached payloads. Required (> 0).
	MaxEntries int
	// MaxItemBytes skips caching payloads larger than this; 0 caches all.
	MaxItemBytes int
	// Policy defaults to PolicyLRU.
	Policy Policy
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Coalesced int64 // misses whose fetch was shared with another caller
	Entries   int
}

// store is the subset shared by lru.Cache and arc.ARCCache.
type store interface {
	Get(tier.Key) ([]byte, bool)
	Add(tier.Key, []byte)
	Len() int
	Purge()
}

type lruStore struct{ *lru.Cache[tier.Key, []byte] }

func (s lruStore) Add(k tier.Key, v []byte) { s.Cache.Add(k, v) }

// Cache implements source.Fetcher. Safe for concurrent use.
type Cache struct {
	next    source.Fetcher
	store   store
	maxItem int
	group   singleflight.Group[tier.Key, []byte]

	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
}

// New wraps next with a byte cache.
func New(next source.Fetcher, opt Options) (*Cache, error) {
	if next == nil {
		return nil, fmt.Errorf("lrucache: next fetcher is required")
	}
	if opt.MaxEntries <= 0 {
		return nil, fmt.Errorf("lrucache: MaxEntries must be > 0, got %d", opt.MaxEntries)
	}
	var (
		st  store
		err error
	)
	switch opt.Policy {
	case "", PolicyLRU:
		var c *lru.Cache[tier.Key, []byte]
		c, err = lru.New[tier.Key, []byte](opt.MaxEntries)
		st = lruStore{c}
	case PolicyARC:
		st, err = arc.NewARC[tier.Key, []byte](opt.MaxEntries)
	default:
		return nil, fmt.Errorf("lrucache: unknown policy %q", opt.Policy)
	}
	if err != nil {
		return nil, fmt.Errorf("lrucache: %w", err)
	}
	return &Cache{next: next, store: st, maxItem: opt.MaxItemBytes}, nil
}

// Fetch implements source.Fetcher. Errors are never cached.
func (c *Cache) Fetch(ctx context.Context, key tier.Key) ([]byte, error) {
	if data, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return data, nil
	}
	c.misses.Add(1)
	data, shared, err := c.group.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		// A fetch that finished between our Get and Do already filled it.
		if data, ok := c.store.Get(key); ok {
			return data, nil
		}
		data, err := c.next.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		if c.maxItem <= 0 || len(data) <= c.maxItem {
			c.store.Add(key, data)
		}
		return data, nil
	})
	if shared {
		c.coalesced.Add(1)
	}
	return data, err
}

// Purge drops every cached payload.
func (c *Cache) Purge() { c.store.Purge() }

// Stats returns the current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Coalesced: c.coalesced.Load(),
		Entries:   c.store.Len(),
	}
}
