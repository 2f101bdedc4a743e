package catalog

import (
	"context"
	"sync"
	"time"

	logx "anibot/pkg/logx"
)

// Fetcher is the upstream call the cache memoizes.
type Fetcher interface {
	Fetch(ctx context.Context, now time.Time) ([]Title, error)
}

// Cache is the single-slot response cache: one fetched title list plus its
// timestamp. One mutex covers the whole check-then-fetch-then-store sequence,
// so at most one refresh is in flight and readers never observe a torn entry.
type Cache struct {
	mu sync.Mutex

	fetcher Fetcher
	ttl     time.Duration
	log     logx.Logger

	titles    []Title
	fetchedAt time.Time
}

const defaultTTL = time.Hour

func NewCache(fetcher Fetcher, ttl time.Duration, log logx.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Cache{fetcher: fetcher, ttl: ttl, log: log}
}

// SetTTL updates the validity window (config hot-reload).
func (c *Cache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// Titles returns the cached list while it is fresh, refreshing it otherwise.
// On refresh failure the previous entry is served stale (or an empty list if
// none exists); the upstream error is returned alongside for logging, never
// as a reason to fail the caller.
func (c *Cache) Titles(ctx context.Context, now time.Time) ([]Title, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.titles != nil && now.Sub(c.fetchedAt) < c.ttl {
		return append([]Title(nil), c.titles...), nil
	}

	titles, err := c.fetcher.Fetch(ctx, now)
	if err != nil {
		if c.titles != nil {
			c.log.Warn("catalog refresh failed; serving stale data",
				logx.Err(err), logx.Time("fetched_at", c.fetchedAt))
			return append([]Title(nil), c.titles...), err
		}
		c.log.Warn("catalog refresh failed; no cached data", logx.Err(err))
		return nil, err
	}

	c.titles = titles
	c.fetchedAt = now
	return append([]Title(nil), c.titles...), nil
}
