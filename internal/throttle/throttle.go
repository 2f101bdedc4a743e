// Package throttle gates user-initiated catalog fetches: one per chat per
// cooldown window. It bounds chat-side spam, independent of the response
// cache that bounds upstream load. The scheduled poll path never consults it.
package throttle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"anibot/internal/storage"
	logx "anibot/pkg/logx"
)

type Gate struct {
	mu sync.Mutex

	store    storage.Store
	cooldown time.Duration
	log      logx.Logger
}

const defaultCooldown = 2 * time.Hour

func New(store storage.Store, cooldown time.Duration, log logx.Logger) *Gate {
	if cooldown <= 0 {
		cooldown = defaultCooldown
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Gate{store: store, cooldown: cooldown, log: log}
}

// SetCooldown updates the window (config hot-reload).
func (g *Gate) SetCooldown(d time.Duration) {
	if d <= 0 {
		return
	}
	g.mu.Lock()
	g.cooldown = d
	g.mu.Unlock()
}

func (g *Gate) Cooldown() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cooldown
}

// Allow reports whether the chat may trigger an on-demand fetch now, and
// records the fetch time iff allowed. The mark is persisted before Allow
// returns, so cooldowns survive restarts. A denied call mutates nothing.
func (g *Gate) Allow(ctx context.Context, chatID int64, now time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok, err := g.store.LastFetch(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("throttle: read mark: %w", err)
	}
	if ok && now.Sub(last) < g.cooldown {
		return false, nil
	}
	if err := g.store.SetLastFetch(ctx, chatID, now); err != nil {
		return false, fmt.Errorf("throttle: persist mark: %w", err)
	}
	return true, nil
}
