package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "anibot/pkg/logx"
)

type fakeFetcher struct {
	calls  int
	titles []Title
	err    error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ time.Time) ([]Title, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]Title(nil), f.titles...), nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := &fakeFetcher{titles: []Title{{ID: 1, Name: "a"}}}
	c := NewCache(f, time.Hour, logx.Nop())

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	if _, err := c.Titles(ctx, t0); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := c.Titles(ctx, t0.Add(30*time.Minute)); err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("upstream calls = %d, want 1 (second read cached)", f.calls)
	}

	// Past the TTL the entry refreshes.
	if _, err := c.Titles(ctx, t0.Add(61*time.Minute)); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if f.calls != 2 {
		t.Fatalf("upstream calls = %d, want 2 after expiry", f.calls)
	}
}

func TestCacheServesStaleOnRefreshFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := &fakeFetcher{titles: []Title{{ID: 1, Name: "a"}}}
	c := NewCache(f, time.Hour, logx.Nop())

	t0 := time.Date(2026, time.April, 1, 12, 0, 0, 0, time.UTC)
	if _, err := c.Titles(ctx, t0); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	f.err = ErrUpstreamUnavailable
	titles, err := c.Titles(ctx, t0.Add(2*time.Hour))
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if len(titles) != 1 || titles[0].ID != 1 {
		t.Fatalf("stale entry not served: %+v", titles)
	}
}

func TestCacheEmptyWhenNeverFetched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := &fakeFetcher{err: ErrUpstreamUnavailable}
	c := NewCache(f, time.Hour, logx.Nop())

	titles, err := c.Titles(ctx, time.Now())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
	if len(titles) != 0 {
		t.Fatalf("titles = %v, want empty", titles)
	}
}

func TestCacheCopiesReturnedSlice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := &fakeFetcher{titles: []Title{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}}
	c := NewCache(f, time.Hour, logx.Nop())

	now := time.Now()
	first, _ := c.Titles(ctx, now)
	first[0].Name = "mutated"

	second, _ := c.Titles(ctx, now)
	if second[0].Name != "a" {
		t.Fatal("cache entry leaked to callers by reference")
	}
}
