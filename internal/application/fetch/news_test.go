package fetch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
)

func newNews(src *fakeNews, cache port.CacheStore, now time.Time) *News {
	n := NewNews(NewsDeps{
		Source: src,
		Cache:  cache,
		Bridge: newBridge(),
		Policy: noSleepPolicy(),
	})
	n.now = func() time.Time { return now }
	return n
}

func seedCache(t *testing.T, c *memCache, writtenAt time.Time, titles ...string) {
	t.Helper()
	var arts []model.Article
	for _, title := range titles {
		arts = append(arts, model.Article{Title: title})
	}
	raw, err := json.Marshal(newsCacheEntry{Articles: arts, Timestamp: writtenAt.UnixMilli()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	c.data[NewsCacheKey] = raw
}

func TestNewsFreshCacheSkipsNetwork(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	cache := newMemCache()
	seedCache(t, cache, now.Add(-2*time.Minute), "cached")
	src := &fakeNews{}
	n := newNews(src, cache, now)

	got, err := n.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("fresh cache must not hit network, calls = %d", src.calls)
	}
	if len(got) != 1 || got[0].Title != "cached" {
		t.Fatalf("got %+v", got)
	}
}

func TestNewsStaleCacheOnRateLimit(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	cache := newMemCache()
	seedCache(t, cache, now.Add(-10*time.Minute), "stale")
	src := &fakeNews{err: &port.StatusError{Source: "newsdata", StatusCode: 429}}
	n := newNews(src, cache, now)

	got, err := n.Refresh(context.Background())
	if err != nil {
		t.Fatalf("stale cache should mask rate limit: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("rate limit with cache must not retry, calls = %d", src.calls)
	}
	if len(got) != 1 || got[0].Title != "stale" {
		t.Fatalf("got %+v", got)
	}
	if n.deps.Bridge.Ledger().Len() != 0 {
		t.Fatalf("masked failure must not notify")
	}
}

func TestNewsRateLimitWithoutCache(t *testing.T) {
	src := &fakeNews{err: &port.StatusError{Source: "newsdata", StatusCode: 429}}
	n := newNews(src, newMemCache(), time.Now())

	if _, err := n.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if src.calls != 4 {
		t.Fatalf("calls = %d, want 4", src.calls)
	}
	arts, _ := n.Articles()
	if len(arts) != 0 {
		t.Fatalf("articles should be cleared, got %d", len(arts))
	}
	if n.deps.Bridge.Ledger().Entries()[0].Category != model.CategoryError {
		t.Fatalf("expected error notification")
	}
}

func TestNewsSuccessWritesCacheWithDefaults(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	cache := newMemCache()
	var arts []model.Article
	for i := 0; i < 8; i++ {
		arts = append(arts, model.Article{ID: string(rune('a' + i))})
	}
	src := &fakeNews{articles: arts}
	n := newNews(src, cache, now)

	got, err := n.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(got) != MaxArticles {
		t.Fatalf("articles = %d, want %d", len(got), MaxArticles)
	}
	if got[0].Title != "No title" || got[0].Description != "No description available" || got[0].SourceName != "Unknown source" {
		t.Fatalf("defaults not applied: %+v", got[0])
	}

	var e newsCacheEntry
	if err := json.Unmarshal(cache.data[NewsCacheKey], &e); err != nil {
		t.Fatalf("cache entry: %v", err)
	}
	if e.Timestamp != now.UnixMilli() || len(e.Articles) != MaxArticles {
		t.Fatalf("unexpected cache entry ts=%d n=%d", e.Timestamp, len(e.Articles))
	}

	// second call within TTL is served from cache
	if _, err := n.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("calls = %d, want 1", src.calls)
	}
}
