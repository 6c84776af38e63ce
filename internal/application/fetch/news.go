package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"

	"github.com/rs/zerolog/log"
)

const (
	sourceNews = "news"

	NewsCacheKey = "cachedNews"
	NewsCacheTTL = 5 * time.Minute
	MaxArticles  = 5

	defaultNewsQuery = "cryptocurrency"
)

type NewsDeps struct {
	Source   port.NewsSource
	Cache    port.CacheStore
	Bridge   *dispatch.Bridge
	Metrics  port.Metrics
	Policy   Policy
	Interval time.Duration
	Query    string
	TTL      time.Duration
}

// newsCacheEntry is the persisted form of the news cache record.
type newsCacheEntry struct {
	Articles  []model.Article `json:"articles"`
	Timestamp int64           `json:"timestamp"` // ms
}

// News 新闻拉取器：缓存优先，限流时回退到过期缓存
type News struct {
	deps   NewsDeps
	poller *Poller
	now    func() time.Time

	mu       sync.RWMutex
	articles []model.Article
	updated  time.Time
}

func NewNews(deps NewsDeps) *News {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics{}
	}
	if deps.Bridge == nil {
		deps.Bridge = dispatch.NewBridge(nil)
	}
	if deps.Policy.MaxRetries == 0 && deps.Policy.BaseDelay == 0 {
		deps.Policy = DefaultPolicy()
	}
	if deps.Interval <= 0 {
		deps.Interval = NewsCacheTTL
	}
	if deps.TTL <= 0 {
		deps.TTL = NewsCacheTTL
	}
	if strings.TrimSpace(deps.Query) == "" {
		deps.Query = defaultNewsQuery
	}
	n := &News{deps: deps, now: time.Now, articles: []model.Article{}}
	n.poller = NewPoller("news", deps.Interval, func(ctx context.Context) { _, _ = n.Refresh(ctx) })
	return n
}

func (n *News) Run(ctx context.Context) error { return n.poller.Run(ctx) }

func (n *News) Refetch() { n.poller.Trigger() }

// Articles returns the current article list and when it was last set.
func (n *News) Articles() ([]model.Article, time.Time) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]model.Article(nil), n.articles...), n.updated
}

func (n *News) set(articles []model.Article) {
	n.mu.Lock()
	n.articles = articles
	n.updated = n.now()
	n.mu.Unlock()
}

// Refresh 顺序：新鲜缓存直接返回；否则请求上游；限流且存在缓存时返回过期缓存。
func (n *News) Refresh(ctx context.Context) ([]model.Article, error) {
	rec, cached := n.readCache(ctx)
	if cached && rec.Fresh(n.now(), n.deps.TTL) {
		n.set(rec.Payload)
		return rec.Payload, nil
	}

	pol := n.deps.Policy
	if cached {
		// 已有缓存时限流不重试，直接回退
		pol.RetryIf = func(err error) bool {
			return port.IsTransient(err) && !errors.Is(err, port.ErrRateLimited)
		}
	}
	pol.OnRetry = func(attempt int, err error, d time.Duration) {
		n.deps.Metrics.FetchRetried(sourceNews)
		log.Warn().Str("source", sourceNews).Int("attempt", attempt+1).Dur("delay", d).Err(err).Msg("retrying fetch")
	}

	articles, err := Do(ctx, pol, func(ctx context.Context) ([]model.Article, error) {
		return n.deps.Source.Latest(ctx, n.deps.Query)
	})
	n.deps.Metrics.FetchCompleted(sourceNews, err)
	if err != nil {
		if cached && errors.Is(err, port.ErrRateLimited) {
			log.Warn().Time("cached_at", rec.WrittenAt).Msg("news rate limited, serving stale cache")
			n.set(rec.Payload)
			return rec.Payload, nil
		}
		n.set([]model.Article{})
		if ctx.Err() == nil {
			n.deps.Bridge.FetchFailed(sourceNews, err)
		}
		return nil, fmt.Errorf("fetch news: %w", err)
	}

	articles = NormalizeArticles(articles)
	n.writeCache(ctx, articles)
	n.set(articles)
	return articles, nil
}

func (n *News) readCache(ctx context.Context) (model.CacheRecord[[]model.Article], bool) {
	var rec model.CacheRecord[[]model.Article]
	if n.deps.Cache == nil {
		return rec, false
	}
	raw, ok, err := n.deps.Cache.Get(ctx, NewsCacheKey)
	if err != nil {
		log.Warn().Err(err).Msg("read news cache failed")
		return rec, false
	}
	if !ok {
		n.deps.Metrics.CacheLookup(NewsCacheKey, false, false)
		return rec, false
	}
	var e newsCacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		log.Warn().Err(err).Msg("corrupt news cache entry ignored")
		return rec, false
	}
	rec.Payload = e.Articles
	if rec.Payload == nil {
		rec.Payload = []model.Article{}
	}
	rec.WrittenAt = time.UnixMilli(e.Timestamp)
	n.deps.Metrics.CacheLookup(NewsCacheKey, true, rec.Fresh(n.now(), n.deps.TTL))
	return rec, true
}

func (n *News) writeCache(ctx context.Context, articles []model.Article) {
	if n.deps.Cache == nil {
		return
	}
	raw, err := json.Marshal(newsCacheEntry{Articles: articles, Timestamp: n.now().UnixMilli()})
	if err != nil {
		log.Warn().Err(err).Msg("encode news cache failed")
		return
	}
	if err := n.deps.Cache.Set(ctx, NewsCacheKey, raw); err != nil {
		log.Warn().Err(err).Msg("write news cache failed")
	}
}

// NormalizeArticles fills defaults for missing fields and keeps the first
// MaxArticles entries.
func NormalizeArticles(in []model.Article) []model.Article {
	if len(in) > MaxArticles {
		in = in[:MaxArticles]
	}
	out := make([]model.Article, 0, len(in))
	for _, a := range in {
		if strings.TrimSpace(a.Title) == "" {
			a.Title = "No title"
		}
		if strings.TrimSpace(a.Description) == "" {
			a.Description = "No description available"
		}
		if strings.TrimSpace(a.SourceName) == "" {
			a.SourceName = "Unknown source"
		}
		out = append(out, a)
	}
	return out
}
