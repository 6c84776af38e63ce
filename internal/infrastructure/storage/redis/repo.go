package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Repo Redis 存储：缓存条目、最新实体哈希、通知流（XADD + PUBLISH）
type Repo struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration // latest hashes only; cache entries never expire
	keyCoins    string        // prefix + ":latest:coins"
	keyCities   string        // prefix + ":latest:cities"
	notifStream string
	notifChan   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, notifStream, notifChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "pulseboard"
	}
	if strings.TrimSpace(notifStream) == "" {
		notifStream = prefix + ":notifications"
	}
	if strings.TrimSpace(notifChan) == "" {
		notifChan = prefix + ":notifications:pub"
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyCoins:    prefix + ":latest:coins",
		keyCities:   prefix + ":latest:cities",
		notifStream: notifStream,
		notifChan:   notifChan,
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

func (r *Repo) cacheKey(key string) string { return r.prefix + ":cache:" + key }

// Get returns a cache entry; a missing key is not an error.
func (r *Repo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, r.cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores without expiry: stale entries must stay readable.
func (r *Repo) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.cacheKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis cache set %s: %w", key, err)
	}
	return nil
}

func (r *Repo) SaveCoins(ctx context.Context, coins []model.Coin) error {
	fields := make(map[string]any, len(coins))
	for _, c := range coins {
		if c.Price <= 0 {
			continue
		}
		b, _ := json.Marshal(c)
		fields[c.ID] = string(b)
	}
	return r.hsetLatest(ctx, r.keyCoins, fields)
}

func (r *Repo) SaveCities(ctx context.Context, cities []model.City) error {
	fields := make(map[string]any, len(cities))
	for _, c := range cities {
		b, _ := json.Marshal(c)
		fields[c.ID] = string(b)
	}
	return r.hsetLatest(ctx, r.keyCities, fields)
}

func (r *Repo) hsetLatest(ctx context.Context, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// PublishNotification 1) XADD 到通知流 2) PUBLISH JSON 到频道
func (r *Repo) PublishNotification(ctx context.Context, n model.Notification) error {
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.notifStream,
		Values: map[string]any{
			"id":      n.ID,
			"type":    string(n.Category),
			"title":   n.Title,
			"message": n.Message,
			"ts_ms":   n.Timestamp.UnixMilli(),
		},
	}).Result()
	if err != nil {
		return err
	}

	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.notifChan, b).Err()
}

// NotificationListener forwards ledger entries to Redis without blocking
// the publisher for longer than timeout.
type NotificationListener struct {
	repo    *Repo
	timeout time.Duration
}

func (r *Repo) Listener(timeout time.Duration) *NotificationListener {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &NotificationListener{repo: r, timeout: timeout}
}

func (l *NotificationListener) OnNotification(n model.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := l.repo.PublishNotification(ctx, n); err != nil {
		log.Warn().Uint64("id", n.ID).Err(err).Msg("redis publish notification failed")
	}
}

var (
	_ port.Repository = (*Repo)(nil)
	_ port.CacheStore = (*Repo)(nil)
)
