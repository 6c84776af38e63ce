package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"pulseboard/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

// unreachable 指向一个没有监听的端口，连接会立即被拒绝
func unreachable() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestNewDefaults(t *testing.T) {
	r := New(unreachable(), " ", 0, "", "")
	defer r.Close()

	if r.prefix != "pulseboard" {
		t.Fatalf("prefix = %q", r.prefix)
	}
	if r.keyCoins != "pulseboard:latest:coins" || r.keyCities != "pulseboard:latest:cities" {
		t.Fatalf("keys = %q %q", r.keyCoins, r.keyCities)
	}
	if r.notifStream != "pulseboard:notifications" || r.notifChan != "pulseboard:notifications:pub" {
		t.Fatalf("notification keys = %q %q", r.notifStream, r.notifChan)
	}
	if got := r.cacheKey("cachedNews"); got != "pulseboard:cache:cachedNews" {
		t.Fatalf("cacheKey = %q", got)
	}
}

func TestSaveWithoutFieldsSkipsServer(t *testing.T) {
	r := New(unreachable(), "pb", time.Minute, "", "")
	defer r.Close()

	ctx := context.Background()
	if err := r.SaveCoins(ctx, []model.Coin{{ID: "bitcoin", Price: 0}}); err != nil {
		t.Fatalf("coins without price must be skipped: %v", err)
	}
	if err := r.SaveCities(ctx, nil); err != nil {
		t.Fatalf("empty cities: %v", err)
	}
}

func TestGetWrapsConnectionError(t *testing.T) {
	r := New(unreachable(), "pb", 0, "", "")
	defer r.Close()

	_, ok, err := r.Get(context.Background(), "cachedNews")
	if err == nil {
		t.Fatalf("expected connection error")
	}
	if ok {
		t.Fatalf("ok must be false on error")
	}
}

func TestListenerSwallowsPublishError(t *testing.T) {
	r := New(unreachable(), "pb", 0, "", "")
	defer r.Close()

	l := r.Listener(0)
	if l.timeout != 2*time.Second {
		t.Fatalf("timeout = %v", l.timeout)
	}
	l.OnNotification(model.Notification{ID: 1, Category: model.CategoryInfo, Title: "t", Timestamp: time.Now()})
}

// liveRepo 连接 REDIS_ADDR（默认 localhost:6379）；没有可用的 Redis 时跳过
func liveRepo(t *testing.T) *Repo {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 300 * time.Millisecond, MaxRetries: -1})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skipf("redis not available at %s: %v", addr, err)
	}

	prefix := fmt.Sprintf("pulseboard-test-%d", time.Now().UnixNano())
	r := New(rdb, prefix, time.Minute, "", "")
	t.Cleanup(func() {
		ctx := context.Background()
		if keys, err := rdb.Keys(ctx, prefix+":*").Result(); err == nil && len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
		_ = r.Close()
	})
	return r
}

func TestCacheRoundTrip(t *testing.T) {
	r := liveRepo(t)
	ctx := context.Background()

	if _, ok, err := r.Get(ctx, "cachedNews"); err != nil || ok {
		t.Fatalf("missing key: ok = %v err = %v", ok, err)
	}
	if err := r.Set(ctx, "cachedNews", []byte(`{"articles":[],"timestamp":1}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, ok, err := r.Get(ctx, "cachedNews")
	if err != nil || !ok {
		t.Fatalf("get: ok = %v err = %v", ok, err)
	}
	if string(v) != `{"articles":[],"timestamp":1}` {
		t.Fatalf("value = %s", v)
	}
	if ttl := r.rdb.TTL(ctx, r.cacheKey("cachedNews")).Val(); ttl != -1 {
		t.Fatalf("cache entries must not expire, ttl = %v", ttl)
	}
}

func TestLatestHashesAndNotificationStream(t *testing.T) {
	r := liveRepo(t)
	ctx := context.Background()

	if err := r.SaveCoins(ctx, []model.Coin{{ID: "bitcoin", Symbol: "btc", Price: 100}, {ID: "dust", Price: 0}}); err != nil {
		t.Fatalf("save coins: %v", err)
	}
	fields := r.rdb.HGetAll(ctx, r.keyCoins).Val()
	if len(fields) != 1 {
		t.Fatalf("fields = %v", fields)
	}
	var c model.Coin
	if err := json.Unmarshal([]byte(fields["bitcoin"]), &c); err != nil || c.Price != 100 {
		t.Fatalf("coin = %+v err = %v", c, err)
	}
	if ttl := r.rdb.TTL(ctx, r.keyCoins).Val(); ttl <= 0 {
		t.Fatalf("latest hash should expire, ttl = %v", ttl)
	}

	n := model.Notification{ID: 7, Category: model.CategoryWarning, Title: "Connection Lost", Timestamp: time.Now()}
	if err := r.PublishNotification(ctx, n); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msgs := r.rdb.XRange(ctx, r.notifStream, "-", "+").Val()
	if len(msgs) != 1 || msgs[0].Values["title"] != "Connection Lost" || msgs[0].Values["type"] != "warning" {
		t.Fatalf("stream = %+v", msgs)
	}
}
