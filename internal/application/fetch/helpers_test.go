package fetch

import (
	"context"
	"sync"
	"time"

	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
)

func noSleepPolicy() Policy {
	p := DefaultPolicy()
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func newBridge() *dispatch.Bridge { return dispatch.NewBridge(domain.NewLedger(50)) }

type fakeCoins struct {
	mu      sync.Mutex
	prices  map[string]float64
	fail    error
	calls   int
	lastIDs []string
	refs    []model.CoinRef
}

func (f *fakeCoins) Markets(ctx context.Context, ids []string) ([]model.Coin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastIDs = append([]string(nil), ids...)
	if f.fail != nil {
		return nil, f.fail
	}
	var out []model.Coin
	for _, id := range ids {
		if p, ok := f.prices[id]; ok {
			out = append(out, model.Coin{ID: id, Symbol: id[:3], Name: "Coin " + id, Price: p})
		}
	}
	return out, nil
}

func (f *fakeCoins) Search(ctx context.Context, query string) ([]model.CoinRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.refs, nil
}

type fakeWeather struct {
	mu    sync.Mutex
	conds map[string]string // city -> conditions
	fail  map[string]error
	calls map[string]int
}

func (f *fakeWeather) Current(ctx context.Context, city string) (port.Observation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[city]++
	if err := f.fail[city]; err != nil {
		return port.Observation{}, err
	}
	return port.Observation{
		City: model.City{
			ID:          "id-" + city,
			Name:        city,
			Country:     "XX",
			Temperature: 20,
			Humidity:    50,
			Conditions:  f.conds[city],
		},
		Lat: 1, Lon: 2,
	}, nil
}

func (f *fakeWeather) Reverse(ctx context.Context, lat, lon float64) (model.Place, error) {
	return model.Place{State: "State", Country: "ZZ"}, nil
}

func (f *fakeWeather) Direct(ctx context.Context, query string, limit int) ([]model.Place, error) {
	out := make([]model.Place, 0, limit+2)
	for i := 0; i < limit+2; i++ {
		out = append(out, model.Place{Name: query})
	}
	return out, nil
}

type fakeNews struct {
	mu       sync.Mutex
	articles []model.Article
	err      error
	calls    int
}

func (f *fakeNews) Latest(ctx context.Context, query string) ([]model.Article, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.articles, nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

type recordingRepo struct {
	mu     sync.Mutex
	coins  int
	cities int
}

func (r *recordingRepo) SaveCoins(ctx context.Context, coins []model.Coin) error {
	r.mu.Lock()
	r.coins += len(coins)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) SaveCities(ctx context.Context, cities []model.City) error {
	r.mu.Lock()
	r.cities += len(cities)
	r.mu.Unlock()
	return nil
}

func (r *recordingRepo) Close() error { return nil }
