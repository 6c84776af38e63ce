package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
	dsvc "pulseboard/internal/domain/service"

	"github.com/rs/zerolog/log"
)

const (
	sourceWeather = "weather"

	minCityQuery     = 3
	maxSuggestions   = 5
	maxHistory       = 24
	defaultParallels = 4
)

type WeatherDeps struct {
	Source   port.WeatherSource
	Table    *domain.Table[model.City]
	Bridge   *dispatch.Bridge
	Repo     port.Repository
	Metrics  port.Metrics
	Policy   Policy
	Interval time.Duration
	// Concurrency bounds parallel per-city requests.
	Concurrency int
}

// Weather 天气拉取器：每个城市一次请求，部分失败时丢弃失败的城市
type Weather struct {
	deps   WeatherDeps
	poller *Poller
	now    func() time.Time

	mu     sync.Mutex
	cities []string
}

func NewWeather(deps WeatherDeps, cities []string) *Weather {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics{}
	}
	if deps.Bridge == nil {
		deps.Bridge = dispatch.NewBridge(nil)
	}
	if deps.Policy.MaxRetries == 0 && deps.Policy.BaseDelay == 0 {
		deps.Policy = DefaultPolicy()
	}
	if deps.Concurrency <= 0 {
		deps.Concurrency = defaultParallels
	}
	w := &Weather{deps: deps, now: time.Now}
	for _, c := range cities {
		w.addSubject(c)
	}
	w.poller = NewPoller("weather", deps.Interval, func(ctx context.Context) { _ = w.Refresh(ctx) })
	return w
}

func (w *Weather) Run(ctx context.Context) error { return w.poller.Run(ctx) }

func (w *Weather) Refetch() { w.poller.Trigger() }

func (w *Weather) Favorites() []string { return w.deps.Table.Favorites() }

func (w *Weather) Table() *domain.Table[model.City] { return w.deps.Table }

func (w *Weather) Cities() []model.City { return w.deps.Table.All() }

// Subjects returns the tracked city names.
func (w *Weather) Subjects() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.cities...)
}

func (w *Weather) addSubject(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, c := range w.cities {
		if strings.EqualFold(c, name) {
			return false
		}
	}
	w.cities = append(w.cities, name)
	return true
}

// Refresh fetches all tracked cities.
func (w *Weather) Refresh(ctx context.Context) error {
	subjects := w.Subjects()
	cities, err := FetchAll(ctx, sourceWeather, subjects, w.deps.Concurrency, w.observe)
	if err != nil {
		if ctx.Err() == nil {
			w.deps.Bridge.FetchFailed(sourceWeather, err)
		}
		return err
	}
	w.merge(ctx, cities)
	return nil
}

// observe 拉取单个城市：当前天气（带重试），再反查地理信息补全 state/country（尽力而为）
func (w *Weather) observe(ctx context.Context, name string) (model.City, error) {
	pol := w.deps.Policy
	pol.OnRetry = func(attempt int, err error, d time.Duration) {
		w.deps.Metrics.FetchRetried(sourceWeather)
		log.Warn().Str("city", name).Int("attempt", attempt+1).Dur("delay", d).Err(err).Msg("retrying fetch")
	}
	obs, err := Do(ctx, pol, func(ctx context.Context) (port.Observation, error) {
		return w.deps.Source.Current(ctx, name)
	})
	w.deps.Metrics.FetchCompleted(sourceWeather, err)
	if err != nil {
		return model.City{}, fmt.Errorf("fetch weather for %s: %w", name, err)
	}

	city := obs.City
	if place, err := w.deps.Source.Reverse(ctx, obs.Lat, obs.Lon); err != nil {
		log.Debug().Str("city", name).Err(err).Msg("reverse geocoding failed")
	} else {
		city.State = place.State
		if place.Country != "" {
			city.Country = place.Country
		}
	}
	if city.LastUpdated.IsZero() {
		city.LastUpdated = w.now()
	}
	city.Alert = effectiveAlert(city)
	return city, nil
}

// merge keeps the history of existing records and appends one sample.
func (w *Weather) merge(ctx context.Context, cities []model.City) {
	w.deps.Table.Upsert(cities, func(prev model.City, ok bool, next model.City) model.City {
		var hist []model.WeatherSample
		if ok {
			hist = prev.History
			// 只有手动提醒跨刷新保留；恶劣天气提醒随当前天气更新
			next.ManualAlert = prev.ManualAlert
		}
		next.Alert = effectiveAlert(next)
		next.History = appendSample(hist, model.WeatherSample{
			Timestamp:   next.LastUpdated,
			Temperature: next.Temperature,
			Humidity:    next.Humidity,
		})
		return next
	})

	for _, c := range cities {
		if cur, ok := w.deps.Table.Get(c.ID); ok {
			w.deps.Bridge.WeatherAlert(cur.ID, cur.Name, cur.Alert)
		}
	}

	if w.deps.Repo != nil {
		if err := w.deps.Repo.SaveCities(ctx, cities); err != nil {
			log.Warn().Err(err).Int("cities", len(cities)).Msg("persist cities failed")
		}
	}
}

func appendSample(hist []model.WeatherSample, s model.WeatherSample) []model.WeatherSample {
	out := make([]model.WeatherSample, 0, maxHistory)
	if n := len(hist); n >= maxHistory {
		hist = hist[n-maxHistory+1:]
	}
	out = append(out, hist...)
	return append(out, s)
}

// Search fetches one city on demand and starts tracking it.
func (w *Weather) Search(ctx context.Context, name string) (model.City, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.City{}, errors.New("empty city name")
	}
	city, err := w.observe(ctx, name)
	if err != nil {
		return model.City{}, err
	}
	w.merge(ctx, []model.City{city})
	if w.addSubject(name) {
		log.Info().Str("city", name).Msg("city tracked")
	}
	w.deps.Table.AddToDisplay(city.ID)

	cur, _ := w.deps.Table.Get(city.ID)
	return cur, nil
}

// Suggest returns up to 5 geocoding matches; queries shorter than 3
// characters return nothing.
func (w *Weather) Suggest(ctx context.Context, query string) ([]model.Place, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minCityQuery {
		return nil, nil
	}
	places, err := Do(ctx, w.deps.Policy, func(ctx context.Context) ([]model.Place, error) {
		return w.deps.Source.Direct(ctx, query, maxSuggestions)
	})
	if err != nil {
		return nil, fmt.Errorf("suggest cities: %w", err)
	}
	if len(places) > maxSuggestions {
		places = places[:maxSuggestions]
	}
	return places, nil
}

// SetAlert sets or clears the manual alert of a known city. Clearing it
// falls back to the alert derived from the current conditions.
func (w *Weather) SetAlert(id, alert string) error {
	var cur model.City
	ok := w.deps.Table.Update(id, func(c model.City) model.City {
		c.ManualAlert = strings.TrimSpace(alert)
		c.Alert = effectiveAlert(c)
		cur = c
		return c
	})
	if !ok {
		return ErrNotFound
	}
	w.deps.Bridge.WeatherAlert(id, cur.Name, cur.Alert)
	return nil
}

func effectiveAlert(c model.City) string {
	if c.ManualAlert != "" {
		return c.ManualAlert
	}
	return dsvc.SevereWeatherAlert(c.Conditions)
}

func (w *Weather) ToggleFavorite(id string) (bool, error) {
	city, fav, ok := w.deps.Table.ToggleFavorite(id)
	if !ok {
		return false, ErrNotFound
	}
	w.deps.Bridge.FavoriteToggled(city.Name, fav)
	return fav, nil
}
