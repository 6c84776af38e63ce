package container

import (
	"time"

	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/fetch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
)

// Settings 拉取器参数（来自配置）
type Settings struct {
	PriceInterval time.Duration
	Displayed     []string
	Pinned        []string

	WeatherInterval    time.Duration
	Cities             []string
	WeatherConcurrency int

	NewsInterval time.Duration
	NewsQuery    string
	NewsTTL      time.Duration
}

// Deps: 上游数据源为 nil 时对应的拉取器不创建
type Deps struct {
	Coins   port.CoinSource
	Weather port.WeatherSource
	News    port.NewsSource
	Cache   port.CacheStore
	Repo    port.Repository
	Metrics port.Metrics
	Bridge  *dispatch.Bridge
}

// Container 按需创建应用层拉取器，保证每种只有一个实例
type Container struct {
	deps     Deps
	settings Settings

	prices  *fetch.Prices
	weather *fetch.Weather
	news    *fetch.News
}

func New(deps Deps, settings Settings) *Container {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics{}
	}
	return &Container{deps: deps, settings: settings}
}

func (c *Container) Bridge() *dispatch.Bridge { return c.deps.Bridge }

func (c *Container) Ledger() *domain.Ledger { return c.deps.Bridge.Ledger() }

func (c *Container) Repository() port.Repository { return c.deps.Repo }

func (c *Container) Prices() *fetch.Prices {
	if c.prices == nil && c.deps.Coins != nil {
		c.prices = fetch.NewPrices(fetch.PriceDeps{
			Source:   c.deps.Coins,
			Table:    domain.NewTable[model.Coin](c.settings.Displayed),
			Bridge:   c.deps.Bridge,
			Repo:     c.deps.Repo,
			Metrics:  c.deps.Metrics,
			Interval: c.settings.PriceInterval,
			Pinned:   c.settings.Pinned,
		})
	}
	return c.prices
}

func (c *Container) Weather() *fetch.Weather {
	if c.weather == nil && c.deps.Weather != nil {
		c.weather = fetch.NewWeather(fetch.WeatherDeps{
			Source:      c.deps.Weather,
			Table:       domain.NewTable[model.City](nil),
			Bridge:      c.deps.Bridge,
			Repo:        c.deps.Repo,
			Metrics:     c.deps.Metrics,
			Interval:    c.settings.WeatherInterval,
			Concurrency: c.settings.WeatherConcurrency,
		}, c.settings.Cities)
	}
	return c.weather
}

func (c *Container) News() *fetch.News {
	if c.news == nil && c.deps.News != nil && c.deps.Cache != nil {
		c.news = fetch.NewNews(fetch.NewsDeps{
			Source:   c.deps.News,
			Cache:    c.deps.Cache,
			Bridge:   c.deps.Bridge,
			Metrics:  c.deps.Metrics,
			Interval: c.settings.NewsInterval,
			Query:    c.settings.NewsQuery,
			TTL:      c.settings.NewsTTL,
		})
	}
	return c.news
}
