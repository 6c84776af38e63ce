package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// 默认展示的币种与不可移除的基础币种
var (
	DefaultDisplayedCoins = []string{"bitcoin", "ethereum", "dogecoin", "ripple", "cardano"}
	DefaultBaseCoins      = []string{
		"bitcoin", "ethereum", "dogecoin", "ripple", "cardano",
		"solana", "polkadot", "binancecoin", "litecoin", "chainlink",
		"avalanche-2", "tron", "matic-network", "uniswap", "bitcoin-cash",
	}
	DefaultCities = []string{"New York", "London", "Tokyo"}
)

type Config struct {
	App struct {
		LogLevel       string `toml:"log_level"`
		LedgerCapacity int    `toml:"ledger_capacity"`
		HTTPAddr       string `toml:"http_addr"`
		RenderEverySec int    `toml:"render_every_sec"`
		SnapshotMin    int    `toml:"snapshot_every_min"`
	} `toml:"app"`

	Price struct {
		Enabled     bool     `toml:"enabled"`
		BaseURL     string   `toml:"base_url"`
		IntervalSec int      `toml:"interval_sec"`
		Displayed   []string `toml:"displayed"`
		Pinned      []string `toml:"pinned"`
	} `toml:"price"`

	Weather struct {
		Enabled     bool     `toml:"enabled"`
		BaseURL     string   `toml:"base_url"`
		IntervalSec int      `toml:"interval_sec"`
		Cities      []string `toml:"cities"`
		Concurrency int      `toml:"concurrency"`
	} `toml:"weather"`

	News struct {
		Enabled     bool   `toml:"enabled"`
		BaseURL     string `toml:"base_url"`
		IntervalSec int    `toml:"interval_sec"`
		Query       string `toml:"query"`
		Language    string `toml:"language"`
		TTLSec      int    `toml:"ttl_sec"`
	} `toml:"news"`

	Stream struct {
		Enabled     bool   `toml:"enabled"`
		URL         string `toml:"url"`
		BaseDelayMs int    `toml:"base_delay_ms"`
		MaxAttempts int    `toml:"max_attempts"`
	} `toml:"stream"`

	Auth struct {
		Enabled bool   `toml:"enabled"`
		BaseURL string `toml:"base_url"`
	} `toml:"auth"`

	HTTP struct {
		TimeoutSec int `toml:"timeout_sec"`
	} `toml:"http"`

	Storage struct {
		Cache string `toml:"cache"` // memory | sqlite | redis

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Redis struct {
			Enabled             bool   `toml:"enabled"`
			Addr                string `toml:"addr"`
			Password            string `toml:"password"`
			DB                  int    `toml:"db"`
			Prefix              string `toml:"prefix"`
			TTLSeconds          int    `toml:"ttl_seconds"`
			NotificationStream  string `toml:"notification_stream"`
			NotificationChannel string `toml:"notification_channel"`
		} `toml:"redis"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`
	} `toml:"storage"`

	// 以下字段来自环境变量，不写入 toml
	Secrets Secrets `toml:"-"`
}

// Secrets 来自环境变量（可由 .env 预先加载）
type Secrets struct {
	CoinGeckoKey   string
	OpenWeatherKey string
	NewsDataKey    string
	AuthEmail      string
	AuthPassword   string
	PostgresDSN    string
}

// Load 读取 toml 配置；同目录或工作目录下的 .env 会先被加载（不存在则忽略）
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	cfg.Secrets = secretsFromEnv()
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func secretsFromEnv() Secrets {
	get := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return Secrets{
		CoinGeckoKey:   get("COINGECKO_API_KEY"),
		OpenWeatherKey: get("OPENWEATHER_API_KEY"),
		NewsDataKey:    get("NEWSDATA_API_KEY"),
		AuthEmail:      get("AUTH_EMAIL"),
		AuthPassword:   get("AUTH_PASSWORD"),
		PostgresDSN:    get("POSTGRES_DSN"),
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.LedgerCapacity <= 0 {
		cfg.App.LedgerCapacity = 50
	}
	if cfg.App.RenderEverySec <= 0 {
		cfg.App.RenderEverySec = 5
	}
	if cfg.App.SnapshotMin <= 0 {
		cfg.App.SnapshotMin = 5
	}

	if cfg.Price.BaseURL == "" {
		cfg.Price.BaseURL = "https://api.coingecko.com"
	}
	if cfg.Price.IntervalSec <= 0 {
		cfg.Price.IntervalSec = 60
	}
	if len(cfg.Price.Displayed) == 0 {
		cfg.Price.Displayed = append([]string(nil), DefaultDisplayedCoins...)
	}
	if cfg.Price.Pinned == nil {
		cfg.Price.Pinned = append([]string(nil), DefaultBaseCoins...)
	}

	if cfg.Weather.BaseURL == "" {
		cfg.Weather.BaseURL = "https://api.openweathermap.org"
	}
	if cfg.Weather.IntervalSec <= 0 {
		cfg.Weather.IntervalSec = 60
	}
	if len(cfg.Weather.Cities) == 0 {
		cfg.Weather.Cities = append([]string(nil), DefaultCities...)
	}
	if cfg.Weather.Concurrency <= 0 {
		cfg.Weather.Concurrency = 4
	}

	if cfg.News.BaseURL == "" {
		cfg.News.BaseURL = "https://newsdata.io"
	}
	if cfg.News.IntervalSec <= 0 {
		cfg.News.IntervalSec = 300
	}
	if cfg.News.Query == "" {
		cfg.News.Query = "cryptocurrency"
	}
	if cfg.News.Language == "" {
		cfg.News.Language = "en"
	}
	if cfg.News.TTLSec <= 0 {
		cfg.News.TTLSec = 300
	}

	if cfg.Stream.BaseDelayMs <= 0 {
		cfg.Stream.BaseDelayMs = 1000
	}
	if cfg.Stream.MaxAttempts <= 0 {
		cfg.Stream.MaxAttempts = 5
	}

	if cfg.HTTP.TimeoutSec <= 0 {
		cfg.HTTP.TimeoutSec = 10
	}

	if cfg.Storage.Cache == "" {
		cfg.Storage.Cache = "memory"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/pulseboard.db"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "pulseboard"
	}
	if cfg.Storage.Redis.NotificationStream == "" {
		cfg.Storage.Redis.NotificationStream = "pulseboard:notifications"
	}
	if cfg.Storage.Redis.NotificationChannel == "" {
		cfg.Storage.Redis.NotificationChannel = "pulseboard:notifications:live"
	}
	if cfg.Storage.Postgres.DSN == "" {
		cfg.Storage.Postgres.DSN = cfg.Secrets.PostgresDSN
	}
}

func validate(cfg *Config) error {
	cfg.Price.Displayed = normalizeIDs(cfg.Price.Displayed)
	cfg.Price.Pinned = normalizeIDs(cfg.Price.Pinned)
	cfg.Weather.Cities = normalizeNames(cfg.Weather.Cities)

	if cfg.Price.Enabled && len(cfg.Price.Displayed) == 0 {
		return errors.New("price.displayed is empty")
	}
	if cfg.Weather.Enabled && len(cfg.Weather.Cities) == 0 {
		return errors.New("weather.cities is empty")
	}
	if cfg.Stream.Enabled && strings.TrimSpace(cfg.Stream.URL) == "" {
		return errors.New("stream.url empty but enabled")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.BaseURL) == "" {
		return errors.New("auth.base_url empty but enabled")
	}

	switch cfg.Storage.Cache {
	case "memory":
	case "sqlite":
		if !cfg.Storage.SQLite.Enabled {
			return errors.New("storage.cache = sqlite but storage.sqlite disabled")
		}
	case "redis":
		if !cfg.Storage.Redis.Enabled {
			return errors.New("storage.cache = redis but storage.redis disabled")
		}
	default:
		return fmt.Errorf("storage.cache: unknown backend %q", cfg.Storage.Cache)
	}
	if cfg.Storage.Redis.Enabled && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but enabled")
	}
	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

// Interval helpers

func (c *Config) PriceInterval() time.Duration {
	return time.Duration(c.Price.IntervalSec) * time.Second
}

func (c *Config) WeatherInterval() time.Duration {
	return time.Duration(c.Weather.IntervalSec) * time.Second
}

func (c *Config) NewsInterval() time.Duration {
	return time.Duration(c.News.IntervalSec) * time.Second
}

func (c *Config) NewsTTL() time.Duration { return time.Duration(c.News.TTLSec) * time.Second }

func (c *Config) StreamBaseDelay() time.Duration {
	return time.Duration(c.Stream.BaseDelayMs) * time.Millisecond
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSec) * time.Second
}

// normalizeIDs 币种 id 统一小写并去重
func normalizeIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		id := strings.ToLower(strings.TrimSpace(s))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// normalizeNames 城市名保留大小写，按不区分大小写去重
func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		name := strings.TrimSpace(s)
		if name == "" {
			continue
		}
		k := strings.ToLower(name)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, name)
	}
	return out
}
