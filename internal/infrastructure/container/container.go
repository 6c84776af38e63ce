package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	appcontainer "pulseboard/internal/application/container"
	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
	"pulseboard/internal/infrastructure/config"
	"pulseboard/internal/infrastructure/metrics"
	"pulseboard/internal/infrastructure/session"
	"pulseboard/internal/infrastructure/storage/composite"
	"pulseboard/internal/infrastructure/storage/memory"
	pgrepo "pulseboard/internal/infrastructure/storage/postgres"
	redisrepo "pulseboard/internal/infrastructure/storage/redis"
	sqliterepo "pulseboard/internal/infrastructure/storage/sqlite"
	"pulseboard/internal/infrastructure/stream"
	"pulseboard/internal/infrastructure/upstream"
	"pulseboard/internal/infrastructure/upstream/coingecko"
	"pulseboard/internal/infrastructure/upstream/newsdata"
	"pulseboard/internal/infrastructure/upstream/openweather"
)

// Container 包含所有应用依赖
type Container struct {
	cfg *config.Config

	sqliteRepo *sqliterepo.Repo
	redisRepo  *redisrepo.Repo
	repo       *composite.Repo
	cache      port.CacheStore

	httpClient *http.Client
	bridge     *dispatch.Bridge
	app        *appcontainer.Container
	session    *session.Client
	stream     *stream.Client
	clientID   string

	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例。listeners 在存储初始化之后、上游初始化之前注册，
// 因此缺少 API key 的通知也能被它们看到。
func New(cfg *config.Config, listeners ...dispatch.Listener) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
		httpClient:  upstream.NewHTTPClient(cfg.HTTPTimeout()),
		clientID:    uuid.NewString(),
	}

	// 初始化存储层
	if err := c.initStorage(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	if err := c.initCache(); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.initBridge(listeners)
	c.initApplication()
	c.initSession()
	c.initStream()

	return c, nil
}

// initStorage 初始化存储层（SQLite、Redis、Postgres），全部交给 composite 统一写入和关闭
func (c *Container) initStorage() error {
	var repos []port.Repository
	fail := func(err error) error {
		// 关闭已经打开的后端
		_ = composite.New(repos...).Close()
		return err
	}

	// SQLite
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fail(fmt.Errorf("sqlite init failed: %w", err))
		}
		repos = append(repos, c.sqliteRepo)
	}

	// Redis
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fail(fmt.Errorf("redis init failed: %w", err))
		}
		repos = append(repos, c.redisRepo)
	}

	// Postgres
	if c.cfg.Storage.Postgres.Enabled {
		repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
		if err != nil {
			return fail(fmt.Errorf("postgres init failed: %w", err))
		}
		repos = append(repos, repo)
		log.Info().Msg("postgres initialized")
	}

	c.repo = composite.New(repos...)
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Int("backends", c.repo.Len()).Msg("closing storage")
		return c.repo.Close()
	})
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Storage.Redis.Addr,
		Password: c.cfg.Storage.Redis.Password,
		DB:       c.cfg.Storage.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := time.Duration(c.cfg.Storage.Redis.TTLSeconds) * time.Second

	c.redisRepo = redisrepo.New(
		rdb,
		c.cfg.Storage.Redis.Prefix,
		ttl,
		c.cfg.Storage.Redis.NotificationStream,
		c.cfg.Storage.Redis.NotificationChannel,
	)

	log.Info().
		Str("addr", c.cfg.Storage.Redis.Addr).
		Int("db", c.cfg.Storage.Redis.DB).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}
	c.sqliteRepo = repo

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

// initCache 选择新闻缓存的后端
func (c *Container) initCache() error {
	switch c.cfg.Storage.Cache {
	case "sqlite":
		if c.sqliteRepo == nil {
			return fmt.Errorf("cache backend sqlite is not initialized")
		}
		c.cache = c.sqliteRepo
	case "redis":
		if c.redisRepo == nil {
			return fmt.Errorf("cache backend redis is not initialized")
		}
		c.cache = c.redisRepo
	default:
		c.cache = memory.NewCache()
	}
	log.Info().Str("backend", c.cfg.Storage.Cache).Msg("cache store ready")
	return nil
}

func (c *Container) initBridge(listeners []dispatch.Listener) {
	ledger := domain.NewLedger(c.cfg.App.LedgerCapacity)
	c.bridge = dispatch.NewBridge(ledger, listeners...)
	c.bridge.AddListener(metrics.NotificationCounter{Unread: ledger.UnreadCount})
	if c.redisRepo != nil {
		c.bridge.AddListener(c.redisRepo.Listener(2 * time.Second))
	}
}

// initApplication 创建上游客户端；缺少 key 的数据源不启动，并发布一条错误通知
func (c *Container) initApplication() {
	deps := appcontainer.Deps{
		Cache:   c.cache,
		Metrics: metrics.Recorder{},
		Bridge:  c.bridge,
	}
	if c.repo.Len() > 0 {
		deps.Repo = c.repo
	}

	if c.cfg.Price.Enabled {
		if cg, err := coingecko.NewClient(c.cfg.Price.BaseURL, c.cfg.Secrets.CoinGeckoKey, c.httpClient); err != nil {
			c.sourceDisabled("price", err)
		} else {
			deps.Coins = cg
		}
	}
	if c.cfg.Weather.Enabled {
		if ow, err := openweather.NewClient(c.cfg.Weather.BaseURL, c.cfg.Secrets.OpenWeatherKey, c.httpClient); err != nil {
			c.sourceDisabled("weather", err)
		} else {
			deps.Weather = ow
		}
	}
	if c.cfg.News.Enabled {
		if nd, err := newsdata.NewClient(c.cfg.News.BaseURL, c.cfg.Secrets.NewsDataKey, c.cfg.News.Language, c.httpClient); err != nil {
			c.sourceDisabled("news", err)
		} else {
			deps.News = nd
		}
	}

	c.app = appcontainer.New(deps, appcontainer.Settings{
		PriceInterval:      c.cfg.PriceInterval(),
		Displayed:          c.cfg.Price.Displayed,
		Pinned:             c.cfg.Price.Pinned,
		WeatherInterval:    c.cfg.WeatherInterval(),
		Cities:             c.cfg.Weather.Cities,
		WeatherConcurrency: c.cfg.Weather.Concurrency,
		NewsInterval:       c.cfg.NewsInterval(),
		NewsQuery:          c.cfg.News.Query,
		NewsTTL:            c.cfg.NewsTTL(),
	})
}

func (c *Container) sourceDisabled(name string, err error) {
	log.Error().Str("source", name).Err(err).Msg("data source disabled")
	c.bridge.Publish(model.CategoryError, "Configuration Error",
		fmt.Sprintf("The %s feed is disabled: %v", name, err))
}

func (c *Container) initSession() {
	if !c.cfg.Auth.Enabled {
		return
	}
	c.session = session.NewClient(c.cfg.Auth.BaseURL, c.httpClient)
}

func (c *Container) initStream() {
	if !c.cfg.Stream.Enabled {
		return
	}
	var token func() string
	if c.session != nil {
		token = c.session.BearerToken
	}
	c.stream = stream.NewClient(stream.Config{
		URL:         c.cfg.Stream.URL,
		BaseDelay:   c.cfg.StreamBaseDelay(),
		MaxAttempts: c.cfg.Stream.MaxAttempts,
		Header:      stream.BearerHeader(token, c.clientID),
	}, stream.NewWSDialer(), nil, c.bridge)
	c.stream.OnStateChange(func(s stream.State) { metrics.SetStreamState(s.String()) })
	metrics.SetStreamState(stream.StateIdle.String())

	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing stream")
		c.stream.Disconnect()
		return nil
	})
}

// Login 使用环境变量中的凭证登录；未启用认证或缺少凭证时跳过
func (c *Container) Login(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	email, password := c.cfg.Secrets.AuthEmail, c.cfg.Secrets.AuthPassword
	if email == "" || password == "" {
		log.Warn().Msg("auth enabled but AUTH_EMAIL/AUTH_PASSWORD not set, stream will connect anonymously")
		return nil
	}
	s, err := c.session.Login(ctx, port.Credentials{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	log.Info().Str("user_id", s.UserID).Bool("authenticated", c.session.IsAuthenticated()).Msg("login succeeded")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config { return c.cfg }

func (c *Container) App() *appcontainer.Container { return c.app }

func (c *Container) Bridge() *dispatch.Bridge { return c.bridge }

func (c *Container) Ledger() *domain.Ledger { return c.bridge.Ledger() }

func (c *Container) Cache() port.CacheStore { return c.cache }

// Stream is nil when the push connection is disabled.
func (c *Container) Stream() *stream.Client { return c.stream }

func (c *Container) Session() *session.Client { return c.session }

func (c *Container) ClientID() string { return c.clientID }

// SQLiteRepo 获取 SQLite 仓储
func (c *Container) SQLiteRepo() *sqliterepo.Repo { return c.sqliteRepo }

// RedisRepo 获取 Redis 仓储
func (c *Container) RedisRepo() *redisrepo.Repo { return c.redisRepo }

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
