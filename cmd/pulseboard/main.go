package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/application/usecase/dashboard"
	"pulseboard/internal/infrastructure/config"
	"pulseboard/internal/infrastructure/container"
	"pulseboard/internal/infrastructure/logger"
	"pulseboard/internal/interfaces/console"
	"pulseboard/internal/interfaces/httpapi"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// output sink (console), also the first notification listener
	sink := console.NewSink()

	c, err := container.New(cfg, sink)
	if err != nil {
		log.Fatal().Err(err).Msg("init container failed")
	}
	defer c.Close()

	loginCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := c.Login(loginCtx); err != nil {
		log.Warn().Err(err).Msg("login failed, stream will connect anonymously")
	}
	cancel()

	app := c.App()

	// nil 指针不能直接放进接口
	var st port.StreamControl
	if s := c.Stream(); s != nil {
		st = s
	}

	svc := dashboard.NewService(dashboard.ServiceDeps{
		Prices:        app.Prices(),
		Weather:       app.Weather(),
		News:          app.News(),
		Stream:        st,
		Ledger:        c.Ledger(),
		Sink:          sink,
		RenderEvery:   time.Duration(cfg.App.RenderEverySec) * time.Second,
		SnapshotEvery: time.Duration(cfg.App.SnapshotMin) * time.Minute,
	})

	log.Info().
		Str("config", *configPath).
		Str("client_id", c.ClientID()).
		Strs("coins", cfg.Price.Displayed).
		Strs("cities", cfg.Weather.Cities).
		Bool("stream", cfg.Stream.Enabled).
		Msg("pulseboard started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })

	if cfg.App.HTTPAddr != "" {
		deps := httpapi.Deps{Ledger: c.Ledger(), Stream: st}
		// 同样避免把 nil 指针装进接口
		if p := app.Prices(); p != nil {
			deps.Prices = p
		}
		if w := app.Weather(); w != nil {
			deps.Weather = w
		}
		if n := app.News(); n != nil {
			deps.News = n
		}
		if r := c.SQLiteRepo(); r != nil {
			deps.History = r
		}
		srv := httpapi.NewServer(cfg.App.HTTPAddr, deps)
		g.Go(func() error { return srv.Run(gctx) })
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("pulseboard exited")
	}
}
