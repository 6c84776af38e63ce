package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type PriceService interface {
	Coins() []model.Coin
	Favorites() []string
	Search(ctx context.Context, query string) ([]model.CoinRef, error)
	AddToDisplay(ctx context.Context, id string) (bool, error)
	RemoveFromDisplay(id string) error
	ToggleFavorite(id string) (bool, error)
	Refetch()
}

type WeatherService interface {
	Cities() []model.City
	Favorites() []string
	Search(ctx context.Context, name string) (model.City, error)
	Suggest(ctx context.Context, query string) ([]model.Place, error)
	SetAlert(id, alert string) error
	ToggleFavorite(id string) (bool, error)
	Refetch()
}

type NewsService interface {
	Articles() ([]model.Article, time.Time)
	Refresh(ctx context.Context) ([]model.Article, error)
}

// HistoryReader serves persisted price snapshots.
type HistoryReader interface {
	CoinHistory(ctx context.Context, coinID string, limit int) ([]model.Coin, error)
}

// Deps: 除 Ledger 外都可以为 nil，对应路由返回 503
type Deps struct {
	Ledger  *domain.Ledger
	Prices  PriceService
	Weather WeatherService
	News    NewsService
	Stream  port.StreamControl
	History HistoryReader
}

// NewRouter 注册所有路由
//
//	/api/notifications      通知列表 / 已读 / 清空
//	/api/prices             币价、搜索、收藏、展示
//	/api/weather            天气、城市建议、搜索、收藏、提醒
//	/api/news               新闻
//	/api/stream             推送连接状态与手动连接
//	/metrics                Prometheus
func NewRouter(d Deps) *mux.Router {
	h := &handler{d: d}

	r := mux.NewRouter()
	r.Use(recovery)
	r.Use(logging)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/notifications", h.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications", h.clearNotifications).Methods(http.MethodDelete)
	api.HandleFunc("/notifications/read-all", h.markAllRead).Methods(http.MethodPost)
	api.HandleFunc("/notifications/{id:[0-9]+}/read", h.markRead).Methods(http.MethodPost)

	api.HandleFunc("/prices", h.listPrices).Methods(http.MethodGet)
	api.HandleFunc("/prices/search", h.searchCoins).Methods(http.MethodGet)
	api.HandleFunc("/prices/refresh", h.refetchPrices).Methods(http.MethodPost)
	api.HandleFunc("/prices/{id}/history", h.coinHistory).Methods(http.MethodGet)
	api.HandleFunc("/prices/{id}/favorite", h.toggleCoinFavorite).Methods(http.MethodPost)
	api.HandleFunc("/prices/{id}/display", h.addCoinDisplay).Methods(http.MethodPost)
	api.HandleFunc("/prices/{id}/display", h.removeCoinDisplay).Methods(http.MethodDelete)

	api.HandleFunc("/weather", h.listWeather).Methods(http.MethodGet)
	api.HandleFunc("/weather/suggest", h.suggestCities).Methods(http.MethodGet)
	api.HandleFunc("/weather/search", h.searchCity).Methods(http.MethodPost)
	api.HandleFunc("/weather/refresh", h.refetchWeather).Methods(http.MethodPost)
	api.HandleFunc("/weather/{id}/favorite", h.toggleCityFavorite).Methods(http.MethodPost)
	api.HandleFunc("/weather/{id}/alert", h.setCityAlert).Methods(http.MethodPut)

	api.HandleFunc("/news", h.listNews).Methods(http.MethodGet)
	api.HandleFunc("/news/refresh", h.refreshNews).Methods(http.MethodPost)

	api.HandleFunc("/stream", h.streamStatus).Methods(http.MethodGet)
	api.HandleFunc("/stream/connect", h.streamConnect).Methods(http.MethodPost)
	api.HandleFunc("/stream/disconnect", h.streamDisconnect).Methods(http.MethodPost)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	return r
}

// Server wraps http.Server with context-driven shutdown.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, d Deps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.srv.Addr).Msg("http api listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("http api stopped")
	return nil
}
