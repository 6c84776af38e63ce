package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pulseboard/internal/application/fetch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"

	"github.com/gorilla/mux"
)

type handler struct {
	d Deps
}

// writeFetchError maps application errors to HTTP status codes.
func writeFetchError(w http.ResponseWriter, err error) {
	var (
		cfgErr    *port.ConfigError
		statusErr *port.StatusError
	)
	switch {
	case errors.Is(err, fetch.ErrNotFound),
		errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, fetch.ErrPinned):
		writeError(w, http.StatusConflict, "pinned", err.Error())
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusServiceUnavailable, "config", err.Error())
	case errors.Is(err, port.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "upstream", err.Error())
	}
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, "disabled", what+" is not enabled")
}

// ---- notifications ----

type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
	Total         int                  `json:"total"`
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	l := h.d.Ledger
	entries := l.Entries()
	if c := strings.TrimSpace(r.URL.Query().Get("type")); c != "" {
		cat, ok := model.ParseCategory(c)
		if !ok {
			writeError(w, http.StatusBadRequest, "bad_type", "unknown notification type "+c)
			return
		}
		filtered := entries[:0]
		for _, e := range entries {
			if e.Category == cat {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	writeJSON(w, http.StatusOK, NotificationsResponse{
		Notifications: entries,
		Unread:        l.UnreadCount(),
		Total:         len(entries),
	})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_id", "invalid id")
		return
	}
	// 未知 id 是静默的 no-op
	changed := h.d.Ledger.MarkRead(id)
	writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "unread": h.d.Ledger.UnreadCount()})
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	h.d.Ledger.MarkAllRead()
	writeJSON(w, http.StatusOK, map[string]any{"unread": 0})
}

func (h *handler) clearNotifications(w http.ResponseWriter, r *http.Request) {
	h.d.Ledger.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// ---- prices ----

type PricesResponse struct {
	Coins     []model.Coin `json:"coins"`
	Favorites []string     `json:"favorites"`
}

func (h *handler) listPrices(w http.ResponseWriter, r *http.Request) {
	p := h.d.Prices
	if p == nil {
		unavailable(w, "price feed")
		return
	}
	writeJSON(w, http.StatusOK, PricesResponse{Coins: nonNil(p.Coins()), Favorites: nonNil(p.Favorites())})
}

func (h *handler) searchCoins(w http.ResponseWriter, r *http.Request) {
	p := h.d.Prices
	if p == nil {
		unavailable(w, "price feed")
		return
	}
	refs, err := p.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": nonNil(refs)})
}

func (h *handler) refetchPrices(w http.ResponseWriter, r *http.Request) {
	if h.d.Prices == nil {
		unavailable(w, "price feed")
		return
	}
	h.d.Prices.Refetch()
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) toggleCoinFavorite(w http.ResponseWriter, r *http.Request) {
	if h.d.Prices == nil {
		unavailable(w, "price feed")
		return
	}
	fav, err := h.d.Prices.ToggleFavorite(mux.Vars(r)["id"])
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

func (h *handler) addCoinDisplay(w http.ResponseWriter, r *http.Request) {
	if h.d.Prices == nil {
		unavailable(w, "price feed")
		return
	}
	added, err := h.d.Prices.AddToDisplay(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (h *handler) removeCoinDisplay(w http.ResponseWriter, r *http.Request) {
	if h.d.Prices == nil {
		unavailable(w, "price feed")
		return
	}
	if err := h.d.Prices.RemoveFromDisplay(mux.Vars(r)["id"]); err != nil {
		writeFetchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func (h *handler) coinHistory(w http.ResponseWriter, r *http.Request) {
	if h.d.History == nil {
		unavailable(w, "snapshot history")
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	coins, err := h.d.History.CoinHistory(r.Context(), mux.Vars(r)["id"], limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": nonNil(coins)})
}

// ---- weather ----

type WeatherResponse struct {
	Cities    []model.City `json:"cities"`
	Favorites []string     `json:"favorites"`
}

func (h *handler) listWeather(w http.ResponseWriter, r *http.Request) {
	ws := h.d.Weather
	if ws == nil {
		unavailable(w, "weather feed")
		return
	}
	writeJSON(w, http.StatusOK, WeatherResponse{Cities: nonNil(ws.Cities()), Favorites: nonNil(ws.Favorites())})
}

func (h *handler) suggestCities(w http.ResponseWriter, r *http.Request) {
	if h.d.Weather == nil {
		unavailable(w, "weather feed")
		return
	}
	places, err := h.d.Weather.Suggest(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": nonNil(places)})
}

type cityRequest struct {
	City string `json:"city"`
}

func (h *handler) searchCity(w http.ResponseWriter, r *http.Request) {
	if h.d.Weather == nil {
		unavailable(w, "weather feed")
		return
	}
	var req cityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.City) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"city\": \"<name>\"}")
		return
	}
	city, err := h.d.Weather.Search(r.Context(), req.City)
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

func (h *handler) refetchWeather(w http.ResponseWriter, r *http.Request) {
	if h.d.Weather == nil {
		unavailable(w, "weather feed")
		return
	}
	h.d.Weather.Refetch()
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) toggleCityFavorite(w http.ResponseWriter, r *http.Request) {
	if h.d.Weather == nil {
		unavailable(w, "weather feed")
		return
	}
	fav, err := h.d.Weather.ToggleFavorite(mux.Vars(r)["id"])
	if err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"favorite": fav})
}

type alertRequest struct {
	Alert string `json:"alert"`
}

func (h *handler) setCityAlert(w http.ResponseWriter, r *http.Request) {
	if h.d.Weather == nil {
		unavailable(w, "weather feed")
		return
	}
	var req alertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "body must be {\"alert\": \"...\"}")
		return
	}
	if err := h.d.Weather.SetAlert(mux.Vars(r)["id"], req.Alert); err != nil {
		writeFetchError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- news ----

type NewsResponse struct {
	Articles  []model.Article `json:"articles"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
}

func newsResponse(arts []model.Article, at time.Time) NewsResponse {
	resp := NewsResponse{Articles: nonNil(arts)}
	if !at.IsZero() {
		resp.UpdatedAt = &at
	}
	return resp
}

func (h *handler) listNews(w http.ResponseWriter, r *http.Request) {
	if h.d.News == nil {
		unavailable(w, "news feed")
		return
	}
	writeJSON(w, http.StatusOK, newsResponse(h.d.News.Articles()))
}

func (h *handler) refreshNews(w http.ResponseWriter, r *http.Request) {
	if h.d.News == nil {
		unavailable(w, "news feed")
		return
	}
	if _, err := h.d.News.Refresh(r.Context()); err != nil {
		writeFetchError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newsResponse(h.d.News.Articles()))
}

// ---- stream ----

type StreamResponse struct {
	State    string `json:"state"`
	Attempts int    `json:"attempts"`
}

func (h *handler) streamStatus(w http.ResponseWriter, r *http.Request) {
	s := h.d.Stream
	if s == nil {
		unavailable(w, "stream")
		return
	}
	writeJSON(w, http.StatusOK, StreamResponse{State: s.Status(), Attempts: s.Attempts()})
}

// streamConnect 手动连接；Failed 之后只能通过这里恢复
func (h *handler) streamConnect(w http.ResponseWriter, r *http.Request) {
	s := h.d.Stream
	if s == nil {
		unavailable(w, "stream")
		return
	}
	// 拨号失败已经由重连策略接管，这里只返回当前状态
	_ = s.Connect(r.Context())
	writeJSON(w, http.StatusOK, StreamResponse{State: s.Status(), Attempts: s.Attempts()})
}

func (h *handler) streamDisconnect(w http.ResponseWriter, r *http.Request) {
	s := h.d.Stream
	if s == nil {
		unavailable(w, "stream")
		return
	}
	s.Disconnect()
	writeJSON(w, http.StatusOK, StreamResponse{State: s.Status(), Attempts: s.Attempts()})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
