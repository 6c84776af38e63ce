package dispatch

import (
	"strings"
	"sync"

	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
	dsvc "pulseboard/internal/domain/service"

	"github.com/rs/zerolog/log"
)

// Listener receives every entry appended to the ledger.
type Listener interface {
	OnNotification(n model.Notification)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(n model.Notification)

func (f ListenerFunc) OnNotification(n model.Notification) { f(n) }

// Bridge 所有通知生产者的唯一入口：写入 Ledger 并广播给监听者。
// 派生通知（价格提醒阈值、收藏/展示、拉取失败、连接状态）都在这里生成。
type Bridge struct {
	ledger *domain.Ledger

	mu        sync.RWMutex
	listeners []Listener
	onPrice   func(symbol string, price float64)

	alertMu    sync.Mutex
	lastAlerts map[string]string // city id -> alert text
}

func NewBridge(ledger *domain.Ledger, listeners ...Listener) *Bridge {
	if ledger == nil {
		ledger = domain.NewLedger(domain.DefaultLedgerCapacity)
	}
	return &Bridge{
		ledger:     ledger,
		listeners:  listeners,
		lastAlerts: make(map[string]string),
	}
}

func (b *Bridge) Ledger() *domain.Ledger { return b.ledger }

func (b *Bridge) AddListener(l Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// OnPriceUpdate registers the hook that receives stream price updates
// (the price orchestrator uses it to refresh known coins).
func (b *Bridge) OnPriceUpdate(fn func(symbol string, price float64)) {
	b.mu.Lock()
	b.onPrice = fn
	b.mu.Unlock()
}

// Publish appends to the ledger and fans the entry out to listeners.
func (b *Bridge) Publish(category model.Category, title, message string) model.Notification {
	n := b.ledger.Append(category, title, message)

	b.mu.RLock()
	ls := append([]Listener(nil), b.listeners...)
	b.mu.RUnlock()

	for _, l := range ls {
		l.OnNotification(n)
	}
	return n
}

// PriceUpdate handles a pushed price_update frame. Returns true if a
// price alert was published.
func (b *Bridge) PriceUpdate(symbol string, price, percentChange float64) bool {
	b.mu.RLock()
	fn := b.onPrice
	b.mu.RUnlock()
	if fn != nil && price > 0 {
		fn(symbol, price)
	}
	return b.PriceMove(symbol, percentChange)
}

// PriceMove publishes a price alert when |pct| reaches the threshold.
func (b *Bridge) PriceMove(symbol string, pct float64) bool {
	if strings.TrimSpace(symbol) == "" || !dsvc.IsSignificantMove(pct) {
		return false
	}
	title, msg := dsvc.PriceAlertText(symbol, pct)
	b.Publish(model.CategoryPriceAlert, title, msg)
	return true
}

func (b *Bridge) FavoriteToggled(name string, favorite bool) {
	if favorite {
		b.Publish(model.CategorySuccess, "Added to Favorites", name+" has been added to your favorites")
		return
	}
	b.Publish(model.CategoryInfo, "Removed from Favorites", name+" has been removed from your favorites")
}

func (b *Bridge) DisplayChanged(name string, added bool) {
	if added {
		b.Publish(model.CategoryInfo, "Added to Display", name+" has been added to your dashboard")
		return
	}
	b.Publish(model.CategoryInfo, "Removed from Display", name+" has been removed from your dashboard")
}

// FetchFailed reports an aggregate fetch failure of one data source
// ("cryptocurrency", "weather", "news").
func (b *Bridge) FetchFailed(source string, err error) {
	if err != nil {
		log.Warn().Str("source", source).Err(err).Msg("fetch failed")
	}
	b.Publish(model.CategoryError, "Data Fetch Error",
		"Failed to fetch "+source+" data. Please try again later.")
}

// WeatherAlert publishes only when the city's alert text changes to a new
// non-empty value.
func (b *Bridge) WeatherAlert(cityID, cityName, alert string) bool {
	alert = strings.TrimSpace(alert)

	b.alertMu.Lock()
	prev := b.lastAlerts[cityID]
	b.lastAlerts[cityID] = alert
	b.alertMu.Unlock()

	if alert == "" || alert == prev {
		return false
	}
	b.Publish(model.CategoryWeatherAlert, "Weather Alert: "+cityName, alert)
	return true
}

// Connection lifecycle

func (b *Bridge) Connected() {
	b.Publish(model.CategorySuccess, "Connection Established", "Successfully connected to real-time updates")
}

func (b *Bridge) Disconnected() {
	b.Publish(model.CategoryWarning, "Connection Lost", "Lost connection to real-time updates. Attempting to reconnect...")
}

func (b *Bridge) Errored(err error) {
	if err != nil {
		log.Warn().Err(err).Msg("stream error")
	}
	b.Publish(model.CategoryError, "Connection Error", "Error in real-time connection. Attempting to reconnect...")
}

func (b *Bridge) GaveUp() {
	b.Publish(model.CategoryError, "Connection Failed", "Failed to establish connection after multiple attempts. Please try again later.")
}
