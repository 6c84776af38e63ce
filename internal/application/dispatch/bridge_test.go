package dispatch

import (
	"errors"
	"testing"

	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
)

func TestPublishFansOut(t *testing.T) {
	var got []model.Notification
	b := NewBridge(domain.NewLedger(10), ListenerFunc(func(n model.Notification) {
		got = append(got, n)
	}))

	n := b.Publish(model.CategoryInfo, "hello", "world")
	if n.ID != 1 {
		t.Fatalf("first id = %d, want 1", n.ID)
	}
	if len(got) != 1 || got[0].Title != "hello" {
		t.Fatalf("listener got %+v", got)
	}
	if b.Ledger().UnreadCount() != 1 {
		t.Fatalf("unread = %d, want 1", b.Ledger().UnreadCount())
	}
}

func TestPriceUpdateThreshold(t *testing.T) {
	b := NewBridge(domain.NewLedger(10))

	var hookSym string
	var hookPrice float64
	b.OnPriceUpdate(func(sym string, price float64) {
		hookSym, hookPrice = sym, price
	})

	if b.PriceUpdate("BTC", 100, 1.5) {
		t.Fatalf("1.5%% must not alert")
	}
	if b.Ledger().Len() != 0 {
		t.Fatalf("ledger should be empty, got %d", b.Ledger().Len())
	}
	if hookSym != "BTC" || hookPrice != 100 {
		t.Fatalf("price hook got %s %v", hookSym, hookPrice)
	}

	if !b.PriceUpdate("btc", 97, -3.456) {
		t.Fatalf("-3.456%% should alert")
	}
	e := b.Ledger().Entries()[0]
	if e.Category != model.CategoryPriceAlert {
		t.Fatalf("category = %s", e.Category)
	}
	if e.Title != "BTC Price Alert" || e.Message != "BTC has decreased by 3.46%" {
		t.Fatalf("unexpected alert %q / %q", e.Title, e.Message)
	}

	if !b.PriceMove("ETH", 2) {
		t.Fatalf("exactly 2%% should alert")
	}
}

func TestFavoriteAndDisplayMessages(t *testing.T) {
	b := NewBridge(domain.NewLedger(10))

	b.FavoriteToggled("Bitcoin", true)
	b.FavoriteToggled("Bitcoin", false)
	b.DisplayChanged("Solana", true)

	es := b.Ledger().Entries()
	if es[2].Category != model.CategorySuccess || es[2].Title != "Added to Favorites" {
		t.Fatalf("unexpected %+v", es[2])
	}
	if es[1].Category != model.CategoryInfo || es[1].Message != "Bitcoin has been removed from your favorites" {
		t.Fatalf("unexpected %+v", es[1])
	}
	if es[0].Title != "Added to Display" || es[0].Message != "Solana has been added to your dashboard" {
		t.Fatalf("unexpected %+v", es[0])
	}
}

func TestWeatherAlertOnlyOnChange(t *testing.T) {
	b := NewBridge(domain.NewLedger(10))

	if !b.WeatherAlert("1", "Tokyo", "Severe weather: Thunderstorm") {
		t.Fatalf("first alert should publish")
	}
	if b.WeatherAlert("1", "Tokyo", "Severe weather: Thunderstorm") {
		t.Fatalf("same alert must not publish twice")
	}
	if b.WeatherAlert("1", "Tokyo", "") {
		t.Fatalf("cleared alert must not publish")
	}
	if !b.WeatherAlert("1", "Tokyo", "Severe weather: Thunderstorm") {
		t.Fatalf("alert raised again after clearing should publish")
	}
	if b.Ledger().Len() != 2 {
		t.Fatalf("len = %d, want 2", b.Ledger().Len())
	}
}

func TestConnectionLifecycleCategories(t *testing.T) {
	b := NewBridge(domain.NewLedger(10))
	b.Connected()
	b.Errored(errors.New("boom"))
	b.Disconnected()
	b.GaveUp()
	b.FetchFailed("weather", errors.New("all failed"))

	want := []model.Category{
		model.CategoryError, // fetch failed
		model.CategoryError, // gave up
		model.CategoryWarning,
		model.CategoryError,
		model.CategorySuccess,
	}
	es := b.Ledger().Entries()
	for i, c := range want {
		if es[i].Category != c {
			t.Fatalf("entry %d category = %s, want %s", i, es[i].Category, c)
		}
	}
	if es[1].Title != "Connection Failed" {
		t.Fatalf("title = %q", es[1].Title)
	}
}
