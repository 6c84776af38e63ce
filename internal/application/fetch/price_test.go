package fetch

import (
	"context"
	"errors"
	"testing"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
)

func newPrices(src *fakeCoins, repo port.Repository, displayed ...string) *Prices {
	return NewPrices(PriceDeps{
		Source: src,
		Table:  domain.NewTable[model.Coin](displayed),
		Bridge: newBridge(),
		Repo:   repo,
		Policy: noSleepPolicy(),
		Pinned: []string{"bitcoin"},
	})
}

func TestPricesRefreshBatchesAndAlertsOnSwing(t *testing.T) {
	src := &fakeCoins{prices: map[string]float64{"bitcoin": 100, "ethereum": 50}}
	repo := &recordingRepo{}
	p := newPrices(src, repo, "bitcoin", "ethereum")

	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if src.calls != 1 || len(src.lastIDs) != 2 {
		t.Fatalf("expected one batched call for 2 ids, got calls=%d ids=%v", src.calls, src.lastIDs)
	}
	if len(p.Coins()) != 2 {
		t.Fatalf("coins = %d, want 2", len(p.Coins()))
	}
	ledger := p.deps.Bridge.Ledger()
	if ledger.Len() != 0 {
		t.Fatalf("first fetch must not alert, got %d entries", ledger.Len())
	}

	src.prices["bitcoin"] = 103
	src.prices["ethereum"] = 50.5
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ledger.Len() != 1 {
		t.Fatalf("want exactly one price alert, got %d", ledger.Len())
	}
	e := ledger.Entries()[0]
	if e.Category != model.CategoryPriceAlert || e.Message != "BIT has increased by 3.00%" {
		t.Fatalf("unexpected alert %+v", e)
	}
	if repo.coins != 4 {
		t.Fatalf("persisted %d coins, want 4", repo.coins)
	}
}

func TestPricesRefreshFailurePublishesError(t *testing.T) {
	src := &fakeCoins{fail: &port.StatusError{Source: "coingecko", StatusCode: 500}}
	p := newPrices(src, nil, "bitcoin")

	if err := p.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if src.calls != 4 {
		t.Fatalf("calls = %d, want 4 (1 + 3 retries)", src.calls)
	}
	e := p.deps.Bridge.Ledger().Entries()[0]
	if e.Category != model.CategoryError || e.Title != "Data Fetch Error" {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestPricesDisplayAndFavorites(t *testing.T) {
	src := &fakeCoins{prices: map[string]float64{"bitcoin": 100, "solana": 20}}
	p := newPrices(src, nil, "bitcoin")
	ctx := context.Background()

	if _, err := p.ToggleFavorite("solana"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("favorite of unfetched coin: err = %v", err)
	}

	added, err := p.AddToDisplay(ctx, "solana")
	if err != nil || !added {
		t.Fatalf("AddToDisplay = %v, %v", added, err)
	}
	if added, _ := p.AddToDisplay(ctx, "solana"); added {
		t.Fatalf("second add should be a no-op")
	}
	e := p.deps.Bridge.Ledger().Entries()[0]
	if e.Title != "Added to Display" || e.Message != "Coin solana has been added to your dashboard" {
		t.Fatalf("unexpected entry %+v", e)
	}

	fav, err := p.ToggleFavorite("solana")
	if err != nil || !fav {
		t.Fatalf("ToggleFavorite = %v, %v", fav, err)
	}

	if err := p.RemoveFromDisplay("bitcoin"); !errors.Is(err, ErrPinned) {
		t.Fatalf("pinned removal: err = %v", err)
	}
	if err := p.RemoveFromDisplay("solana"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := p.Table().Get("solana"); !ok {
		t.Fatalf("removing from display must keep the record")
	}
}

func TestPricesApplyStreamPrice(t *testing.T) {
	src := &fakeCoins{prices: map[string]float64{"bitcoin": 100}}
	p := newPrices(src, nil, "bitcoin")
	if err := p.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	p.deps.Bridge.PriceUpdate("BIT", 120, 1)
	c, _ := p.Table().Get("bitcoin")
	if c.Price != 120 {
		t.Fatalf("price = %v, want 120", c.Price)
	}

	p.ApplyStreamPrice("unknown", 5)
	if len(p.Table().All()) != 1 {
		t.Fatalf("unknown symbols must not create records")
	}
}

func TestPricesSearch(t *testing.T) {
	refs := make([]model.CoinRef, 15)
	src := &fakeCoins{refs: refs}
	p := newPrices(src, nil)

	got, err := p.Search(context.Background(), "b")
	if err != nil || got != nil || src.calls != 0 {
		t.Fatalf("short query should not hit upstream: %v %v calls=%d", got, err, src.calls)
	}
	got, err = p.Search(context.Background(), "bi")
	if err != nil || len(got) != 10 {
		t.Fatalf("search = %d results, %v", len(got), err)
	}
}

func TestFetchersDefaultBridge(t *testing.T) {
	ctx := context.Background()

	p := NewPrices(PriceDeps{
		Source: &fakeCoins{fail: &port.StatusError{Source: "coingecko", StatusCode: 500}},
		Table:  domain.NewTable[model.Coin]([]string{"bitcoin"}),
		Policy: noSleepPolicy(),
	})
	if err := p.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if p.deps.Bridge.Ledger().Len() != 1 {
		t.Fatalf("failure should land in the default ledger")
	}

	w := NewWeather(WeatherDeps{
		Source: &fakeWeather{fail: map[string]error{"Oslo": &port.StatusError{StatusCode: 404}}},
		Table:  domain.NewTable[model.City](nil),
		Policy: noSleepPolicy(),
	}, []string{"Oslo"})
	if err := w.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}

	n := NewNews(NewsDeps{
		Source: &fakeNews{err: &port.StatusError{Source: "newsdata", StatusCode: 500}},
		Cache:  newMemCache(),
		Policy: noSleepPolicy(),
	})
	if _, err := n.Refresh(ctx); err == nil {
		t.Fatalf("expected error")
	}
}
