package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pulseboard/internal/application/dispatch"
	"pulseboard/internal/application/port"
	"pulseboard/internal/domain"
	"pulseboard/internal/domain/model"
	dsvc "pulseboard/internal/domain/service"

	"github.com/rs/zerolog/log"
)

const (
	sourcePrice = "cryptocurrency"

	minCoinQuery   = 2
	maxCoinResults = 10
)

type PriceDeps struct {
	Source   port.CoinSource
	Table    *domain.Table[model.Coin]
	Bridge   *dispatch.Bridge
	Repo     port.Repository
	Metrics  port.Metrics
	Policy   Policy
	Interval time.Duration
	// Pinned ids stay on the display.
	Pinned []string
}

// Prices 价格拉取器：一次批量请求拉取所有展示中的币种
type Prices struct {
	deps   PriceDeps
	poller *Poller
	now    func() time.Time
}

func NewPrices(deps PriceDeps) *Prices {
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics{}
	}
	if deps.Bridge == nil {
		deps.Bridge = dispatch.NewBridge(nil)
	}
	if deps.Policy.MaxRetries == 0 && deps.Policy.BaseDelay == 0 {
		deps.Policy = DefaultPolicy()
	}
	p := &Prices{deps: deps, now: time.Now}
	p.poller = NewPoller("price", deps.Interval, func(ctx context.Context) { _ = p.Refresh(ctx) })
	deps.Bridge.OnPriceUpdate(p.ApplyStreamPrice)
	return p
}

func (p *Prices) Run(ctx context.Context) error { return p.poller.Run(ctx) }

// Refetch asks the running poller for an immediate tick.
func (p *Prices) Refetch() { p.poller.Trigger() }

func (p *Prices) Favorites() []string { return p.deps.Table.Favorites() }

func (p *Prices) Table() *domain.Table[model.Coin] { return p.deps.Table }

// Coins returns fetched records of the displayed set.
func (p *Prices) Coins() []model.Coin { return p.deps.Table.DisplayedRecords() }

// Refresh fetches every displayed coin in one batched request.
func (p *Prices) Refresh(ctx context.Context) error {
	ids := p.deps.Table.Displayed()
	if len(ids) == 0 {
		return nil
	}
	coins, err := p.fetch(ctx, ids)
	if err != nil {
		if ctx.Err() == nil {
			p.deps.Bridge.FetchFailed(sourcePrice, err)
		}
		return err
	}
	p.merge(ctx, coins)
	return nil
}

func (p *Prices) fetch(ctx context.Context, ids []string) ([]model.Coin, error) {
	pol := p.deps.Policy
	pol.OnRetry = func(attempt int, err error, d time.Duration) {
		p.deps.Metrics.FetchRetried(sourcePrice)
		log.Warn().Str("source", sourcePrice).Int("attempt", attempt+1).Dur("delay", d).Err(err).Msg("retrying fetch")
	}
	coins, err := Do(ctx, pol, func(ctx context.Context) ([]model.Coin, error) {
		return p.deps.Source.Markets(ctx, ids)
	})
	p.deps.Metrics.FetchCompleted(sourcePrice, err)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	return coins, nil
}

type priceMove struct {
	symbol string
	pct    float64
}

// merge 合并拉取结果；与上次价格相比变动超过阈值时发布价格提醒
func (p *Prices) merge(ctx context.Context, coins []model.Coin) {
	var moves []priceMove
	p.deps.Table.Upsert(coins, func(prev model.Coin, ok bool, next model.Coin) model.Coin {
		if ok && prev.Price > 0 && next.Price > 0 {
			if pct := dsvc.PercentChange(prev.Price, next.Price); dsvc.IsSignificantMove(pct) {
				moves = append(moves, priceMove{symbol: next.Symbol, pct: pct})
			}
		}
		if next.LastUpdated.IsZero() {
			next.LastUpdated = p.now()
		}
		return next
	})
	for _, m := range moves {
		p.deps.Bridge.PriceMove(m.symbol, m.pct)
	}

	if p.deps.Repo != nil {
		if err := p.deps.Repo.SaveCoins(ctx, coins); err != nil {
			log.Warn().Err(err).Int("coins", len(coins)).Msg("persist coins failed")
		}
	}
}

// Search returns the top coin matches; queries shorter than 2 characters
// return nothing.
func (p *Prices) Search(ctx context.Context, query string) ([]model.CoinRef, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < minCoinQuery {
		return nil, nil
	}
	refs, err := Do(ctx, p.deps.Policy, func(ctx context.Context) ([]model.CoinRef, error) {
		return p.deps.Source.Search(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("search coins: %w", err)
	}
	if len(refs) > maxCoinResults {
		refs = refs[:maxCoinResults]
	}
	return refs, nil
}

// AddToDisplay adds id to the display set and fetches it right away.
// Returns false when id was already displayed.
func (p *Prices) AddToDisplay(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if !p.deps.Table.AddToDisplay(id) {
		return false, nil
	}

	coins, err := p.fetch(ctx, []string{id})
	if err != nil {
		log.Warn().Str("coin", id).Err(err).Msg("on-demand fetch failed")
	} else {
		p.merge(ctx, coins)
	}
	p.deps.Bridge.DisplayChanged(p.label(id), true)
	return true, err
}

func (p *Prices) RemoveFromDisplay(id string) error {
	for _, pinned := range p.deps.Pinned {
		if pinned == id {
			return ErrPinned
		}
	}
	if !p.deps.Table.RemoveFromDisplay(id) {
		return ErrNotFound
	}
	p.deps.Bridge.DisplayChanged(p.label(id), false)
	return nil
}

// ToggleFavorite returns the new favorite state.
func (p *Prices) ToggleFavorite(id string) (bool, error) {
	coin, fav, ok := p.deps.Table.ToggleFavorite(id)
	if !ok {
		return false, ErrNotFound
	}
	p.deps.Bridge.FavoriteToggled(coin.Name, fav)
	return fav, nil
}

// ApplyStreamPrice updates a known coin from a pushed price; symbol may be
// the coin symbol or its id.
func (p *Prices) ApplyStreamPrice(symbol string, price float64) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" || price <= 0 {
		return
	}
	for _, c := range p.deps.Table.All() {
		if c.ID != symbol && !strings.EqualFold(c.Symbol, symbol) {
			continue
		}
		p.deps.Table.Update(c.ID, func(cur model.Coin) model.Coin {
			cur.Price = price
			cur.LastUpdated = p.now()
			return cur
		})
		return
	}
}

func (p *Prices) label(id string) string {
	if c, ok := p.deps.Table.Get(id); ok && c.Name != "" {
		return c.Name
	}
	return id
}
