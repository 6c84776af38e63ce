package coingecko

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
	"pulseboard/internal/infrastructure/upstream"
)

const (
	source         = "coingecko"
	DefaultBaseURL = "https://api.coingecko.com"
	apiKeyHeader   = "x-cg-demo-api-key"
)

// Client CoinGecko REST 客户端
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ port.CoinSource = (*Client)(nil)

// NewClient fails with a ConfigError when apiKey is empty.
func NewClient(baseURL, apiKey string, hc *http.Client) (*Client, error) {
	if err := upstream.RequireKey(source, apiKey); err != nil {
		return nil, err
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = upstream.NewHTTPClient(0)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: hc}, nil
}

type marketResp struct {
	ID                       string   `json:"id"`
	Symbol                   string   `json:"symbol"`
	Name                     string   `json:"name"`
	CurrentPrice             float64  `json:"current_price"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
	MarketCap                float64  `json:"market_cap"`
	LastUpdated              string   `json:"last_updated"`
}

type searchResp struct {
	Coins []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"coins"`
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set(apiKeyHeader, c.apiKey)
	return h
}

// Markets 一次请求批量获取多个币种行情
func (c *Client) Markets(ctx context.Context, ids []string) ([]model.Coin, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("ids", strings.Join(ids, ","))
	q.Set("order", "market_cap_desc")
	q.Set("sparkline", "false")

	var rows []marketResp
	if err := upstream.GetJSON(ctx, c.client, source, c.baseURL+"/api/v3/coins/markets?"+q.Encode(), c.header(), &rows); err != nil {
		return nil, err
	}

	out := make([]model.Coin, 0, len(rows))
	for _, r := range rows {
		coin := model.Coin{
			ID:        r.ID,
			Symbol:    r.Symbol,
			Name:      r.Name,
			Price:     r.CurrentPrice,
			MarketCap: r.MarketCap,
		}
		if r.PriceChangePercentage24h != nil {
			coin.PriceChange24h = *r.PriceChangePercentage24h
		}
		if ts, err := time.Parse(time.RFC3339, r.LastUpdated); err == nil {
			coin.LastUpdated = ts
		}
		out = append(out, coin)
	}
	return out, nil
}

func (c *Client) Search(ctx context.Context, query string) ([]model.CoinRef, error) {
	q := url.Values{}
	q.Set("query", query)

	var resp searchResp
	if err := upstream.GetJSON(ctx, c.client, source, c.baseURL+"/api/v3/search?"+q.Encode(), c.header(), &resp); err != nil {
		return nil, err
	}
	out := make([]model.CoinRef, 0, len(resp.Coins))
	for _, r := range resp.Coins {
		out = append(out, model.CoinRef{ID: r.ID, Name: r.Name, Symbol: r.Symbol})
	}
	return out, nil
}
