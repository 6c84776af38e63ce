package port

import (
	"context"

	"pulseboard/internal/domain/model"
)

// CoinSource 行情数据源（CoinGecko）
type CoinSource interface {
	// Markets fetches all ids in one batched request.
	Markets(ctx context.Context, ids []string) ([]model.Coin, error)
	Search(ctx context.Context, query string) ([]model.CoinRef, error)
}

// Observation is one current-weather reading with the station coordinates.
type Observation struct {
	City model.City
	Lat  float64
	Lon  float64
}

// WeatherSource 天气数据源（OpenWeather）
type WeatherSource interface {
	Current(ctx context.Context, city string) (Observation, error)
	Reverse(ctx context.Context, lat, lon float64) (model.Place, error)
	Direct(ctx context.Context, query string, limit int) ([]model.Place, error)
}

// NewsSource 新闻数据源（NewsData）
type NewsSource interface {
	Latest(ctx context.Context, query string) ([]model.Article, error)
}
