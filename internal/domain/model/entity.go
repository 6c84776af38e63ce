package model

import "time"

// Coin 价格实体（CoinGecko markets）
type Coin struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Name           string    `json:"name"`
	Price          float64   `json:"price"`
	PriceChange24h float64   `json:"price_change_24h"` // 24h 涨跌幅 %
	MarketCap      float64   `json:"market_cap"`
	LastUpdated    time.Time `json:"last_updated"`
}

func (c Coin) Key() string   { return c.ID }
func (c Coin) Label() string { return c.Name }

// CoinRef is a coin search hit.
type CoinRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// WeatherSample 历史采样点
type WeatherSample struct {
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
}

// City 位置实体（OpenWeather current weather）
type City struct {
	ID          string          `json:"id"`
	Name        string          `json:"city"`
	State       string          `json:"state,omitempty"`
	Country     string          `json:"country"`
	Temperature float64         `json:"temperature"`
	Humidity    float64         `json:"humidity"`
	Pressure    float64         `json:"pressure"`
	WindSpeed   float64         `json:"wind_speed"`
	Conditions  string          `json:"conditions"`
	Alert       string          `json:"alert,omitempty"`
	// ManualAlert is set by the user and survives refreshes; Alert shows it
	// in place of the condition-derived one while non-empty.
	ManualAlert string          `json:"manual_alert,omitempty"`
	History     []WeatherSample `json:"history"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (c City) Key() string   { return c.ID }
func (c City) Label() string { return c.Name }

// Place is a geocoding hit used for city suggestions.
type Place struct {
	Name    string  `json:"name"`
	State   string  `json:"state,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// Article 新闻条目
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	ImageURL    string `json:"image_url,omitempty"`
	SourceName  string `json:"source_name"`
	Date        string `json:"date"`
}
