package model

import (
	"strings"
	"time"
)

// Category 通知类别，取值与推送流中的 type 字段一致
type Category string

const (
	CategorySuccess      Category = "success"
	CategoryWarning      Category = "warning"
	CategoryError        Category = "error"
	CategoryInfo         Category = "info"
	CategoryPriceAlert   Category = "price_alert"
	CategoryWeatherAlert Category = "weather_alert"
)

var categories = map[Category]struct{}{
	CategorySuccess:      {},
	CategoryWarning:      {},
	CategoryError:        {},
	CategoryInfo:         {},
	CategoryPriceAlert:   {},
	CategoryWeatherAlert: {},
}

// ParseCategory accepts both the wire form (price_alert) and the hyphenated
// form (price-alert).
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := categories[c]; !ok {
		return "", false
	}
	return c, true
}

func (c Category) Valid() bool {
	_, ok := categories[c]
	return ok
}

// Notification is a ledger entry. Only Read changes after creation.
type Notification struct {
	ID        uint64    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  Category  `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}
