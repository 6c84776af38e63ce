package stream

import (
	"encoding/json"

	"pulseboard/internal/domain/model"

	"github.com/rs/zerolog/log"
)

const typePriceUpdate = "price_update"

// inbound covers both frame shapes:
// {type:"price_update", symbol, price, percentChange} and {type:<category>, title, message}.
type inbound struct {
	Type          string  `json:"type"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	PercentChange float64 `json:"percentChange"`
	Title         string  `json:"title"`
	Message       string  `json:"message"`
}

func (c *Client) handleMessage(b []byte) {
	var m inbound
	if err := json.Unmarshal(b, &m); err != nil {
		log.Warn().Err(err).Int("bytes", len(b)).Msg("stream: malformed frame dropped")
		return
	}

	if m.Type == typePriceUpdate {
		if m.Symbol == "" {
			log.Warn().Msg("stream: price_update without symbol dropped")
			return
		}
		c.events.PriceUpdate(m.Symbol, m.Price, m.PercentChange)
		return
	}

	cat, ok := model.ParseCategory(m.Type)
	if !ok {
		log.Warn().Str("type", m.Type).Msg("stream: unknown frame type dropped")
		return
	}
	c.events.Publish(cat, m.Title, m.Message)
}
