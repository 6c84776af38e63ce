package port

import (
	"context"

	"pulseboard/internal/domain/model"
)

// Repository persists fetched entities (best effort, never on the hot path
// of a fetch result).
type Repository interface {
	SaveCoins(ctx context.Context, coins []model.Coin) error
	SaveCities(ctx context.Context, cities []model.City) error

	// Connection management
	Close() error
}
