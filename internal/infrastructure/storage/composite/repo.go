package composite

import (
	"context"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
)

type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil repos are allowed; filter in constructor for safety
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) SaveCoins(ctx context.Context, coins []model.Coin) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveCoins(ctx, coins); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) SaveCities(ctx context.Context, cities []model.City) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveCities(ctx, cities); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every member; members are owned by the composite.
func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Repository = (*Repo)(nil)
