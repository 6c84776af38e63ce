package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
)

// Repo Postgres 快照历史（pgx stdlib 驱动）
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := NewWithDB(db)
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewWithDB wraps an open handle without migrating.
func NewWithDB(db *sql.DB) *Repo {
	return &Repo{db: db, now: time.Now}
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS coin_history (
  id BIGSERIAL PRIMARY KEY,
  coin_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  change_24h DOUBLE PRECISION NOT NULL,
  market_cap DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coin_history_coin ON coin_history(coin_id, ts_ms);

CREATE TABLE IF NOT EXISTS weather_history (
  id BIGSERIAL PRIMARY KEY,
  city_id TEXT NOT NULL,
  city TEXT NOT NULL,
  temperature DOUBLE PRECISION NOT NULL,
  humidity DOUBLE PRECISION NOT NULL,
  conditions TEXT NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_weather_history_city ON weather_history(city_id, ts_ms);
`)
	return err
}

func (r *Repo) SaveCoins(ctx context.Context, coins []model.Coin) error {
	if len(coins) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range coins {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO coin_history(coin_id, symbol, price, change_24h, market_cap, ts_ms) VALUES($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Symbol, c.Price, c.PriceChange24h, c.MarketCap, r.stamp(c.LastUpdated)); err != nil {
			return fmt.Errorf("insert coin %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) SaveCities(ctx context.Context, cities []model.City) error {
	if len(cities) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, c := range cities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO weather_history(city_id, city, temperature, humidity, conditions, ts_ms) VALUES($1, $2, $3, $4, $5, $6)`,
			c.ID, c.Name, c.Temperature, c.Humidity, c.Conditions, r.stamp(c.LastUpdated)); err != nil {
			return fmt.Errorf("insert city %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

func (r *Repo) stamp(t time.Time) int64 {
	if t.IsZero() {
		t = r.now()
	}
	return t.UnixMilli()
}

var _ port.Repository = (*Repo)(nil)
