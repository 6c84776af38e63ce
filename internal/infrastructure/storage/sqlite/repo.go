package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pulseboard/internal/application/port"
	"pulseboard/internal/domain/model"
)

// Repo SQLite 存储：缓存条目 + 实体快照历史
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db, now: time.Now}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS cache_entries (
  key TEXT PRIMARY KEY,
  value BLOB NOT NULL,
  written_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS coin_snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  coin_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  name TEXT NOT NULL,
  price REAL NOT NULL,
  change_24h REAL NOT NULL,
  market_cap REAL NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_coin_snapshots_coin ON coin_snapshots(coin_id, ts_ms);

CREATE TABLE IF NOT EXISTS weather_snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  city_id TEXT NOT NULL,
  city TEXT NOT NULL,
  country TEXT NOT NULL,
  temperature REAL NOT NULL,
  humidity REAL NOT NULL,
  conditions TEXT NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_weather_snapshots_city ON weather_snapshots(city_id, ts_ms);
`)
	return err
}

// Get 读取缓存条目；不检查新鲜度
func (r *Repo) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite cache get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Repo) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_entries(key, value, written_ms) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, written_ms=excluded.written_ms
	`, key, value, r.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite cache set %s: %w", key, err)
	}
	return nil
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
		_, err := tx.ExecContext(ctx, `
			INSERT INTO coin_snapshots(coin_id, symbol, name, price, change_24h, market_cap, ts_ms)
			VALUES(?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Symbol, c.Name, c.Price, c.PriceChange24h, c.MarketCap, r.stamp(c.LastUpdated))
		if err != nil {
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
		_, err := tx.ExecContext(ctx, `
			INSERT INTO weather_snapshots(city_id, city, country, temperature, humidity, conditions, ts_ms)
			VALUES(?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.Name, c.Country, c.Temperature, c.Humidity, c.Conditions, r.stamp(c.LastUpdated))
		if err != nil {
			return fmt.Errorf("insert city %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// CoinHistory returns up to limit snapshots of a coin, newest first.
func (r *Repo) CoinHistory(ctx context.Context, coinID string, limit int) ([]model.Coin, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT coin_id, symbol, name, price, change_24h, market_cap, ts_ms
		FROM coin_snapshots WHERE coin_id=? ORDER BY ts_ms DESC, id DESC LIMIT ?
	`, coinID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Coin
	for rows.Next() {
		var c model.Coin
		var ts int64
		if err := rows.Scan(&c.ID, &c.Symbol, &c.Name, &c.Price, &c.PriceChange24h, &c.MarketCap, &ts); err != nil {
			return nil, err
		}
		c.LastUpdated = time.UnixMilli(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) stamp(t time.Time) int64 {
	if t.IsZero() {
		t = r.now()
	}
	return t.UnixMilli()
}

var (
	_ port.Repository = (*Repo)(nil)
	_ port.CacheStore = (*Repo)(nil)
)
