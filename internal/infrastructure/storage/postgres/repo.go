package postgres

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xquote/internal/application/port"
	"xquote/internal/domain"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_quotes (
  symbol TEXT PRIMARY KEY,
  bid DOUBLE PRECISION NOT NULL,
  ask DOUBLE PRECISION NOT NULL,
  mid DOUBLE PRECISION NOT NULL,
  spread_abs DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshots (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL,
  bid DOUBLE PRECISION NOT NULL,
  ask DOUBLE PRECISION NOT NULL,
  mid DOUBLE PRECISION NOT NULL,
  spread_abs DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol);
CREATE TABLE IF NOT EXISTS last_prices (
  symbol TEXT PRIMARY KEY,
  price NUMERIC NOT NULL,
  ts_ms BIGINT NOT NULL
);
`)
	return err
}

func (r *Repo) UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_quotes(symbol, bid, ask, mid, spread_abs, ts_ms)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT(symbol) DO UPDATE SET
		bid=EXCLUDED.bid, ask=EXCLUDED.ask, mid=EXCLUDED.mid, spread_abs=EXCLUDED.spread_abs, ts_ms=EXCLUDED.ts_ms
		WHERE EXCLUDED.ts_ms >= latest_quotes.ts_ms
	`, snap.Symbol.String(), snap.Bid, snap.Ask, snap.Mid, snap.SpreadAbs, snap.Timestamp)
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots(symbol, bid, ask, mid, spread_abs, ts_ms) VALUES($1, $2, $3, $4, $5, $6)`,
		snap.Symbol.String(), snap.Bid, snap.Ask, snap.Mid, snap.SpreadAbs, snap.Timestamp)
	return err
}

func (r *Repo) UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO last_prices(symbol, price, ts_ms) VALUES($1, $2::numeric, $3)
		ON CONFLICT(symbol) DO UPDATE SET price=EXCLUDED.price, ts_ms=EXCLUDED.ts_ms
	`, symbol.String(), price, ts)
	return err
}

var _ port.Repository = (*Repo)(nil)
