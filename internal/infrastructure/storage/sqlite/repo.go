package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"xquote/internal/application/port"
	"xquote/internal/domain"
)

type Repo struct {
	db *sql.DB
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
  bid REAL NOT NULL,
  ask REAL NOT NULL,
  mid REAL NOT NULL,
  spread_abs REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL,
  bid REAL NOT NULL,
  ask REAL NOT NULL,
  mid REAL NOT NULL,
  spread_abs REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON snapshots(ts_ms);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON snapshots(symbol);

CREATE TABLE IF NOT EXISTS last_prices (
  symbol TEXT PRIMARY KEY,
  price TEXT NOT NULL,
  ts_ms INTEGER NOT NULL
);
`)
	return err
}

func (r *Repo) UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_quotes(symbol, bid, ask, mid, spread_abs, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
		bid=excluded.bid, ask=excluded.ask, mid=excluded.mid, spread_abs=excluded.spread_abs,
		ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
		WHERE excluded.ts_ms >= latest_quotes.ts_ms
	`, snap.Symbol.String(), snap.Bid, snap.Ask, snap.Mid, snap.SpreadAbs, snap.Timestamp, time.Now().UnixMilli())
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots(symbol, bid, ask, mid, spread_abs, ts_ms, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`, snap.Symbol.String(), snap.Bid, snap.Ask, snap.Mid, snap.SpreadAbs, snap.Timestamp, time.Now().UnixMilli())
	return err
}

func (r *Repo) UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO last_prices(symbol, price, ts_ms) VALUES(?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET price=excluded.price, ts_ms=excluded.ts_ms
	`, symbol.String(), price, ts)
	return err
}

// GetLatestSnapshot 读取某交易对的最新快照；不存在时返回 sql.ErrNoRows
func (r *Repo) GetLatestSnapshot(ctx context.Context, symbol domain.Symbol) (domain.QuoteSnapshot, error) {
	snap := domain.QuoteSnapshot{Symbol: symbol}
	err := r.db.QueryRowContext(ctx,
		`SELECT bid, ask, mid, spread_abs, ts_ms FROM latest_quotes WHERE symbol=?`, symbol.String()).
		Scan(&snap.Bid, &snap.Ask, &snap.Mid, &snap.SpreadAbs, &snap.Timestamp)
	return snap, err
}

// ListSnapshots 按时间倒序列出某交易对的历史快照
func (r *Repo) ListSnapshots(ctx context.Context, symbol domain.Symbol, limit int) ([]domain.QuoteSnapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT bid, ask, mid, spread_abs, ts_ms FROM snapshots
		WHERE symbol=? ORDER BY ts_ms DESC, id DESC LIMIT ?
	`, symbol.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QuoteSnapshot
	for rows.Next() {
		snap := domain.QuoteSnapshot{Symbol: symbol}
		if err := rows.Scan(&snap.Bid, &snap.Ask, &snap.Mid, &snap.SpreadAbs, &snap.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// GetLastPrice 读取交易所最新价
func (r *Repo) GetLastPrice(ctx context.Context, symbol domain.Symbol) (price string, ts int64, err error) {
	err = r.db.QueryRowContext(ctx, `SELECT price, ts_ms FROM last_prices WHERE symbol=?`, symbol.String()).
		Scan(&price, &ts)
	return
}

var _ port.Repository = (*Repo)(nil)
