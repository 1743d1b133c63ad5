package redis

import (
	"context"
	"encoding/json"
	"time"

	"xquote/internal/application/port"
	"xquote/internal/domain"

	"github.com/redis/go-redis/v9"
)

// Repo 最新快照缓存：hash 存最新值，同时在频道上广播，便于其他进程订阅
type Repo struct {
	rdb           *redis.Client
	prefix        string
	ttl           time.Duration
	keySnapshots  string // prefix + ":snapshots"
	keyLastPrices string // prefix + ":last_prices"
	snapshotChan  string
}

type LastPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Ts     int64  `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, snapshotChan string) *Repo {
	if snapshotChan == "" {
		snapshotChan = prefix + ":snapshots:pub"
	}
	return &Repo{
		rdb:           rdb,
		prefix:        prefix,
		ttl:           ttl,
		keySnapshots:  prefix + ":snapshots",
		keyLastPrices: prefix + ":last_prices",
		snapshotChan:  snapshotChan,
	}
}

func (r *Repo) UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	// Hash: field = "BTCUSDT" -> json
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keySnapshots, snap.Symbol.String(), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keySnapshots, r.ttl)
	}
	pipe.Publish(ctx, r.snapshotChan, string(b))
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	// 历史记录交给 sqlite/postgres
	return nil
}

func (r *Repo) UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error {
	b, err := json.Marshal(LastPrice{Symbol: symbol.String(), Price: price, Ts: ts})
	if err != nil {
		return err
	}
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLastPrices, symbol.String(), string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLastPrices, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// GetLatestSnapshot 读取缓存的最新快照；不存在时返回 redis.Nil
func (r *Repo) GetLatestSnapshot(ctx context.Context, symbol domain.Symbol) (domain.QuoteSnapshot, error) {
	raw, err := r.rdb.HGet(ctx, r.keySnapshots, symbol.String()).Result()
	if err != nil {
		return domain.QuoteSnapshot{}, err
	}
	var snap domain.QuoteSnapshot
	err = json.Unmarshal([]byte(raw), &snap)
	return snap, err
}

// Close 连接由容器统一关闭
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
