package quotes

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"xquote/internal/application/port"
	"xquote/internal/domain"

	"github.com/rs/zerolog/log"
)

// Recorder 把发布的快照和最新价异步写入仓储
// Observe 永不阻塞发布路径，队列满时丢弃
type Recorder struct {
	repo    port.Repository
	queue   chan View
	dropped atomic.Int64

	lastSnap  *domain.QuoteSnapshot
	lastPrice decimal.NullDecimal
}

func NewRecorder(repo port.Repository, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 256
	}
	return &Recorder{repo: repo, queue: make(chan View, buffer)}
}

// Observe 可直接作为 Publisher 的观察者
func (r *Recorder) Observe(v View) {
	select {
	case r.queue <- v:
	default:
		if n := r.dropped.Add(1); n%100 == 1 {
			log.Warn().Int64("dropped", n).Msg("recorder queue full")
		}
	}
}

func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Run 消费队列直到 ctx 结束，然后尽量写完剩余数据
func (r *Recorder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case v := <-r.queue:
			r.record(ctx, v)
		}
	}
}

func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case v := <-r.queue:
			r.record(ctx, v)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, v View) {
	if v.Snapshot != nil && (r.lastSnap == nil || *r.lastSnap != *v.Snapshot) {
		snap := *v.Snapshot
		if err := r.repo.UpsertLatestSnapshot(ctx, snap); err != nil {
			log.Error().Err(err).Str("symbol", snap.Symbol.String()).Msg("upsert latest snapshot failed")
		}
		if err := r.repo.InsertSnapshot(ctx, snap); err != nil {
			log.Error().Err(err).Str("symbol", snap.Symbol.String()).Msg("insert snapshot failed")
		}
		r.lastSnap = &snap
	}
	if v.Snapshot == nil {
		r.lastSnap = nil
	}

	if v.LastPrice.Valid && !(r.lastPrice.Valid && r.lastPrice.Decimal.Equal(v.LastPrice.Decimal)) {
		if err := r.repo.UpsertLastPrice(ctx, v.Symbol, v.LastPrice.Decimal.String(), time.Now().UnixMilli()); err != nil {
			log.Error().Err(err).Str("symbol", v.Symbol.String()).Msg("upsert last price failed")
		}
	}
	r.lastPrice = v.LastPrice
}
