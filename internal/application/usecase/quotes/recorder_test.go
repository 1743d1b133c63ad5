package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

func TestRecorderPersistsChanges(t *testing.T) {
	repo := newFakeRepo()
	rec := NewRecorder(repo, 16)

	snap := domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: 1, Ask: 3, Mid: 2, SpreadAbs: 2, Timestamp: 1}
	rec.Observe(View{Symbol: "BTCUSDT", Snapshot: &snap})
	rec.Observe(View{Symbol: "BTCUSDT", Snapshot: &snap, LastPrice: decimal.NewNullDecimal(decimal.RequireFromString("2.5"))})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	waitFor(t, "last price recorded", func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return repo.lastPrices["BTCUSDT"] == "2.5"
	})
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("recorder did not stop")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.history) != 1 {
		t.Errorf("expected unchanged snapshot to be written once, got %d", len(repo.history))
	}
	if repo.latest["BTCUSDT"] != snap {
		t.Errorf("expected latest snapshot %+v, got %+v", snap, repo.latest["BTCUSDT"])
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	rec := NewRecorder(newFakeRepo(), 1)
	rec.Observe(View{Symbol: "BTCUSDT"})
	rec.Observe(View{Symbol: "BTCUSDT"})
	if rec.Dropped() != 1 {
		t.Errorf("expected 1 dropped view, got %d", rec.Dropped())
	}
}
