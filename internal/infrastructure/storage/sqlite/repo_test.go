package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"xquote/internal/domain"
)

func newTestRepo(t *testing.T, name string) *Repo {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteRepoUpsertLatestSnapshot(t *testing.T) {
	repo := newTestRepo(t, "test.db")
	ctx := context.Background()

	snap := domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: 64999, Ask: 65001, Mid: 65000, SpreadAbs: 2, Timestamp: 2}
	if err := repo.UpsertLatestSnapshot(ctx, snap); err != nil {
		t.Fatalf("UpsertLatestSnapshot failed: %v", err)
	}
	// 旧时间戳不覆盖
	older := snap
	older.Bid, older.Timestamp = 1, 1
	if err := repo.UpsertLatestSnapshot(ctx, older); err != nil {
		t.Fatalf("UpsertLatestSnapshot failed: %v", err)
	}

	got, err := repo.GetLatestSnapshot(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLatestSnapshot failed: %v", err)
	}
	if got != snap {
		t.Errorf("expected %+v, got %+v", snap, got)
	}

	if _, err := repo.GetLatestSnapshot(ctx, "ETHUSDT"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSQLiteRepoInsertSnapshot(t *testing.T) {
	repo := newTestRepo(t, "test_snapshot.db")
	ctx := context.Background()

	for ts := int64(1); ts <= 3; ts++ {
		snap := domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: float64(ts), Ask: float64(ts) + 2, Mid: float64(ts) + 1, SpreadAbs: 2, Timestamp: ts}
		if err := repo.InsertSnapshot(ctx, snap); err != nil {
			t.Fatalf("InsertSnapshot failed: %v", err)
		}
	}

	snaps, err := repo.ListSnapshots(ctx, "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[0].Timestamp != 3 || snaps[1].Timestamp != 2 {
		t.Errorf("expected newest first, got %+v", snaps)
	}
}

func TestSQLiteRepoUpsertLastPrice(t *testing.T) {
	repo := newTestRepo(t, "test_last.db")
	ctx := context.Background()

	if err := repo.UpsertLastPrice(ctx, "BTCUSDT", "65000.1", 1234567890); err != nil {
		t.Fatalf("UpsertLastPrice failed: %v", err)
	}
	if err := repo.UpsertLastPrice(ctx, "BTCUSDT", "65000.2", 1234567891); err != nil {
		t.Fatalf("UpsertLastPrice failed: %v", err)
	}

	price, ts, err := repo.GetLastPrice(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("GetLastPrice failed: %v", err)
	}
	if price != "65000.2" || ts != 1234567891 {
		t.Errorf("expected 65000.2@1234567891, got %s@%d", price, ts)
	}
}
