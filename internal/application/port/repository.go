package port

import (
	"context"

	"xquote/internal/domain"
)

type Repository interface {
	// Snapshot operations
	UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error
	InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error

	// Exchange last price (informational)
	UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error

	// Connection management
	Close() error
}
