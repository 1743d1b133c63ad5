package composite

import (
	"context"

	"xquote/internal/application/port"
	"xquote/internal/domain"
)

// Repo 把写入扇出到多个仓储，返回第一个错误但不中断其余写入
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

func (r *Repo) UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	return r.each(func(repo port.Repository) error { return repo.UpsertLatestSnapshot(ctx, snap) })
}

func (r *Repo) InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	return r.each(func(repo port.Repository) error { return repo.InsertSnapshot(ctx, snap) })
}

func (r *Repo) UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error {
	return r.each(func(repo port.Repository) error { return repo.UpsertLastPrice(ctx, symbol, price, ts) })
}

// Close 不关闭子仓储，它们的生命周期归容器管理
func (r *Repo) Close() error { return nil }

func (r *Repo) each(fn func(port.Repository) error) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := fn(repo); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Repository = (*Repo)(nil)
