package quotes

import (
	"context"
	"sync"

	"xquote/internal/application/port"
	"xquote/internal/domain"
)

type fakeTickSub struct {
	symbol domain.Symbol
	ticks  chan domain.Tick
	errs   chan error
	once   sync.Once
	closes int
	mu     sync.Mutex
}

func (s *fakeTickSub) Symbol() domain.Symbol     { return s.symbol }
func (s *fakeTickSub) Ticks() <-chan domain.Tick { return s.ticks }
func (s *fakeTickSub) Errors() <-chan error      { return s.errs }

func (s *fakeTickSub) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.once.Do(func() {
		close(s.ticks)
		close(s.errs)
	})
	return nil
}

func (s *fakeTickSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes > 0
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeTickSub
}

func (f *fakeFeed) Name() string { return "fake" }

func (f *fakeFeed) Open(ctx context.Context, symbol domain.Symbol) port.TickSubscription {
	s := &fakeTickSub{symbol: symbol, ticks: make(chan domain.Tick, 16), errs: make(chan error, 16)}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *fakeFeed) opened() []*fakeTickSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeTickSub(nil), f.subs...)
}

func (f *fakeFeed) openCount() int {
	n := 0
	for _, s := range f.opened() {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeQuoteSub struct {
	symbol domain.Symbol
	quotes chan domain.ServerQuote
	errs   chan error
	once   sync.Once
	mu     sync.Mutex
	closed bool
}

func (s *fakeQuoteSub) Symbol() domain.Symbol             { return s.symbol }
func (s *fakeQuoteSub) Quotes() <-chan domain.ServerQuote { return s.quotes }
func (s *fakeQuoteSub) Errors() <-chan error              { return s.errs }

func (s *fakeQuoteSub) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.quotes)
		close(s.errs)
	})
	return nil
}

func (s *fakeQuoteSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeQuoteSource struct {
	mu   sync.Mutex
	subs []*fakeQuoteSub
}

func (f *fakeQuoteSource) Name() string { return "fake" }

func (f *fakeQuoteSource) Subscribe(ctx context.Context, symbol domain.Symbol) port.QuoteSubscription {
	s := &fakeQuoteSub{symbol: symbol, quotes: make(chan domain.ServerQuote, 16), errs: make(chan error, 16)}
	f.mu.Lock()
	f.subs = append(f.subs, s)
	f.mu.Unlock()
	return s
}

func (f *fakeQuoteSource) opened() []*fakeQuoteSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeQuoteSub(nil), f.subs...)
}

func (f *fakeQuoteSource) openCount() int {
	n := 0
	for _, s := range f.opened() {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeRepo struct {
	mu         sync.Mutex
	latest     map[domain.Symbol]domain.QuoteSnapshot
	history    []domain.QuoteSnapshot
	lastPrices map[domain.Symbol]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		latest:     make(map[domain.Symbol]domain.QuoteSnapshot),
		lastPrices: make(map[domain.Symbol]string),
	}
}

func (r *fakeRepo) UpsertLatestSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest[snap.Symbol] = snap
	return nil
}

func (r *fakeRepo) InsertSnapshot(ctx context.Context, snap domain.QuoteSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, snap)
	return nil
}

func (r *fakeRepo) UpsertLastPrice(ctx context.Context, symbol domain.Symbol, price string, ts int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastPrices[symbol] = price
	return nil
}

func (r *fakeRepo) Close() error { return nil }
