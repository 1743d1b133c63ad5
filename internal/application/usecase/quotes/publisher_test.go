package quotes

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

type viewLog struct {
	mu    sync.Mutex
	views []View
}

func (l *viewLog) observe(v View) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.views = append(l.views, v)
}

func (l *viewLog) all() []View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]View(nil), l.views...)
}

func TestPublisherAbsentBeforeFirstUpdate(t *testing.T) {
	p := NewPublisher()
	if _, ok := p.Snapshot(); ok {
		t.Errorf("expected no snapshot before first update")
	}
	if _, ok := p.LastPrice(); ok {
		t.Errorf("expected no last price before first update")
	}
	if p.Current().HasData() {
		t.Errorf("expected view without data")
	}
}

func TestPublisherNotifiesOncePerChange(t *testing.T) {
	p := NewPublisher()
	var l viewLog
	p.Subscribe(l.observe)

	snap := domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: 64999, Ask: 65001, Mid: 65000, SpreadAbs: 2, Timestamp: 1}
	if !p.PublishSnapshot(snap) {
		t.Errorf("expected first publish to notify")
	}
	if p.PublishSnapshot(snap) {
		t.Errorf("expected identical snapshot not to notify")
	}
	snap.Timestamp = 2
	p.PublishSnapshot(snap)

	p.PublishLastPrice(decimal.RequireFromString("65000.10"))
	p.PublishLastPrice(decimal.RequireFromString("65000.1"))

	views := l.all()
	if len(views) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(views))
	}
	if views[1].Snapshot.Timestamp != 2 {
		t.Errorf("expected second notification to carry timestamp 2")
	}
	got, _ := p.Snapshot()
	if got != snap {
		t.Errorf("expected %+v, got %+v", snap, got)
	}
}

func TestPublisherReset(t *testing.T) {
	p := NewPublisher()
	p.Reset("BTCUSDT")
	p.PublishSnapshot(domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: 1, Ask: 2, Mid: 1.5, SpreadAbs: 1, Timestamp: 1})
	p.PublishLastPrice(decimal.NewFromInt(2))

	var l viewLog
	p.Subscribe(l.observe)

	p.Reset("ETHUSDT")
	p.Reset("ETHUSDT")

	views := l.all()
	if len(views) != 1 {
		t.Fatalf("expected exactly one reset notification, got %d", len(views))
	}
	v := views[0]
	if v.Symbol != "ETHUSDT" || v.Snapshot != nil || v.LastPrice.Valid {
		t.Errorf("expected cleared ETHUSDT view, got %+v", v)
	}
}

func TestPublisherUnsubscribe(t *testing.T) {
	p := NewPublisher()
	var l viewLog
	unsubscribe := p.Subscribe(l.observe)
	p.PublishLastPrice(decimal.NewFromInt(1))
	unsubscribe()
	unsubscribe()
	p.PublishLastPrice(decimal.NewFromInt(2))

	if n := len(l.all()); n != 1 {
		t.Errorf("expected 1 notification before unsubscribe, got %d", n)
	}
}

func TestPublisherCurrentIsCopy(t *testing.T) {
	p := NewPublisher()
	p.PublishSnapshot(domain.QuoteSnapshot{Symbol: "BTCUSDT", Bid: 1})
	v := p.Current()
	v.Snapshot.Bid = 99
	got, _ := p.Snapshot()
	if got.Bid != 1 {
		t.Errorf("mutating a view must not affect publisher state")
	}
}

func TestPublisherNotifiesInRegistrationOrder(t *testing.T) {
	pub := NewPublisher()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 8; i++ {
		i := i
		pub.Subscribe(func(View) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	unsubscribe := pub.Subscribe(func(View) {})
	unsubscribe()

	for round := 0; round < 5; round++ {
		mu.Lock()
		order = order[:0]
		mu.Unlock()

		pub.PublishSnapshot(domain.QuoteSnapshot{Symbol: "BTCUSDT", Mid: float64(round + 1)})

		mu.Lock()
		for i, got := range order {
			if got != i {
				t.Fatalf("round %d: expected registration order, got %v", round, order)
			}
		}
		if len(order) != 8 {
			t.Fatalf("round %d: expected 8 notifications, got %d", round, len(order))
		}
		mu.Unlock()
	}
}

func TestPublisherDropsStaleEpoch(t *testing.T) {
	pub := NewPublisher()
	btc := pub.Reset("BTCUSDT")
	eth := pub.Reset("ETHUSDT")
	if eth == btc {
		t.Fatalf("expected Reset to start a new epoch")
	}

	if pub.publishSnapshot(btc, domain.QuoteSnapshot{Symbol: "BTCUSDT", Mid: 65000}) {
		t.Errorf("publish with a superseded epoch must be dropped")
	}
	if pub.publishLastPrice(btc, decimal.NewFromInt(65000)) {
		t.Errorf("last price with a superseded epoch must be dropped")
	}
	if pub.Current().HasData() || pub.Current().LastPrice.Valid {
		t.Errorf("stale data leaked into %+v", pub.Current())
	}

	if !pub.publishSnapshot(eth, domain.QuoteSnapshot{Symbol: "ETHUSDT", Mid: 3000}) {
		t.Errorf("publish with the current epoch must succeed")
	}
	if pub.Epoch() != eth {
		t.Errorf("expected epoch %d, got %d", eth, pub.Epoch())
	}
}
