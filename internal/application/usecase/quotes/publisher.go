package quotes

import (
	"sync"

	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

// View 对外发布的当前状态
// Snapshot 为 nil 表示"还没有数据"，与零值报价不同
type View struct {
	Symbol    domain.Symbol
	Snapshot  *domain.QuoteSnapshot
	LastPrice decimal.NullDecimal
}

// HasData 是否已有服务端快照
func (v View) HasData() bool { return v.Snapshot != nil }

// Observer 状态变化回调
// 回调按发布顺序、按注册顺序串行执行；不要在回调里同步调用 Manager.SetActiveSymbol
type Observer func(View)

type observerEntry struct {
	id int
	fn Observer
}

// anyEpoch 不校验纪元
const anyEpoch = ^uint64(0)

// Publisher 当前快照的发布/订阅边界
// 读取永不阻塞等待新数据；相同的值不会重复通知
// 每次 Reset 开启新纪元，带旧纪元的发布被丢弃
type Publisher struct {
	notifyMu sync.Mutex // 串行化通知，保证观察者按发布顺序看到状态

	mu        sync.RWMutex
	view      View
	epoch     uint64
	observers []observerEntry
	nextID    int
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe 注册观察者，返回幂等的取消函数
func (p *Publisher) Subscribe(fn Observer) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers = append(p.observers, observerEntry{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			for i, o := range p.observers {
				if o.id == id {
					p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// Current 当前状态的副本
func (p *Publisher) Current() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return copyView(p.view)
}

func (p *Publisher) Snapshot() (domain.QuoteSnapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.view.Snapshot == nil {
		return domain.QuoteSnapshot{}, false
	}
	return *p.view.Snapshot, true
}

func (p *Publisher) LastPrice() (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.view.LastPrice.Decimal, p.view.LastPrice.Valid
}

// Epoch 当前纪元
func (p *Publisher) Epoch() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.epoch
}

// Reset 切换交易对时清空已发布的数据，返回新纪元
func (p *Publisher) Reset(symbol domain.Symbol) uint64 {
	var epoch uint64
	p.update(anyEpoch, func(v *View) bool {
		p.epoch++
		epoch = p.epoch
		if v.Symbol == symbol && v.Snapshot == nil && !v.LastPrice.Valid {
			return false
		}
		*v = View{Symbol: symbol}
		return true
	})
	return epoch
}

// PublishSnapshot 发布新快照；与当前快照相同则不通知
func (p *Publisher) PublishSnapshot(snap domain.QuoteSnapshot) bool {
	return p.publishSnapshot(anyEpoch, snap)
}

// PublishLastPrice 发布交易所最新价；不影响快照
func (p *Publisher) PublishLastPrice(px decimal.Decimal) bool {
	return p.publishLastPrice(anyEpoch, px)
}

func (p *Publisher) publishSnapshot(epoch uint64, snap domain.QuoteSnapshot) bool {
	return p.update(epoch, func(v *View) bool {
		if v.Snapshot != nil && *v.Snapshot == snap {
			return false
		}
		s := snap
		v.Snapshot = &s
		return true
	})
}

func (p *Publisher) publishLastPrice(epoch uint64, px decimal.Decimal) bool {
	return p.update(epoch, func(v *View) bool {
		if v.LastPrice.Valid && v.LastPrice.Decimal.Equal(px) {
			return false
		}
		v.LastPrice = decimal.NewNullDecimal(px)
		return true
	})
}

// update 在 mu 内修改状态，在 mu 外按注册顺序通知
func (p *Publisher) update(epoch uint64, mutate func(v *View) bool) bool {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	if epoch != anyEpoch && epoch != p.epoch {
		p.mu.Unlock()
		return false
	}
	if !mutate(&p.view) {
		p.mu.Unlock()
		return false
	}
	view := copyView(p.view)
	observers := make([]Observer, 0, len(p.observers))
	for _, o := range p.observers {
		observers = append(observers, o.fn)
	}
	p.mu.Unlock()

	for _, fn := range observers {
		fn(view)
	}
	return true
}

func copyView(v View) View {
	out := v
	if v.Snapshot != nil {
		s := *v.Snapshot
		out.Snapshot = &s
	}
	return out
}
