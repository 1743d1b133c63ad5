package quotes

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"xquote/internal/application/port"
	"xquote/internal/domain"

	"github.com/rs/zerolog/log"
)

// ErrManagerClosed Manager 已关闭
var ErrManagerClosed = errors.New("subscription manager closed")

type ManagerDeps struct {
	Feed      port.ExchangeFeed
	Quotes    port.QuoteSource
	Publisher *Publisher
}

// Manager 管理活跃交易对的订阅生命周期
// 任意时刻最多一条交易所连接和一条服务端报价订阅，且绑定同一个交易对
type Manager struct {
	ctx  context.Context
	deps ManagerDeps

	switchMu sync.Mutex // 串行化切换；读路径不获取
	active   *session
	closed   bool

	current atomic.Pointer[domain.Symbol]
}

// NewManager ctx 决定所有订阅的最长生命周期
func NewManager(ctx context.Context, deps ManagerDeps) *Manager {
	if deps.Publisher == nil {
		deps.Publisher = NewPublisher()
	}
	return &Manager{ctx: ctx, deps: deps}
}

func (m *Manager) Publisher() *Publisher { return m.deps.Publisher }

// ActiveSymbol 当前活跃交易对，没有时返回 false；不加锁，可在观察者里调用
func (m *Manager) ActiveSymbol() (domain.Symbol, bool) {
	p := m.current.Load()
	if p == nil {
		return "", false
	}
	return *p, true
}

// SetActiveSymbol 切换活跃交易对，空字符串表示取消订阅
// 只有非法输入会返回错误；连接失败通过订阅的错误通道异步上报
func (m *Manager) SetActiveSymbol(raw string) error {
	symbol, err := domain.NormalizeSymbol(raw)
	if err != nil {
		return err
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}

	var current domain.Symbol
	if m.active != nil {
		current = m.active.symbol
	}
	if current == symbol {
		return nil
	}

	old := m.active
	m.active = nil
	m.current.Store(nil)

	// 1. 旧会话停止投递
	if old != nil {
		old.detach()
	}
	// 2. 清空已发布的数据并开启新纪元，旧会话在途的发布全部失效
	epoch := m.deps.Publisher.Reset(symbol)
	// 3. 释放旧连接
	if old != nil {
		old.close()
		log.Info().Str("symbol", old.symbol.String()).Msg("subscriptions closed")
	}
	// 4. 为新交易对建立订阅
	if !symbol.IsZero() {
		m.active = m.open(symbol, epoch)
		m.current.Store(&symbol)
		log.Info().Str("symbol", symbol.String()).Msg("subscriptions opened")
	}
	return nil
}

// ClearActiveSymbol 等价于 SetActiveSymbol("")
func (m *Manager) ClearActiveSymbol() {
	_ = m.SetActiveSymbol("")
}

// Close 关闭当前订阅；之后的 SetActiveSymbol 返回 ErrManagerClosed
func (m *Manager) Close() error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.current.Store(nil)
	if m.active != nil {
		m.active.detach()
		m.active.close()
		m.active = nil
	}
	return nil
}

func (m *Manager) open(symbol domain.Symbol, epoch uint64) *session {
	s := &session{
		symbol: symbol,
		epoch:  epoch,
		agg:    NewAggregator(symbol),
		pub:    m.deps.Publisher,
	}
	if m.deps.Feed != nil {
		s.ticks = m.deps.Feed.Open(m.ctx, symbol)
		s.wg.Add(1)
		go s.pumpTicks()
	}
	if m.deps.Quotes != nil {
		s.quotes = m.deps.Quotes.Subscribe(m.ctx, symbol)
		s.wg.Add(1)
		go s.pumpQuotes()
	}
	return s
}

// session 一个交易对的一组订阅
type session struct {
	symbol domain.Symbol
	epoch  uint64 // 发布器纪元，切换后旧会话的发布被丢弃
	agg    *Aggregator
	pub    *Publisher

	ticks  port.TickSubscription
	quotes port.QuoteSubscription

	mu       sync.Mutex // 保护 agg 与 detached；发布在锁外进行
	detached bool

	wg sync.WaitGroup
}

// detach 返回后不会再有数据进入聚合器；发布器侧由纪元保证
func (s *session) detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

func (s *session) close() {
	if s.ticks != nil {
		if err := s.ticks.Close(); err != nil {
			log.Warn().Str("symbol", s.symbol.String()).Err(err).Msg("close exchange subscription failed")
		}
	}
	if s.quotes != nil {
		if err := s.quotes.Close(); err != nil {
			log.Warn().Str("symbol", s.symbol.String()).Err(err).Msg("close server quote subscription failed")
		}
	}
	s.wg.Wait()
}

func (s *session) pumpTicks() {
	defer s.wg.Done()
	ticks, errs := s.ticks.Ticks(), s.ticks.Errors()
	for ticks != nil || errs != nil {
		select {
		case t, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			s.applyTick(t)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			// 错误只记录，保留最后一次发布的价格
			log.Warn().Str("symbol", s.symbol.String()).Err(err).Msg("exchange feed error")
		}
	}
}

func (s *session) pumpQuotes() {
	defer s.wg.Done()
	quotes, errs := s.quotes.Quotes(), s.quotes.Errors()
	for quotes != nil || errs != nil {
		select {
		case q, ok := <-quotes:
			if !ok {
				quotes = nil
				continue
			}
			s.applyQuote(q)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn().Str("symbol", s.symbol.String()).Err(err).Msg("server quote error")
		}
	}
}

func (s *session) applyTick(t domain.Tick) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	px, ok := s.agg.ApplyTick(t)
	s.mu.Unlock()
	if ok {
		s.pub.publishLastPrice(s.epoch, px)
	}
}

func (s *session) applyQuote(q domain.ServerQuote) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	snap, ok := s.agg.ApplyQuote(q)
	s.mu.Unlock()
	if ok {
		s.pub.publishSnapshot(s.epoch, snap)
	}
}
