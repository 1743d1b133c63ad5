package binance

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"xquote/internal/application/port"
	"xquote/internal/domain"
	"xquote/internal/infrastructure/pricefeed"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	Name = "binance"

	DefaultStreamSuffix = "@ticker"
	defaultDialTimeout  = 10 * time.Second

	readTimeout  = 60 * time.Second
	pingInterval = 25 * time.Second
)

// State 单条订阅的连接状态，只能单向迁移：Idle → Connecting → Streaming → Closed
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type TickerFeed struct {
	wsURL       string // e.g. wss://stream.binance.com:9443
	suffix      string
	dialTimeout time.Duration
	dialer      *websocket.Dialer
}

// NewTickerFeed 创建 Binance 单交易对 ticker 行情源
func NewTickerFeed(cfg pricefeed.Config) *TickerFeed {
	f := &TickerFeed{
		wsURL:       strings.TrimSpace(cfg.Endpoint),
		suffix:      strings.TrimSpace(cfg.StreamSuffix),
		dialTimeout: cfg.DialTimeout,
		dialer:      websocket.DefaultDialer,
	}
	if f.suffix == "" {
		f.suffix = DefaultStreamSuffix
	}
	if f.dialTimeout <= 0 {
		f.dialTimeout = defaultDialTimeout
	}
	return f
}

func (f *TickerFeed) Name() string { return Name }

// Open 为一个交易对打开一条新连接；连接在后台建立，失败通过 Errors() 上报
func (f *TickerFeed) Open(ctx context.Context, symbol domain.Symbol) port.TickSubscription {
	s := newTickerSubscription(ctx, f, symbol)
	s.start()
	return s
}

// TickerSubscription 一个交易对的一条 websocket 连接
// 不做重连：进入 Closed 后即为终态，新交易对需要新的实例
type TickerSubscription struct {
	feed    string
	symbol  domain.Symbol
	channel string
	wsURL   string
	urlErr  error

	dialer      *websocket.Dialer
	dialTimeout time.Duration

	state atomic.Int32
	ticks chan domain.Tick
	errs  chan error

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
	done      chan struct{}
}

func newTickerSubscription(ctx context.Context, f *TickerFeed, symbol domain.Symbol) *TickerSubscription {
	cctx, cancel := context.WithCancel(ctx)
	channel := symbol.Channel(f.suffix)
	wsURL, err := buildStreamURL(f.wsURL, channel)
	return &TickerSubscription{
		feed:        f.Name(),
		symbol:      symbol,
		channel:     channel,
		wsURL:       wsURL,
		urlErr:      err,
		dialer:      f.dialer,
		dialTimeout: f.dialTimeout,
		ticks:       make(chan domain.Tick, 256),
		errs:        make(chan error, 16),
		ctx:         cctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

func buildStreamURL(base, channel string) (string, error) {
	if base == "" {
		return "", errors.New("binance ws endpoint empty")
	}
	if strings.Trim(channel, "@") == "" {
		return "", errors.New("binance channel empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/" + channel
	return u.String(), nil
}

func (s *TickerSubscription) Symbol() domain.Symbol     { return s.symbol }
func (s *TickerSubscription) Channel() string           { return s.channel }
func (s *TickerSubscription) Ticks() <-chan domain.Tick { return s.ticks }
func (s *TickerSubscription) Errors() <-chan error      { return s.errs }
func (s *TickerSubscription) State() State              { return State(s.state.Load()) }

func (s *TickerSubscription) transition(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *TickerSubscription) start() {
	if !s.transition(StateIdle, StateConnecting) {
		return
	}
	go s.run()
}

// Close 幂等；返回时读循环已退出，不会再有 tick 投递
func (s *TickerSubscription) Close() error {
	s.closeOnce.Do(func() {
		prev := State(s.state.Swap(int32(StateClosed)))
		s.cancel()

		s.mu.Lock()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		s.mu.Unlock()

		if prev == StateIdle {
			// run 从未启动
			close(s.ticks)
			close(s.errs)
			close(s.done)
			return
		}
		<-s.done
		// 丢弃已缓冲但未被消费的数据
		drain(s.ticks, s.errs)
		log.Info().Str("feed", s.feed).Str("channel", s.channel).Msg("ws closed")
	})
	return nil
}

func drain(ticks <-chan domain.Tick, errs <-chan error) {
	for range ticks {
	}
	for range errs {
	}
}

func (s *TickerSubscription) run() {
	defer close(s.done)
	defer close(s.errs)
	defer close(s.ticks)
	defer s.state.Store(int32(StateClosed))

	if s.urlErr != nil {
		s.fail(s.urlErr)
		return
	}

	log.Info().Str("feed", s.feed).Str("url", s.wsURL).Msg("ws connecting")
	cctx, cancel := context.WithTimeout(s.ctx, s.dialTimeout)
	conn, _, err := s.dialer.DialContext(cctx, s.wsURL, nil)
	cancel()
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.fail(err)
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()

	if !s.transition(StateConnecting, StateStreaming) {
		_ = conn.Close()
		return
	}
	log.Info().Str("feed", s.feed).Str("channel", s.channel).Msg("ws connected")

	err = readLoop(s.ctx, conn, s.handle)
	_ = conn.Close()

	if s.ctx.Err() != nil {
		return
	}
	s.fail(err)
}

// handle 按到达顺序处理消息；解析失败只丢弃该条消息
func (s *TickerSubscription) handle(b []byte) {
	if s.State() == StateClosed {
		return
	}
	raw, err := ParseTick(b)
	if err != nil {
		log.Warn().Str("feed", s.feed).Str("channel", s.channel).Err(err).Msg("tick dropped")
		s.report(err)
		return
	}
	if raw.Stream != "" && raw.Stream != s.channel {
		log.Debug().Str("feed", s.feed).Str("channel", s.channel).Str("stream", raw.Stream).Msg("foreign stream dropped")
		return
	}
	t := domain.Tick{
		Symbol:     s.symbol,
		LastPrice:  raw.LastPrice,
		EventTime:  raw.EventTime,
		ReceivedAt: time.Now().UnixMilli(),
	}
	select {
	case s.ticks <- t:
	case <-s.ctx.Done():
	}
}

func (s *TickerSubscription) fail(err error) {
	cerr := &domain.ConnectionError{Channel: s.channel, Err: err}
	log.Error().Str("feed", s.feed).Str("channel", s.channel).Err(err).Msg("ws connection failed, not retrying")
	s.report(cerr)
}

func (s *TickerSubscription) report(err error) {
	select {
	case s.errs <- err:
	default:
		log.Debug().Str("feed", s.feed).Err(err).Msg("error channel full, diagnostic dropped")
	}
}

// readLoop 返回前保证读 goroutine 已退出
func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close()
			for range errCh {
			}
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}
