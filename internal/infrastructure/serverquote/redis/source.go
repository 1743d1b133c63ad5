package redis

import (
	"context"
	"errors"
	"strings"
	"sync"

	"xquote/internal/application/port"
	"xquote/internal/domain"
	"xquote/internal/infrastructure/serverquote"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	Name          = "redis"
	DefaultPrefix = "xquote:quotes"
)

var errPubSubClosed = errors.New("redis pubsub channel closed")

// Source 通过 Redis pub/sub 接收服务端报价
// 服务端约定：
//
//	PUBLISH <prefix>:<SYMBOL> {"bid":..,"ask":..,"mid":..,"spreadAbs":..,"timestamp":..}
//	HSET    <prefix>:latest <SYMBOL> <同上>
type Source struct {
	rdb    *redis.Client
	prefix string
}

func NewSource(rdb *redis.Client, prefix string) *Source {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Source{rdb: rdb, prefix: prefix}
}

func (s *Source) Name() string { return Name }

// Channel 交易对对应的 pub/sub 频道
func (s *Source) Channel(symbol domain.Symbol) string { return s.prefix + ":" + symbol.String() }

// LatestKey 最新报价 hash
func (s *Source) LatestKey() string { return s.prefix + ":latest" }

// Subscribe 不会同步失败，订阅确认失败通过 Errors() 上报
func (s *Source) Subscribe(ctx context.Context, symbol domain.Symbol) port.QuoteSubscription {
	cctx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		src:    s,
		symbol: symbol,
		quotes: make(chan domain.ServerQuote, 64),
		errs:   make(chan error, 16),
		ctx:    cctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub
}

type subscription struct {
	src    *Source
	symbol domain.Symbol
	quotes chan domain.ServerQuote
	errs   chan error

	ctx    context.Context
	cancel context.CancelFunc

	mu sync.Mutex
	ps *redis.PubSub

	closeOnce sync.Once
	done      chan struct{}
}

func (s *subscription) Symbol() domain.Symbol             { return s.symbol }
func (s *subscription) Quotes() <-chan domain.ServerQuote { return s.quotes }
func (s *subscription) Errors() <-chan error              { return s.errs }

// Close 幂等；返回后不会再有报价投递
func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.mu.Lock()
		if s.ps != nil {
			_ = s.ps.Close()
		}
		s.mu.Unlock()
		<-s.done
		for range s.quotes {
		}
		for range s.errs {
		}
	})
	return nil
}

func (s *subscription) run() {
	defer close(s.done)
	defer close(s.errs)
	defer close(s.quotes)

	channel := s.src.Channel(s.symbol)
	ps := s.src.rdb.Subscribe(s.ctx, channel)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = ps.Close()
		return
	}
	s.ps = ps
	s.mu.Unlock()

	if _, err := ps.Receive(s.ctx); err != nil {
		if s.ctx.Err() == nil {
			s.fail(channel, err)
		}
		return
	}
	log.Info().Str("source", Name).Str("channel", channel).Msg("server quotes subscribed")

	// 先订阅再读最新值，避免漏掉两者之间的推送
	raw, err := s.src.rdb.HGet(s.ctx, s.src.LatestKey(), s.symbol.String()).Result()
	switch {
	case err == nil:
		s.deliver([]byte(raw))
	case errors.Is(err, redis.Nil):
	default:
		if s.ctx.Err() != nil {
			return
		}
		log.Warn().Str("source", Name).Str("symbol", s.symbol.String()).Err(err).Msg("latest quote lookup failed")
	}

	ch := ps.Channel()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				if s.ctx.Err() == nil {
					s.fail(channel, errPubSubClosed)
				}
				return
			}
			s.deliver([]byte(msg.Payload))
		}
	}
}

func (s *subscription) deliver(payload []byte) {
	q, err := serverquote.DecodeQuote(payload)
	if err != nil {
		log.Warn().Str("source", Name).Str("symbol", s.symbol.String()).Err(err).Msg("server quote dropped")
		s.report(err)
		return
	}
	if q.Symbol.IsZero() {
		q.Symbol = s.symbol
	} else if q.Symbol != s.symbol {
		log.Warn().Str("source", Name).Str("symbol", s.symbol.String()).Str("quote_symbol", q.Symbol.String()).Msg("server quote dropped")
		s.report(serverquote.ErrSymbolMismatch)
		return
	}
	select {
	case s.quotes <- q:
	case <-s.ctx.Done():
	}
}

func (s *subscription) fail(channel string, err error) {
	log.Error().Str("source", Name).Str("channel", channel).Err(err).Msg("server quote subscription failed, not retrying")
	s.report(&domain.ConnectionError{Channel: channel, Err: err})
}

func (s *subscription) report(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

var _ port.QuoteSource = (*Source)(nil)
