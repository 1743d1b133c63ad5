package serverquote

import (
	"context"
	"sync"

	"xquote/internal/application/port"
	"xquote/internal/domain"
)

// NoopSource 未配置服务端报价源时使用：订阅成功但永远不推送
type NoopSource struct{}

func NewNoopSource() port.QuoteSource { return &NoopSource{} }

func (n *NoopSource) Name() string { return "noop" }

func (n *NoopSource) Subscribe(ctx context.Context, symbol domain.Symbol) port.QuoteSubscription {
	return &noopSubscription{
		symbol: symbol,
		quotes: make(chan domain.ServerQuote),
		errs:   make(chan error),
	}
}

type noopSubscription struct {
	symbol domain.Symbol
	quotes chan domain.ServerQuote
	errs   chan error
	once   sync.Once
}

func (s *noopSubscription) Symbol() domain.Symbol             { return s.symbol }
func (s *noopSubscription) Quotes() <-chan domain.ServerQuote { return s.quotes }
func (s *noopSubscription) Errors() <-chan error              { return s.errs }

func (s *noopSubscription) Close() error {
	s.once.Do(func() {
		close(s.quotes)
		close(s.errs)
	})
	return nil
}
