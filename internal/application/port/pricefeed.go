package port

import (
	"context"

	"xquote/internal/domain"
)

// TickSubscription 单个交易对的一条交易所行情连接
// Ticks/Errors 在订阅结束后由实现方关闭
type TickSubscription interface {
	Symbol() domain.Symbol
	Ticks() <-chan domain.Tick
	Errors() <-chan error
	// Close 幂等；返回后不会再有 tick 投递，未消费的缓冲数据被丢弃
	Close() error
}

// ExchangeFeed 交易所行情源
type ExchangeFeed interface {
	Name() string
	// Open 不会同步失败，连接错误通过订阅的 Errors() 异步上报
	Open(ctx context.Context, symbol domain.Symbol) TickSubscription
}

// QuoteSubscription 服务端权威报价订阅
type QuoteSubscription interface {
	Symbol() domain.Symbol
	Quotes() <-chan domain.ServerQuote
	Errors() <-chan error
	// Close 幂等；返回后不会再有报价投递，未消费的缓冲数据被丢弃
	Close() error
}

// QuoteSource 服务端报价源（外部协作方），推送 {bid, ask, mid, spreadAbs, timestamp}
type QuoteSource interface {
	Name() string
	Subscribe(ctx context.Context, symbol domain.Symbol) QuoteSubscription
}
