package quotes

import (
	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

// Merge 合并服务端报价与交易所最新价
// bid/ask/mid/spreadAbs/timestamp 只取自服务端报价；交易所最新价仅作参考，不参与计算
// 没有服务端报价时没有快照
func Merge(symbol domain.Symbol, quote *domain.ServerQuote, lastPrice decimal.NullDecimal) (domain.QuoteSnapshot, bool) {
	if quote == nil {
		return domain.QuoteSnapshot{}, false
	}
	return domain.QuoteSnapshot{
		Symbol:    symbol,
		Bid:       quote.Bid,
		Ask:       quote.Ask,
		Mid:       quote.Mid,
		SpreadAbs: quote.SpreadAbs,
		Timestamp: quote.Timestamp,
	}, true
}

// Aggregator 单个交易对的最新状态；不是并发安全的，由会话锁保护
type Aggregator struct {
	symbol domain.Symbol
	quote  *domain.ServerQuote
	last   decimal.NullDecimal
}

func NewAggregator(symbol domain.Symbol) *Aggregator {
	return &Aggregator{symbol: symbol}
}

func (a *Aggregator) Symbol() domain.Symbol { return a.symbol }

// ApplyQuote 应用一条服务端报价，返回新的快照
// 时间戳早于当前报价的乱序报价被丢弃，保证快照时间单调不减
func (a *Aggregator) ApplyQuote(q domain.ServerQuote) (domain.QuoteSnapshot, bool) {
	if a.quote != nil && q.Timestamp < a.quote.Timestamp {
		return domain.QuoteSnapshot{}, false
	}
	q.Symbol = a.symbol
	a.quote = &q
	return Merge(a.symbol, a.quote, a.last)
}

// ApplyTick 记录交易所最新价；不带价格的 tick 不算更新
func (a *Aggregator) ApplyTick(t domain.Tick) (decimal.Decimal, bool) {
	if !t.LastPrice.Valid {
		return decimal.Decimal{}, false
	}
	a.last = t.LastPrice
	return t.LastPrice.Decimal, true
}

func (a *Aggregator) Snapshot() (domain.QuoteSnapshot, bool) {
	return Merge(a.symbol, a.quote, a.last)
}

func (a *Aggregator) LastPrice() decimal.NullDecimal { return a.last }
