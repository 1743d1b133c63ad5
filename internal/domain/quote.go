package domain

import "github.com/shopspring/decimal"

// RawTick 交易所原始推送解码后的结果
// 只有 "c"（最新成交价）在语义上有用，其余字段原样保留、不做解释
type RawTick struct {
	Fields    map[string]any
	LastPrice decimal.NullDecimal // 字段缺失时 Valid=false，表示"无价格更新"
	EventTime int64               // "E"，unix ms，缺失为 0
	Stream    string              // combined stream 的 stream 名，直连时为空
}

// HasPrice 是否携带最新价
func (t RawTick) HasPrice() bool { return t.LastPrice.Valid }

// Tick 绑定到某个交易对的一次行情推送
type Tick struct {
	Symbol     Symbol
	LastPrice  decimal.NullDecimal
	EventTime  int64 // 交易所事件时间 unix ms，缺失为 0
	ReceivedAt int64 // 本地接收时间 unix ms
}

// ServerQuote 服务端权威报价，由外部报价源产生，本模块只读
type ServerQuote struct {
	Symbol    Symbol  `json:"symbol,omitempty"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Mid       float64 `json:"mid"`
	SpreadAbs float64 `json:"spreadAbs"`
	Timestamp int64   `json:"timestamp"` // unix ms
}

// QuoteSnapshot 面向展示层的合并报价
type QuoteSnapshot struct {
	Symbol    Symbol  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Mid       float64 `json:"mid"`
	SpreadAbs float64 `json:"spreadAbs"`
	Timestamp int64   `json:"timestamp"`
}
