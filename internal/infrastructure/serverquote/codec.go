package serverquote

import (
	"encoding/json"
	"errors"
	"fmt"

	"xquote/internal/domain"
)

type wireQuote struct {
	Symbol    string   `json:"symbol"`
	Bid       *float64 `json:"bid"`
	Ask       *float64 `json:"ask"`
	Mid       *float64 `json:"mid"`
	SpreadAbs *float64 `json:"spreadAbs"`
	Timestamp *int64   `json:"timestamp"`
}

// DecodeQuote 解码服务端报价 {bid, ask, mid, spreadAbs, timestamp}
// 五个字段缺一不可，其余字段忽略
func DecodeQuote(payload []byte) (domain.ServerQuote, error) {
	var w wireQuote
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.ServerQuote{}, &domain.ParseError{Payload: domain.TruncatePayload(payload), Err: err}
	}
	missing := ""
	switch {
	case w.Bid == nil:
		missing = "bid"
	case w.Ask == nil:
		missing = "ask"
	case w.Mid == nil:
		missing = "mid"
	case w.SpreadAbs == nil:
		missing = "spreadAbs"
	case w.Timestamp == nil:
		missing = "timestamp"
	}
	if missing != "" {
		return domain.ServerQuote{}, &domain.ParseError{
			Payload: domain.TruncatePayload(payload),
			Err:     fmt.Errorf("missing field %s", missing),
		}
	}

	sym, err := domain.NormalizeSymbol(w.Symbol)
	if err != nil {
		return domain.ServerQuote{}, &domain.ParseError{Payload: domain.TruncatePayload(payload), Err: err}
	}
	return domain.ServerQuote{
		Symbol:    sym,
		Bid:       *w.Bid,
		Ask:       *w.Ask,
		Mid:       *w.Mid,
		SpreadAbs: *w.SpreadAbs,
		Timestamp: *w.Timestamp,
	}, nil
}

// EncodeQuote 编码服务端报价（测试与回放工具使用）
func EncodeQuote(q domain.ServerQuote) ([]byte, error) {
	return json.Marshal(q)
}

// ErrSymbolMismatch 报价的交易对与订阅的交易对不一致
var ErrSymbolMismatch = errors.New("quote symbol does not match subscription")
