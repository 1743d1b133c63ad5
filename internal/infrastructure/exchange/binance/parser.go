package binance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"xquote/internal/domain"
)

const (
	fieldLastPrice = "c"
	fieldEventTime = "E"
)

var errNotObject = errors.New("payload is not a json object")

// ParseTick 解码一条 ticker 推送
// 只有 "c" 在语义上有用：缺失时返回的 RawTick 不带价格（不是错误）；
// 非 JSON 对象、尾部垃圾、或 "c" 不是合法数字时返回 *domain.ParseError
// 兼容 combined stream 的 {"stream":..., "data":{...}} 包装
func ParseTick(payload []byte) (domain.RawTick, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return domain.RawTick{}, parseError(payload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("unexpected trailing data")
		}
		return domain.RawTick{}, parseError(payload, err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return domain.RawTick{}, parseError(payload, errNotObject)
	}

	var tick domain.RawTick
	if data, ok := obj["data"].(map[string]any); ok {
		if stream, ok := obj["stream"].(string); ok {
			tick.Stream = stream
			obj = data
		}
	}
	tick.Fields = obj

	px, err := decimalField(obj[fieldLastPrice])
	if err != nil {
		return domain.RawTick{}, parseError(payload, fmt.Errorf("field %s: %w", fieldLastPrice, err))
	}
	tick.LastPrice = px

	// E 是可选字段，格式不对直接忽略
	if n, ok := obj[fieldEventTime].(json.Number); ok {
		if ts, err := n.Int64(); err == nil {
			tick.EventTime = ts
		}
	}
	return tick, nil
}

func decimalField(v any) (decimal.NullDecimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.NullDecimal{}, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.NullDecimal{}, nil
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(d), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.NullDecimal{}, err
		}
		return decimal.NewNullDecimal(d), nil
	default:
		return decimal.NullDecimal{}, fmt.Errorf("unexpected type %T", v)
	}
}

func parseError(payload []byte, err error) *domain.ParseError {
	return &domain.ParseError{Payload: domain.TruncatePayload(payload), Err: err}
}
