package domain

import (
	"errors"
	"strings"
)

// ErrInvalidSymbol 交易对包含非法字符
var ErrInvalidSymbol = errors.New("invalid symbol")

// Symbol 交易对标识（大小写不敏感），规范形式为去空格后的大写，例如 "BTCUSDT"
// 空字符串表示"当前没有活跃交易对"
type Symbol string

// NormalizeSymbol 规范化用户输入的交易对
// 例: " btcusdt " -> "BTCUSDT", "" -> ""
func NormalizeSymbol(raw string) (Symbol, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return "", ErrInvalidSymbol
		}
	}
	return Symbol(s), nil
}

func (s Symbol) String() string { return string(s) }

// IsZero 是否为空交易对（无活跃订阅）
func (s Symbol) IsZero() bool { return s == "" }

// Channel 构造交易所频道名：小写交易对 + 固定后缀
// 例: BTCUSDT + "@ticker" -> "btcusdt@ticker"
func (s Symbol) Channel(suffix string) string {
	return strings.ToLower(string(s)) + suffix
}
