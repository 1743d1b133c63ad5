package pricefeed

import (
	"sort"
	"time"

	"xquote/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Config 交易所行情源的构造参数，由配置层显式传入（不使用全局 endpoint）
type Config struct {
	Endpoint     string        // e.g. wss://stream.binance.com:9443
	StreamSuffix string        // e.g. @ticker
	DialTimeout  time.Duration // 0 表示使用默认值
}

// factory函数类型
type Factory func(cfg Config) port.ExchangeFeed

// registry maps exchange names to their respective price feed factories
var registry = make(map[string]Factory)

// Register 注册一个交易所行情源工厂
// 这是由各个交易所包的init()函数调用来自注册的
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid price feed factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("price feed factory already registered, overwriting")
	}
	registry[exchangeName] = factory
	log.Debug().Str("exchange", exchangeName).Msg("price feed factory registered")
}

// Get 获取已注册的price feed factory for给定的exchange名称
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}

// Names 已注册的交易所名称（排序）
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
