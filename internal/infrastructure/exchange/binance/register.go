package binance

import (
	"xquote/internal/application/port"
	"xquote/internal/infrastructure/pricefeed"
)

// init() automatically registers Binance WebSocket ticker feed factory
func init() {
	pricefeed.Register(Name, func(cfg pricefeed.Config) port.ExchangeFeed {
		return NewTickerFeed(cfg)
	})
}
