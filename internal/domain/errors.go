package domain

import "fmt"

// ParseError 推送内容格式错误，可恢复：丢弃该消息，流继续
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse tick: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ConnectionError 上游连接失败，可恢复但不重试：保留最后的价格直到切换交易对
type ConnectionError struct {
	Channel string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Channel, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TruncatePayload 截断过长的原始内容，避免日志被刷屏
func TruncatePayload(b []byte) string {
	const max = 256
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
