package console

import (
	"fmt"
	"strings"
	"sync"

	"xquote/internal/application/port"
	"xquote/internal/application/usecase/quotes"
)

const (
	ansiReset    = "\033[0m"
	ansiRed      = "\033[31m"
	ansiGreen    = "\033[32m"
	ansiYellow   = "\033[33m"
	ansiDim      = "\033[2m"
	ansiClearEOL = "\033[K"
)

func colorize(s, c string) string { return c + s + ansiReset }

type Dir int

const (
	DirSame Dir = 0
	DirUp   Dir = +1
	DirDown Dir = -1
)

// Formatter 把发布的 View 渲染成一行；记住上一次的 mid 用于涨跌着色
type Formatter struct {
	mu      sync.Mutex
	prevMid float64
	hasPrev bool
}

func NewFormatter() *Formatter { return &Formatter{} }

func (f *Formatter) direction(v quotes.View) Dir {
	f.mu.Lock()
	defer f.mu.Unlock()

	if v.Snapshot == nil {
		f.hasPrev = false
		return DirSame
	}
	mid := v.Snapshot.Mid
	dir := DirSame
	if f.hasPrev {
		switch {
		case mid > f.prevMid:
			dir = DirUp
		case mid < f.prevMid:
			dir = DirDown
		}
	}
	f.prevMid, f.hasPrev = mid, true
	return dir
}

func (f *Formatter) Render(v quotes.View) string {
	dir := f.direction(v)

	var sb strings.Builder
	sb.WriteString("\r")
	sb.WriteString(colorize("[XQUOTE] ", ansiDim))

	if v.Symbol.IsZero() {
		sb.WriteString(colorize("no active symbol", ansiDim))
		sb.WriteString(ansiClearEOL)
		return sb.String()
	}
	sb.WriteString(v.Symbol.String())
	sb.WriteString(" ")

	if v.Snapshot == nil {
		sb.WriteString(colorize("bid=-- ask=-- mid=-- spread=--", ansiYellow))
	} else {
		s := v.Snapshot
		col := ansiYellow
		switch dir {
		case DirUp:
			col = ansiGreen
		case DirDown:
			col = ansiRed
		}
		sb.WriteString(colorize(fmt.Sprintf("bid=%.2f ask=%.2f mid=%.2f spread=%.2f", s.Bid, s.Ask, s.Mid, s.SpreadAbs), col))
		sb.WriteString(colorize(fmt.Sprintf(" ts=%d", s.Timestamp), ansiDim))
	}

	last := "--"
	if v.LastPrice.Valid {
		last = v.LastPrice.Decimal.String()
	}
	sb.WriteString(" ")
	sb.WriteString(colorize("last="+last, ansiDim))
	sb.WriteString(ansiClearEOL)
	return sb.String()
}

// Observer 渲染后写到 sink，可直接注册到 Publisher
func Observer(f *Formatter, sink port.Sink) quotes.Observer {
	return func(v quotes.View) {
		_ = sink.WriteLive(f.Render(v))
	}
}
