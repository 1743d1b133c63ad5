package console

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

// SymbolSetter 切换活跃交易对
type SymbolSetter interface {
	SetActiveSymbol(symbol string) error
}

// ReadCommands 每行一个交易对；"-" 或空行清空订阅
func ReadCommands(ctx context.Context, in io.Reader, target SymbolSetter) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "-" {
			line = ""
		}
		if err := target.SetActiveSymbol(line); err != nil {
			log.Warn().Str("input", line).Err(err).Msg("symbol switch rejected")
		}
	}
	return scanner.Err()
}
