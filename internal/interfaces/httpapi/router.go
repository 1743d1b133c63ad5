package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"xquote/internal/application/usecase/quotes"
	"xquote/internal/domain"
)

// Controller 是 HTTP 层依赖的行情控制面（*quotes.Manager 实现）
type Controller interface {
	Publisher() *quotes.Publisher
	SetActiveSymbol(symbol string) error
	ClearActiveSymbol()
}

type QuoteResponse struct {
	Symbol    *string               `json:"symbol"`
	Data      *domain.QuoteSnapshot `json:"data"`
	LastPrice decimal.NullDecimal   `json:"lastPrice"`
}

type SymbolRequest struct {
	Symbol *string `json:"symbol"`
}

func toResponse(v quotes.View) QuoteResponse {
	resp := QuoteResponse{Data: v.Snapshot, LastPrice: v.LastPrice}
	if !v.Symbol.IsZero() {
		s := v.Symbol.String()
		resp.Symbol = &s
	}
	return resp
}

func RegisterRoutes(h *server.Hertz, ctl Controller) {
	h.GET("/healthz", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, map[string]bool{"ok": true})
	})

	h.GET("/api/v1/quote", func(_ context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, toResponse(ctl.Publisher().Current()))
	})

	h.PUT("/api/v1/symbol", func(_ context.Context, c *app.RequestContext) {
		var req SymbolRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid json body"})
			return
		}

		if req.Symbol == nil || *req.Symbol == "" {
			ctl.ClearActiveSymbol()
		} else if err := ctl.SetActiveSymbol(*req.Symbol); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrInvalidSymbol) {
				status = http.StatusBadRequest
			} else if errors.Is(err, quotes.ErrManagerClosed) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, toResponse(ctl.Publisher().Current()))
	})
}

// Server 包装 hertz，随 ctx 取消优雅退出
type Server struct {
	h *server.Hertz
}

func NewServer(addr string, ctl Controller) *Server {
	h := server.New(
		server.WithHostPorts(addr),
		server.WithExitWaitTime(2*time.Second),
		server.WithDisablePrintRoute(true),
	)
	RegisterRoutes(h, ctl)
	return &Server{h: h}
}

func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.h.Run() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.h.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
		return err
	}
	return nil
}
