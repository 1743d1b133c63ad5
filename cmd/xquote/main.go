package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"

	"xquote/internal/application/usecase/quotes"
	"xquote/internal/infrastructure/config"
	"xquote/internal/infrastructure/container"
	_ "xquote/internal/infrastructure/exchange/binance"
	"xquote/internal/infrastructure/logger"
	"xquote/internal/interfaces/console"
	"xquote/internal/interfaces/httpapi"
)

func main() {
	logger.Setup("info")

	configPath := flag.String("config", "configs/config.toml", "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("load config failed")
	}
	logger.Setup(cfg.App.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("init container failed")
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Msg("container close")
		}
	}()

	pub := quotes.NewPublisher()
	mgr := quotes.NewManager(ctx, quotes.ManagerDeps{
		Feed:      c.ExchangeFeed(),
		Quotes:    c.QuoteSource(),
		Publisher: pub,
	})

	var wg sync.WaitGroup

	// 持久化
	if cfg.StorageEnabled() {
		rec := quotes.NewRecorder(c.Repository(), cfg.Storage.RecorderBuffer)
		unsubscribe := pub.Subscribe(rec.Observe)
		defer unsubscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("recorder exited")
			}
		}()
	}

	// 控制台输出 + stdin 切换交易对
	if cfg.App.Console {
		sink := console.NewSink()
		unsubscribe := pub.Subscribe(console.Observer(console.NewFormatter(), sink))
		defer func() {
			unsubscribe()
			_ = sink.NewLine()
		}()
		go func() {
			if err := console.ReadCommands(ctx, os.Stdin, mgr); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("stdin reader exited")
			}
		}()
	}

	if cfg.HTTP.Enabled {
		srv := httpapi.NewServer(cfg.HTTP.Addr, mgr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.HTTP.Addr).Msg("http server exited")
				stop()
			}
		}()
	}

	if cfg.App.Symbol != "" {
		if err := mgr.SetActiveSymbol(cfg.App.Symbol); err != nil {
			log.Error().Err(err).Str("symbol", cfg.App.Symbol).Msg("initial symbol rejected")
		}
	}

	log.Info().
		Str("config", *configPath).
		Str("feed", cfg.Feed.Kind).
		Str("server_quote", cfg.ServerQuote.Kind).
		Str("symbol", cfg.App.Symbol).
		Bool("http", cfg.HTTP.Enabled).
		Msg("xquote started")

	<-ctx.Done()

	if err := mgr.Close(); err != nil {
		log.Warn().Err(err).Msg("manager close")
	}
	wg.Wait()
	log.Info().Msg("xquote stopped")
}
