package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"xquote/internal/domain"
)

type Config struct {
	App struct {
		LogLevel string `toml:"log_level"`
		Symbol   string `toml:"symbol"` // 启动时的活跃交易对，可为空
		Console  bool   `toml:"console"`
	} `toml:"app"`

	Feed struct {
		Kind           string `toml:"kind"`
		Endpoint       string `toml:"endpoint"`      // e.g. wss://stream.binance.com:9443
		StreamSuffix   string `toml:"stream_suffix"` // e.g. @ticker
		DialTimeoutSec int    `toml:"dial_timeout_sec"`
	} `toml:"feed"`

	ServerQuote struct {
		Kind          string `toml:"kind"` // redis | noop
		ChannelPrefix string `toml:"channel_prefix"`
	} `toml:"server_quote"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`

	Storage struct {
		Redis struct {
			Enabled         bool   `toml:"enabled"`
			Addr            string `toml:"addr"`
			Password        string `toml:"password"`
			DB              int    `toml:"db"`
			Prefix          string `toml:"prefix"`
			TTLSeconds      int    `toml:"ttl_seconds"`
			SnapshotChannel string `toml:"snapshot_channel"`
		} `toml:"redis"`

		SQLite struct {
			Enabled bool   `toml:"enabled"`
			Path    string `toml:"path"`
		} `toml:"sqlite"`

		Postgres struct {
			Enabled bool   `toml:"enabled"`
			DSN     string `toml:"dsn"`
		} `toml:"postgres"`

		RecorderBuffer int `toml:"recorder_buffer"`
	} `toml:"storage"`
}

const (
	ServerQuoteRedis = "redis"
	ServerQuoteNoop  = "noop"
)

// Load 读取 TOML 配置；.env 与 XQUOTE_* 环境变量覆盖敏感项
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	// .env 不存在不是错误
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("XQUOTE_SYMBOL"); ok {
		cfg.App.Symbol = v
	}
	if v, ok := os.LookupEnv("XQUOTE_FEED_ENDPOINT"); ok {
		cfg.Feed.Endpoint = v
	}
	if v, ok := os.LookupEnv("XQUOTE_REDIS_ADDR"); ok {
		cfg.Storage.Redis.Addr = v
	}
	if v, ok := os.LookupEnv("XQUOTE_REDIS_PASSWORD"); ok {
		cfg.Storage.Redis.Password = v
	}
	if v, ok := os.LookupEnv("XQUOTE_REDIS_DB"); ok {
		db, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("XQUOTE_REDIS_DB: %w", err)
		}
		cfg.Storage.Redis.DB = db
	}
	if v, ok := os.LookupEnv("XQUOTE_POSTGRES_DSN"); ok {
		cfg.Storage.Postgres.DSN = v
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.App.LogLevel) == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Feed.Kind == "" {
		cfg.Feed.Kind = "binance"
	}
	if cfg.Feed.StreamSuffix == "" {
		cfg.Feed.StreamSuffix = "@ticker"
	}
	if cfg.Feed.DialTimeoutSec <= 0 {
		cfg.Feed.DialTimeoutSec = 10
	}
	if cfg.ServerQuote.Kind == "" {
		if cfg.Storage.Redis.Enabled {
			cfg.ServerQuote.Kind = ServerQuoteRedis
		} else {
			cfg.ServerQuote.Kind = ServerQuoteNoop
		}
	}
	if cfg.ServerQuote.ChannelPrefix == "" {
		cfg.ServerQuote.ChannelPrefix = "xquote:quotes"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8080"
	}
	if cfg.Storage.Redis.Addr == "" {
		cfg.Storage.Redis.Addr = "localhost:6379"
	}
	if cfg.Storage.Redis.Prefix == "" {
		cfg.Storage.Redis.Prefix = "xquote"
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "data/xquote.db"
	}
	if cfg.Storage.RecorderBuffer <= 0 {
		cfg.Storage.RecorderBuffer = 256
	}
}

func validate(cfg *Config) error {
	cfg.Feed.Kind = strings.ToLower(strings.TrimSpace(cfg.Feed.Kind))
	cfg.Feed.Endpoint = strings.TrimSpace(cfg.Feed.Endpoint)
	if cfg.Feed.Endpoint == "" {
		return errors.New("feed.endpoint is empty")
	}

	sym, err := domain.NormalizeSymbol(cfg.App.Symbol)
	if err != nil {
		return fmt.Errorf("app.symbol %q: %w", cfg.App.Symbol, err)
	}
	cfg.App.Symbol = sym.String()

	cfg.ServerQuote.Kind = strings.ToLower(strings.TrimSpace(cfg.ServerQuote.Kind))
	switch cfg.ServerQuote.Kind {
	case ServerQuoteNoop:
	case ServerQuoteRedis:
		if !cfg.Storage.Redis.Enabled {
			return errors.New("server_quote.kind=redis requires storage.redis.enabled")
		}
	default:
		return fmt.Errorf("server_quote.kind %q not supported", cfg.ServerQuote.Kind)
	}

	if cfg.Storage.Postgres.Enabled && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but enabled")
	}
	return nil
}

// DialTimeout 交易所连接超时
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Feed.DialTimeoutSec) * time.Second
}

// RedisTTL 缓存过期时间，0 表示不过期
func (c *Config) RedisTTL() time.Duration {
	return time.Duration(c.Storage.Redis.TTLSeconds) * time.Second
}

// StorageEnabled 是否启用了任意持久化
func (c *Config) StorageEnabled() bool {
	return c.Storage.Redis.Enabled || c.Storage.SQLite.Enabled || c.Storage.Postgres.Enabled
}
