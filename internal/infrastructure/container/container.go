package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"xquote/internal/application/port"
	"xquote/internal/infrastructure/config"
	"xquote/internal/infrastructure/pricefeed"
	"xquote/internal/infrastructure/serverquote"
	redisquote "xquote/internal/infrastructure/serverquote/redis"
	"xquote/internal/infrastructure/storage/composite"
	pgrepo "xquote/internal/infrastructure/storage/postgres"
	redisrepo "xquote/internal/infrastructure/storage/redis"
	sqliterepo "xquote/internal/infrastructure/storage/sqlite"
)

// Container 包含所有基础设施依赖
type Container struct {
	cfg          *config.Config
	redisClient  *redis.Client
	sqliteRepo   *sqliterepo.Repo
	redisRepo    *redisrepo.Repo
	postgresRepo *pgrepo.Repo
	repo         *composite.Repo
	feed         port.ExchangeFeed
	quotes       port.QuoteSource
	closeOnce    sync.Once
	closerChain  []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.init(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) init() error {
	if err := c.initStorage(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInitFailed, err)
	}
	if err := c.initQuoteSource(); err != nil {
		return err
	}
	return c.initFeed()
}

// initStorage 初始化存储层（Redis、SQLite、Postgres）
func (c *Container) initStorage() error {
	// Redis
	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	// SQLite
	if c.cfg.Storage.SQLite.Enabled {
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	}

	// Postgres
	if c.cfg.Storage.Postgres.Enabled {
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	}

	var repos []port.Repository
	if c.redisRepo != nil {
		repos = append(repos, c.redisRepo)
	}
	if c.sqliteRepo != nil {
		repos = append(repos, c.sqliteRepo)
	}
	if c.postgresRepo != nil {
		repos = append(repos, c.postgresRepo)
	}
	c.repo = composite.New(repos...)
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.cfg.Storage.Redis.Addr,
		Password: c.cfg.Storage.Redis.Password,
		DB:       c.cfg.Storage.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisRepo = redisrepo.New(
		rdb,
		c.cfg.Storage.Redis.Prefix,
		c.cfg.RedisTTL(),
		c.cfg.Storage.Redis.SnapshotChannel,
	)

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", c.cfg.Storage.Redis.Addr).
		Int("db", c.cfg.Storage.Redis.DB).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}

	c.sqliteRepo = repo

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

// initPostgres 初始化 Postgres
func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}
	c.postgresRepo = repo
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})
	log.Info().Msg("postgres initialized")
	return nil
}

// initQuoteSource 初始化服务端报价源
func (c *Container) initQuoteSource() error {
	switch c.cfg.ServerQuote.Kind {
	case config.ServerQuoteRedis:
		if c.redisClient == nil {
			return ErrRedisRequired
		}
		c.quotes = redisquote.NewSource(c.redisClient, c.cfg.ServerQuote.ChannelPrefix)
	default:
		log.Warn().Msg("no server quote source configured, snapshots will stay empty")
		c.quotes = serverquote.NewNoopSource()
	}
	log.Info().Str("source", c.quotes.Name()).Msg("server quote source initialized")
	return nil
}

// initFeed 通过注册表创建交易所行情源
func (c *Container) initFeed() error {
	factory, ok := pricefeed.Get(c.cfg.Feed.Kind)
	if !ok {
		return fmt.Errorf("%w: %s (registered: %v)", ErrFeedNotRegistered, c.cfg.Feed.Kind, pricefeed.Names())
	}
	c.feed = factory(pricefeed.Config{
		Endpoint:     c.cfg.Feed.Endpoint,
		StreamSuffix: c.cfg.Feed.StreamSuffix,
		DialTimeout:  c.cfg.DialTimeout(),
	})
	log.Info().Str("feed", c.feed.Name()).Str("endpoint", c.cfg.Feed.Endpoint).Msg("exchange feed initialized")
	return nil
}

// SQLiteRepo 获取 SQLite 仓储
func (c *Container) SQLiteRepo() *sqliterepo.Repo {
	return c.sqliteRepo
}

// Repository 所有启用仓储的组合
func (c *Container) Repository() *composite.Repo {
	return c.repo
}

// ExchangeFeed 交易所行情源
func (c *Container) ExchangeFeed() port.ExchangeFeed {
	return c.feed
}

// QuoteSource 服务端报价源
func (c *Container) QuoteSource() port.QuoteSource {
	return c.quotes
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
