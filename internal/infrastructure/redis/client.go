package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/internal/config"
)

// NewClient creates a Redis client. A failed health check is logged and the client is
// still returned so the tier can come online later.
func NewClient(cfg config.RedisConfig, logger *zap.Logger) (*goRedis.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, starting degraded", zap.String("addr", opts.Addr), zap.Error(err))
		return client, nil
	}
	logger.Info("connected to redis", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return client, nil
}

// Close releases the client.
func Close(client *goRedis.Client, logger *zap.Logger) error {
	if client == nil {
		return nil
	}
	err := client.Close()
	if logger != nil {
		logger.Info("redis client closed", zap.Error(err))
	}
	return err
}
