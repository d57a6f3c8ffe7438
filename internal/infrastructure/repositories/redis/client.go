package redis

import (
	"context"
	"fmt"
	"time"

	"locallive/internal/infrastructure/seed"
	"locallive/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "locallive:"

type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// NewRedisClient connects with retries, then runs pending migrations.
func NewRedisClient(ctx context.Context, opts ClientOptions, catalog *seed.Catalog, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     opts.PoolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCfg := retry.DefaultConfig()
	pingCfg.MaxAttempts = 2
	err := retry.Retry(ctx, pingCfg, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(ctx, client, catalog, logger); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", opts.Address,
			"db", opts.DB,
			"pool_size", opts.PoolSize,
		)
	}

	return client, nil
}

// commandRetry retries transient command failures. Key misses, lost WATCH
// races and domain outcomes come back at once.
func commandRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 2
	cfg.InitialDelay = 20 * time.Millisecond
	cfg.MaxDelay = 250 * time.Millisecond
	cfg.Permanent = append(cfg.Permanent, redis.Nil, redis.TxFailedErr)
	return cfg
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
