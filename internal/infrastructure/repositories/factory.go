package repositories

import (
	"context"

	"locallive/internal/core/ports"
	"locallive/internal/infrastructure/repositories/memory"
	redisrepo "locallive/internal/infrastructure/repositories/redis"
	"locallive/internal/infrastructure/seed"
	"locallive/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	catalog     *seed.Catalog
	maxEvents   int
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when enabled and falls back to
// memory repositories when it is unreachable.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, catalog *seed.Catalog, logger *zap.SugaredLogger) *RepositoryFactory {
	factory := &RepositoryFactory{
		useRedis:  cfg.Redis.Enabled,
		catalog:   catalog,
		maxEvents: cfg.Feed.MaxEvents,
		logger:    logger,
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, catalog, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory
}

// RedisClient returns the shared client, or nil in memory mode.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// CreateCatalogRepository always serves the seeded catalog from memory.
func (f *RepositoryFactory) CreateCatalogRepository() ports.CatalogRepository {
	return memory.NewMemoryCatalogRepository(f.catalog.FoodItems, f.catalog.Sellers)
}

func (f *RepositoryFactory) CreateStreamRepository() ports.StreamRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisStreamRepository(f.redisClient)
	}
	return memory.NewMemoryStreamRepository(f.catalog.Streams...)
}

// CreateFeedRepository seeds the memory log with the demo chat history;
// Redis is seeded by its migrations.
func (f *RepositoryFactory) CreateFeedRepository(ctx context.Context) (ports.FeedRepository, error) {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisFeedRepository(f.redisClient, f.maxEvents), nil
	}

	repo := memory.NewMemoryFeedRepository(f.maxEvents)
	for channel, events := range f.catalog.Chat {
		for i := range events {
			e := events[i]
			if _, err := repo.Append(ctx, channel, &e); err != nil {
				return nil, err
			}
		}
	}
	return repo, nil
}

func (f *RepositoryFactory) CreateAuctionRepository() ports.AuctionRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisAuctionRepository(f.redisClient)
	}
	return memory.NewMemoryAuctionRepository()
}

func (f *RepositoryFactory) CreateUserRepository() ports.UserRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisUserRepository(f.redisClient)
	}
	return memory.NewMemoryUserRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
