package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"locallive/internal/infrastructure/seed"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	schemaVersionKey     = keyPrefix + "schema:version"
	currentSchemaVersion = 2
)

type Migration struct {
	Version int
	Up      func(ctx context.Context, client *redis.Client) error
}

// Migrate runs all pending migrations
func Migrate(ctx context.Context, client *redis.Client, catalog *seed.Catalog, logger *zap.SugaredLogger) error {
	currentVersion, err := getSchemaVersion(ctx, client)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if currentVersion >= currentSchemaVersion {
		if logger != nil {
			logger.Infow("schema is up to date",
				"current_version", currentVersion,
				"target_version", currentSchemaVersion,
			)
		}
		return nil
	}

	for _, migration := range getMigrations(catalog) {
		if migration.Version <= currentVersion {
			continue
		}
		if logger != nil {
			logger.Infow("running migration", "version", migration.Version)
		}
		if err := migration.Up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if err := setSchemaVersion(ctx, client, migration.Version); err != nil {
			return fmt.Errorf("failed to update schema version: %w", err)
		}
	}

	if logger != nil {
		logger.Infow("all migrations completed", "final_version", currentSchemaVersion)
	}
	return nil
}

func getSchemaVersion(ctx context.Context, client *redis.Client) (int, error) {
	val, err := client.Get(ctx, schemaVersionKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

func setSchemaVersion(ctx context.Context, client *redis.Client, version int) error {
	return client.Set(ctx, schemaVersionKey, version, 0).Err()
}

func getMigrations(catalog *seed.Catalog) []Migration {
	return []Migration{
		{
			// 1: drop keys left by the pre-release layout that stored the feed as a hash
			Version: 1,
			Up: func(ctx context.Context, client *redis.Client) error {
				iter := client.Scan(ctx, 0, keyPrefix+"chat:*", 100).Iterator()
				for iter.Next(ctx) {
					if err := client.Del(ctx, iter.Val()).Err(); err != nil {
						return err
					}
				}
				return iter.Err()
			},
		},
		{
			// 2: load the demo live streams and their chat history
			Version: 2,
			Up: func(ctx context.Context, client *redis.Client) error {
				if catalog == nil {
					return nil
				}
				streams := NewRedisStreamRepository(client)
				for i := range catalog.Streams {
					if err := streams.Create(ctx, &catalog.Streams[i]); err != nil {
						return err
					}
				}
				for channel, events := range catalog.Chat {
					key := feedKey(channel)
					for _, e := range events {
						e.Seq = client.Incr(ctx, feedSeqKey(channel)).Val()
						data, err := json.Marshal(e)
						if err != nil {
							return err
						}
						if err := client.RPush(ctx, key, data).Err(); err != nil {
							return err
						}
					}
				}
				return nil
			},
		},
	}
}
