package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/retry"

	"github.com/redis/go-redis/v9"
)

type RedisAuctionRepository struct {
	client *redis.Client
	retry  retry.Config
}

func NewRedisAuctionRepository(client *redis.Client) ports.AuctionRepository {
	return &RedisAuctionRepository{client: client, retry: commandRetry()}
}

func auctionKey(channel string) string {
	return keyPrefix + "auction:" + channel
}

func (r *RedisAuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	data, err := json.Marshal(auction)
	if err != nil {
		return fmt.Errorf("failed to marshal auction: %w", err)
	}
	err = retry.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.client.Set(ctx, auctionKey(auction.Channel), data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to save auction: %w", err)
	}
	return nil
}

func (r *RedisAuctionRepository) Get(ctx context.Context, channel string) (*domain.Auction, error) {
	data, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
		return r.client.Get(ctx, auctionKey(channel)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get auction: %w", err)
	}

	var a domain.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auction: %w", err)
	}
	return &a, nil
}

func (r *RedisAuctionRepository) Delete(ctx context.Context, channel string) error {
	return retry.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.client.Del(ctx, auctionKey(channel)).Err()
	})
}
