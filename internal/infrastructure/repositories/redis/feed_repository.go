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

func feedKey(channel string) string {
	return keyPrefix + "feed:" + channel
}

func feedSeqKey(channel string) string {
	return keyPrefix + "feed:" + channel + ":seq"
}

// RedisFeedRepository keeps each channel log as a redis list, oldest first.
// Appends are not retried since a lost reply could duplicate the event.
type RedisFeedRepository struct {
	client    *redis.Client
	maxEvents int64
	retry     retry.Config
}

func NewRedisFeedRepository(client *redis.Client, maxEvents int) ports.FeedRepository {
	return &RedisFeedRepository{client: client, maxEvents: int64(maxEvents), retry: commandRetry()}
}

func (r *RedisFeedRepository) Append(ctx context.Context, channel string, event *domain.ChatEvent) (int64, error) {
	seq, err := r.client.Incr(ctx, feedSeqKey(channel)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate feed sequence: %w", err)
	}
	event.Seq = seq

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal chat event: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, feedKey(channel), data)
		if r.maxEvents > 0 {
			pipe.LTrim(ctx, feedKey(channel), -r.maxEvents, -1)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append chat event: %w", err)
	}
	return seq, nil
}

func (r *RedisFeedRepository) List(ctx context.Context, channel string) ([]domain.ChatEvent, error) {
	raw, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]string, error) {
		return r.client.LRange(ctx, feedKey(channel), 0, -1).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chat feed: %w", err)
	}

	events := make([]domain.ChatEvent, 0, len(raw))
	for _, item := range raw {
		var e domain.ChatEvent
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *RedisFeedRepository) Last(ctx context.Context, channel string) (*domain.ChatEvent, error) {
	raw, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.client.LIndex(ctx, feedKey(channel), -1).Result()
	})
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last chat event: %w", err)
	}

	var e domain.ChatEvent
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat event: %w", err)
	}
	return &e, nil
}

func (r *RedisFeedRepository) Delete(ctx context.Context, channel string) error {
	err := retry.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.client.Del(ctx, feedKey(channel), feedSeqKey(channel)).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete chat feed: %w", err)
	}
	return nil
}
