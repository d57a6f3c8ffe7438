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

const maxTxRetries = 5

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisStreamRepository struct {
	client *redis.Client
	prefix string
	retry  retry.Config
}

func NewRedisStreamRepository(client *redis.Client) ports.StreamRepository {
	return &RedisStreamRepository{
		client: client,
		prefix: keyPrefix + "stream:",
		retry:  commandRetry(),
	}
}

func (r *RedisStreamRepository) streamKey(id domain.StreamID) string {
	return r.prefix + string(id)
}

func (r *RedisStreamRepository) liveStreamsKey() string {
	return r.prefix + "live"
}

func (r *RedisStreamRepository) channelIndexKey() string {
	return r.prefix + "by-channel"
}

func (r *RedisStreamRepository) Create(ctx context.Context, stream *domain.LiveStream) error {
	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}

	created, err := r.client.SetNX(ctx, r.streamKey(stream.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to set stream in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("stream already exists: %s", stream.ID)
	}

	return r.updateIndexes(ctx, stream)
}

func (r *RedisStreamRepository) updateIndexes(ctx context.Context, stream *domain.LiveStream) error {
	if stream.Channel != "" {
		err := retry.Retry(ctx, r.retry, func(ctx context.Context) error {
			return r.client.HSet(ctx, r.channelIndexKey(), stream.Channel, string(stream.ID)).Err()
		})
		if err != nil {
			return fmt.Errorf("failed to index stream channel: %w", err)
		}
	}
	err := retry.Retry(ctx, r.retry, func(ctx context.Context) error {
		if stream.IsLive {
			return r.client.SAdd(ctx, r.liveStreamsKey(), string(stream.ID)).Err()
		}
		return r.client.SRem(ctx, r.liveStreamsKey(), string(stream.ID)).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to update live set: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) GetByID(ctx context.Context, id domain.StreamID) (*domain.LiveStream, error) {
	return r.get(ctx, r.client, id)
}

func (r *RedisStreamRepository) get(ctx context.Context, c getter, id domain.StreamID) (*domain.LiveStream, error) {
	data, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
		return c.Get(ctx, r.streamKey(id)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stream from Redis: %w", err)
	}

	var stream domain.LiveStream
	if err := json.Unmarshal(data, &stream); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stream: %w", err)
	}
	return &stream, nil
}

func (r *RedisStreamRepository) GetByChannel(ctx context.Context, channel string) (*domain.LiveStream, error) {
	id, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.client.HGet(ctx, r.channelIndexKey(), channel).Result()
	})
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up stream channel: %w", err)
	}
	return r.GetByID(ctx, domain.StreamID(id))
}

func (r *RedisStreamRepository) Update(ctx context.Context, stream *domain.LiveStream) error {
	if _, err := r.GetByID(ctx, stream.ID); err != nil {
		return err
	}

	data, err := json.Marshal(stream)
	if err != nil {
		return fmt.Errorf("failed to marshal stream: %w", err)
	}
	err = retry.Retry(ctx, r.retry, func(ctx context.Context) error {
		return r.client.Set(ctx, r.streamKey(stream.ID), data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to update stream in Redis: %w", err)
	}
	return r.updateIndexes(ctx, stream)
}

func (r *RedisStreamRepository) Delete(ctx context.Context, id domain.StreamID) error {
	stream, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.liveStreamsKey(), string(id))
		if stream.Channel != "" {
			pipe.HDel(ctx, r.channelIndexKey(), stream.Channel)
		}
		pipe.Del(ctx, r.streamKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete stream from Redis: %w", err)
	}
	return nil
}

func (r *RedisStreamRepository) ListLive(ctx context.Context) ([]*domain.LiveStream, error) {
	ids, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]string, error) {
		return r.client.SMembers(ctx, r.liveStreamsKey()).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get live streams from Redis: %w", err)
	}

	var streams []*domain.LiveStream
	for _, id := range ids {
		stream, err := r.GetByID(ctx, domain.StreamID(id))
		if err != nil {
			// Skip streams that no longer exist
			continue
		}
		if stream.IsLive {
			streams = append(streams, stream)
		}
	}
	sortStreams(streams)
	return streams, nil
}

// AdjustViewers updates the count under WATCH so concurrent joins are not lost.
func (r *RedisStreamRepository) AdjustViewers(ctx context.Context, id domain.StreamID, delta int) (int, error) {
	key := r.streamKey(id)
	var count int

	txf := func(tx *redis.Tx) error {
		stream, err := r.get(ctx, tx, id)
		if err != nil {
			return err
		}
		count = stream.AdjustViewers(delta)
		data, err := json.Marshal(stream)
		if err != nil {
			return fmt.Errorf("failed to marshal stream: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return count, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return 0, err
		}
	}
	return 0, fmt.Errorf("failed to adjust viewers for %s: too much contention", id)
}
