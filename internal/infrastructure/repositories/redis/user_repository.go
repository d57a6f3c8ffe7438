package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"locallive/internal/core/domain"
	"locallive/internal/core/ports"
	"locallive/pkg/retry"

	"github.com/redis/go-redis/v9"
)

type RedisUserRepository struct {
	client *redis.Client
	retry  retry.Config
}

// userRecord keeps the password hash, which domain.User hides from JSON.
type userRecord struct {
	domain.User
	PasswordHash []byte `json:"password_hash"`
}

func NewRedisUserRepository(client *redis.Client) ports.UserRepository {
	return &RedisUserRepository{client: client, retry: commandRetry()}
}

func userKey(id domain.UserID) string {
	return keyPrefix + "user:" + string(id)
}

func userEmailKey(email string) string {
	return keyPrefix + "user:email:" + strings.ToLower(email)
}

func (r *RedisUserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.Email != "" {
		claimed, err := r.client.SetNX(ctx, userEmailKey(user.Email), string(user.ID), 0).Result()
		if err != nil {
			return fmt.Errorf("failed to reserve email: %w", err)
		}
		if !claimed {
			return domain.ErrUserExists
		}
	}

	data, err := json.Marshal(userRecord{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	created, err := r.client.SetNX(ctx, userKey(user.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	if !created {
		return domain.ErrUserExists
	}
	return nil
}

func (r *RedisUserRepository) GetByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	data, err := retry.Do(ctx, r.retry, func(ctx context.Context) ([]byte, error) {
		return r.client.Get(ctx, userKey(id)).Bytes()
	})
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var rec userRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user: %w", err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func (r *RedisUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := retry.Do(ctx, r.retry, func(ctx context.Context) (string, error) {
		return r.client.Get(ctx, userEmailKey(email)).Result()
	})
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	return r.GetByID(ctx, domain.UserID(id))
}
