package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"signupd/internal/platform/redis"
	"signupd/pkg/platform/sentinel"
)

// snapshotTTL bounds how long an abandoned registration lingers in Redis.
const snapshotTTL = 24 * time.Hour

// RedisStore keeps snapshots in Redis so resume works across gateway
// instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get snapshot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del snapshot: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) key(key string) string {
	return "signupd:snapshot:" + key
}
