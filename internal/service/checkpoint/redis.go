package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key 前缀
const keyPrefix = "agent:thread:"

// RedisStore Redis 存储
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 存储，ttl 为 0 表示不过期
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Get 读取
func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get thread from redis: %w", err)
	}
	return data, true, nil
}

// Set 写入，每次写入刷新过期时间
func (s *RedisStore) Set(ctx context.Context, id string, data []byte) error {
	if err := s.client.Set(ctx, keyPrefix+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save thread to redis: %w", err)
	}
	return nil
}
