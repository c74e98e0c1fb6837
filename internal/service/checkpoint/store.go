// Package checkpoint 提供会话线程状态的存储实现
// 所有实现都满足 compose.CheckPointStore 接口
package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/compose"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-agent/internal/config"
	"github.com/ashwinyue/next-agent/internal/repository"
)

var (
	_ compose.CheckPointStore = (*MemoryStore)(nil)
	_ compose.CheckPointStore = (*RedisStore)(nil)
	_ compose.CheckPointStore = (*PostgresStore)(nil)
)

// New 按配置创建存储
func New(cfg config.CheckpointConfig, db *gorm.DB, redisClient redis.UniversalClient) (compose.CheckPointStore, error) {
	switch cfg.Driver {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("checkpoint driver postgres requires a database")
		}
		return NewPostgresStore(repository.NewCheckpointRepository(db)), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("checkpoint driver redis requires a redis client")
		}
		return NewRedisStore(redisClient, cfg.TTLDuration()), nil
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported checkpoint driver: %s", cfg.Driver)
	}
}

// MemoryStore 进程内存储，重启后丢失
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get 读取
func (m *MemoryStore) Get(_ context.Context, id string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.data[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Set 写入
func (m *MemoryStore) Set(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[id] = append([]byte(nil), data...)
	return nil
}
