package checkpoint

import (
	"context"
	"errors"

	"github.com/ashwinyue/next-agent/internal/repository"
)

// PostgresStore 基于 gorm 的关系库存储
type PostgresStore struct {
	repo repository.CheckpointStore
}

// NewPostgresStore 创建关系库存储
func NewPostgresStore(repo repository.CheckpointStore) *PostgresStore {
	return &PostgresStore{repo: repo}
}

// Get 读取
func (s *PostgresStore) Get(ctx context.Context, id string) ([]byte, bool, error) {
	cp, err := s.repo.GetCheckpoint(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cp.Data, true, nil
}

// Set 写入
func (s *PostgresStore) Set(ctx context.Context, id string, data []byte) error {
	return s.repo.SaveCheckpoint(ctx, id, data)
}
