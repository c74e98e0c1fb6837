package repository

import (
	"context"

	"github.com/ashwinyue/next-agent/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckpointRepository 线程状态快照数据访问
type CheckpointRepository struct {
	db *gorm.DB
}

// NewCheckpointRepository 创建快照仓库
func NewCheckpointRepository(db *gorm.DB) *CheckpointRepository {
	return &CheckpointRepository{db: db}
}

// GetCheckpoint 获取线程快照
func (r *CheckpointRepository) GetCheckpoint(ctx context.Context, threadID string) (*model.AgentCheckpoint, error) {
	var cp model.AgentCheckpoint
	err := r.db.WithContext(ctx).Where("thread_id = ?", threadID).First(&cp).Error
	if err != nil {
		return nil, translate(err)
	}
	return &cp, nil
}

// SaveCheckpoint 写入或覆盖线程快照
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, threadID string, data []byte) error {
	cp := &model.AgentCheckpoint{ThreadID: threadID, Data: data}
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "thread_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(cp).Error)
}

// DeleteCheckpoint 删除线程快照
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, threadID string) error {
	return translate(r.db.WithContext(ctx).Where("thread_id = ?", threadID).Delete(&model.AgentCheckpoint{}).Error)
}
