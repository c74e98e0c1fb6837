package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一约束冲突
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories 仓库集合，用于统一管理所有仓库
type Repositories struct {
	DB         *gorm.DB // 直接访问数据库
	Auth       *AuthRepository
	Checkpoint *CheckpointRepository
}

// NewRepositories 创建所有仓库
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:         db,
		Auth:       NewAuthRepository(db),
		Checkpoint: NewCheckpointRepository(db),
	}
}

// translate 将 gorm 错误转换为仓库层错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
