// Package repository 定义数据访问接口
// 接口抽象使依赖注入和单元测试成为可能
package repository

import (
	"context"

	"github.com/ashwinyue/next-agent/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

// CheckpointStore 线程状态快照数据访问接口
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, threadID string) (*model.AgentCheckpoint, error)
	SaveCheckpoint(ctx context.Context, threadID string, data []byte) error
	DeleteCheckpoint(ctx context.Context, threadID string) error
}

var (
	_ UserRepository  = (*AuthRepository)(nil)
	_ CheckpointStore = (*CheckpointRepository)(nil)
)
