package model

import "time"

// AgentCheckpoint 会话线程状态快照
// 每个 thread 一行，Data 为序列化后的线程状态
type AgentCheckpoint struct {
	ThreadID  string    `gorm:"primaryKey;size:255" json:"thread_id"`
	Data      []byte    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (AgentCheckpoint) TableName() string {
	return "agent_checkpoints"
}
