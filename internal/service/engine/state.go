package engine

import (
	"context"

	"github.com/cloudwego/eino/schema"
)

// State 会话线程状态
type State struct {
	ThreadID string            `json:"thread_id"`
	Messages []*schema.Message `json:"messages"`
	Context  map[string]any    `json:"context,omitempty"`

	next string
}

// LastMessage 最后一条消息
func (s *State) LastMessage() *schema.Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// Update 节点对状态的增量修改
type Update struct {
	Messages []*schema.Message
	Context  map[string]any
	// Goto 非空时节点结束事件以 Command 形式发出，并作为分支路由目标
	Goto string
	// Streamed 表示节点已自行逐条发出结束事件
	Streamed bool
}

func (s *State) apply(u *Update) {
	s.Messages = append(s.Messages, u.Messages...)
	if len(u.Context) > 0 {
		if s.Context == nil {
			s.Context = make(map[string]any, len(u.Context))
		}
		for k, v := range u.Context {
			s.Context[k] = v
		}
	}
	s.next = u.Goto
}

// Input 引擎输入
type Input struct {
	Messages []*schema.Message
}

// RunConfig 单次运行配置
type RunConfig struct {
	ThreadID     string
	RunID        string
	Model        string
	Configurable map[string]any
}

type runConfigKey struct{}

// WithRunConfig 将运行配置放入 context
func WithRunConfig(ctx context.Context, cfg *RunConfig) context.Context {
	return context.WithValue(ctx, runConfigKey{}, cfg)
}

// RunConfigFrom 从 context 读取运行配置
func RunConfigFrom(ctx context.Context) *RunConfig {
	if cfg, ok := ctx.Value(runConfigKey{}).(*RunConfig); ok {
		return cfg
	}
	return &RunConfig{}
}
