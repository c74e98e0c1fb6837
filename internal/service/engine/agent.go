package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Agent 可执行的会话 Agent
type Agent interface {
	// Invoke 同步运行到结束，返回最终线程状态
	Invoke(ctx context.Context, in *Input, cfg *RunConfig) (*State, error)
	// Events 异步运行并返回事件流
	// 运行失败时流以错误结束；调用方关闭流会取消运行
	Events(ctx context.Context, in *Input, cfg *RunConfig) *schema.StreamReader[*Event]
	// GetState 读取线程当前状态
	GetState(ctx context.Context, cfg *RunConfig) (*State, error)
}

// Store 线程状态存储，方法签名与 compose.CheckPointStore 一致
type Store interface {
	Get(ctx context.Context, checkPointID string) ([]byte, bool, error)
	Set(ctx context.Context, checkPointID string, checkPoint []byte) error
}

// GraphAgent 以状态图实现的 Agent
type GraphAgent struct {
	name     string
	runnable compose.Runnable[*State, *State]
	store    Store
}

var _ Agent = (*GraphAgent)(nil)

// NewGraphAgent 编译状态图并创建 Agent
func NewGraphAgent(ctx context.Context, g *Graph, store Store) (*GraphAgent, error) {
	r, err := g.Compile(ctx)
	if err != nil {
		return nil, err
	}
	return &GraphAgent{name: g.name, runnable: r, store: store}, nil
}

// Name Agent 名称
func (a *GraphAgent) Name() string {
	return a.name
}

// Invoke 同步运行
func (a *GraphAgent) Invoke(ctx context.Context, in *Input, cfg *RunConfig) (*State, error) {
	return a.run(ctx, in, cfg)
}

// Events 异步运行并返回事件流
func (a *GraphAgent) Events(ctx context.Context, in *Input, cfg *RunConfig) *schema.StreamReader[*Event] {
	sr, sw := schema.Pipe[*Event](0)

	runCtx, cancel := context.WithCancel(ctx)
	runCtx = withEmitter(runCtx, &emitter{sw: sw, cancel: cancel})

	go func() {
		defer sw.Close()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				sw.Send(nil, fmt.Errorf("agent %s panicked: %v", a.name, r))
			}
		}()

		if _, err := a.run(runCtx, in, cfg); err != nil {
			sw.Send(nil, err)
		}
	}()

	return sr
}

// GetState 读取线程状态，线程不存在时返回空状态
func (a *GraphAgent) GetState(ctx context.Context, cfg *RunConfig) (*State, error) {
	return a.load(ctx, cfg.ThreadID)
}

func (a *GraphAgent) run(ctx context.Context, in *Input, cfg *RunConfig) (*State, error) {
	state, err := a.load(ctx, cfg.ThreadID)
	if err != nil {
		return nil, err
	}

	ctx = WithRunConfig(ctx, cfg)

	// 输入消息作为第 0 步发出
	state.Messages = append(state.Messages, in.Messages...)
	EmitStep(ctx, Start, in.Messages)

	out, err := a.runnable.Invoke(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("agent %s run failed: %w", a.name, err)
	}

	if err := a.save(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *GraphAgent) load(ctx context.Context, threadID string) (*State, error) {
	state := &State{ThreadID: threadID}
	if threadID == "" {
		return state, nil
	}

	data, ok, err := a.store.Get(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}
	if !ok {
		return state, nil
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode thread %s: %w", threadID, err)
	}
	return state, nil
}

func (a *GraphAgent) save(ctx context.Context, state *State) error {
	if state.ThreadID == "" {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode thread %s: %w", state.ThreadID, err)
	}
	if err := a.store.Set(ctx, state.ThreadID, data); err != nil {
		return fmt.Errorf("failed to save thread %s: %w", state.ThreadID, err)
	}
	return nil
}
