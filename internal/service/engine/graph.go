package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
)

// 图的起止节点
const (
	Start = compose.START
	End   = compose.END
)

// NodeFunc 节点函数，返回对线程状态的增量修改
type NodeFunc func(ctx context.Context, s *State) (*Update, error)

// Graph 基于 eino compose.Graph 的状态图构建器
// 构建过程中的第一个错误会保留到 Compile 时返回
type Graph struct {
	name string
	g    *compose.Graph[*State, *State]
	err  error
}

// NewGraph 创建状态图
func NewGraph(name string) *Graph {
	return &Graph{
		name: name,
		g:    compose.NewGraph[*State, *State](),
	}
}

// AddNode 添加节点
func (b *Graph) AddNode(name string, fn NodeFunc) *Graph {
	if b.err != nil {
		return b
	}
	b.err = b.g.AddLambdaNode(name, compose.InvokableLambda(wrapNode(name, fn)), compose.WithNodeName(name))
	return b
}

// AddEdge 添加边
func (b *Graph) AddEdge(from, to string) *Graph {
	if b.err != nil {
		return b
	}
	b.err = b.g.AddEdge(from, to)
	return b
}

// AddRoute 按节点返回的 Update.Goto 路由到 targets 之一
func (b *Graph) AddRoute(from string, targets ...string) *Graph {
	if b.err != nil {
		return b
	}

	ends := make(map[string]bool, len(targets))
	for _, t := range targets {
		ends[t] = true
	}

	condition := func(_ context.Context, s *State) (string, error) {
		if !ends[s.next] {
			return "", fmt.Errorf("node %s: unknown route %q", from, s.next)
		}
		return s.next, nil
	}

	b.err = b.g.AddBranch(from, compose.NewGraphBranch(condition, ends))
	return b
}

// Compile 编译为可执行图
func (b *Graph) Compile(ctx context.Context) (compose.Runnable[*State, *State], error) {
	if b.err != nil {
		return nil, fmt.Errorf("failed to build graph %s: %w", b.name, b.err)
	}

	r, err := b.g.Compile(ctx, compose.WithGraphName(b.name))
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph %s: %w", b.name, err)
	}
	return r, nil
}

func wrapNode(name string, fn NodeFunc) func(ctx context.Context, s *State) (*State, error) {
	return func(ctx context.Context, s *State) (*State, error) {
		u, err := fn(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", name, err)
		}
		if u == nil {
			u = &Update{}
		}

		s.apply(u)
		if !u.Streamed {
			Emit(ctx, stepEvent(name, u))
		}
		return s, nil
	}
}
