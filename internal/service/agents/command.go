package agents

import (
	"context"
	"math/rand/v2"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

// pickBranch command-agent 的分支选择，测试中可替换
var pickBranch = func() string {
	if rand.IntN(2) == 0 {
		return "a"
	}
	return "b"
}

// newCommandAgent 首个节点以 Command 形式同时更新状态并跳转
func newCommandAgent(_ Deps) *engine.Graph {
	hello := func(content string) engine.NodeFunc {
		return func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			return &engine.Update{Messages: []*schema.Message{schema.AssistantMessage(content, nil)}}, nil
		}
	}

	return engine.NewGraph("command-agent").
		AddNode("node_a", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			value := pickBranch()
			next := "node_b"
			if value == "b" {
				next = "node_c"
			}
			return &engine.Update{
				Messages: []*schema.Message{schema.AssistantMessage("Hello "+value, nil)},
				Goto:     next,
			}, nil
		}).
		AddNode("node_b", hello("Hello B")).
		AddNode("node_c", hello("Hello C")).
		AddEdge(engine.Start, "node_a").
		AddRoute("node_a", "node_b", "node_c").
		AddEdge("node_b", engine.End).
		AddEdge("node_c", engine.End)
}
