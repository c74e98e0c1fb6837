package agents

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

func newChatbot(deps Deps) *engine.Graph {
	return engine.NewGraph("chatbot").
		AddNode("model", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			m, err := chatModel(ctx, deps)
			if err != nil {
				return nil, err
			}
			msg, err := engine.StreamModel(ctx, "model", m, s.Messages, nil)
			if err != nil {
				return nil, err
			}
			return &engine.Update{Messages: []*schema.Message{msg}}, nil
		}).
		AddEdge(engine.Start, "model").
		AddEdge("model", engine.End)
}
