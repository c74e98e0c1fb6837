package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
)

// 工具调用循环中各步的节点名
const (
	NodeModel = "model"
	NodeTools = "tools"
)

// RunADKAgent 运行 eino ADK Agent（工具调用循环）
// 每条模型或工具消息都作为一个结束事件发出，模型输出同时逐片发出增量事件
func RunADKAgent(ctx context.Context, agent adk.Agent, input []*schema.Message, tags ...string) ([]*schema.Message, error) {
	iter := agent.Run(ctx, &adk.AgentInput{
		Messages:        input,
		EnableStreaming: true,
	})

	var produced []*schema.Message
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}

		if event.Err != nil {
			if errors.Is(event.Err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("agent event error: %w", event.Err)
		}

		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}

		mv := event.Output.MessageOutput
		node := NodeModel
		if mv.Role == schema.Tool {
			node = NodeTools
		}

		var msg *schema.Message
		if mv.IsStreaming && mv.MessageStream != nil {
			var err error
			msg, err = drain(ctx, node, mv.MessageStream, mv.Role == schema.Assistant, tags)
			if err != nil {
				return nil, err
			}
		} else {
			msg = mv.Message
		}
		if msg == nil {
			continue
		}

		if mv.Role == schema.Tool && msg.ToolName == "" {
			msg.ToolName = mv.ToolName
		}

		EmitStep(ctx, node, []*schema.Message{msg})
		produced = append(produced, msg)

		if event.Action != nil && event.Action.Exit {
			break
		}
	}

	return produced, nil
}
