package agents

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"

	"github.com/ashwinyue/next-agent/internal/service/engine"
	"github.com/ashwinyue/next-agent/internal/service/tools"
)

// reactNode 以 ADK ChatModelAgent 运行工具调用循环的节点
// 模型和工具的每条消息各自发出结束事件
func reactNode(deps Deps, name, description, instruction string, toolset []tool.BaseTool) engine.NodeFunc {
	return func(ctx context.Context, s *engine.State) (*engine.Update, error) {
		m, err := chatModel(ctx, deps)
		if err != nil {
			return nil, err
		}

		maxIter := deps.Agent.MaxIterations
		if maxIter <= 0 {
			maxIter = 10
		}

		cfg := &adk.ChatModelAgentConfig{
			Name:          name,
			Description:   description,
			Instruction:   instruction,
			Model:         m,
			MaxIterations: maxIter,
		}
		if len(toolset) > 0 {
			cfg.ToolsConfig = adk.ToolsConfig{
				ToolsNodeConfig: compose.ToolsNodeConfig{
					Tools:               toolset,
					ToolCallMiddlewares: tools.Middlewares(),
				},
			}
		}

		agent, err := adk.NewChatModelAgent(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create agent %s: %w", name, err)
		}

		msgs, err := engine.RunADKAgent(ctx, agent, s.Messages)
		if err != nil {
			return nil, err
		}
		return &engine.Update{Messages: msgs, Streamed: true}, nil
	}
}

func newReactAgent(deps Deps) *engine.Graph {
	var toolset []tool.BaseTool
	if calc, err := tools.NewCalculatorTool(); err != nil {
		log.Printf("Warning: failed to create calculator tool: %v", err)
	} else {
		toolset = append(toolset, calc)
	}
	if weather, err := tools.NewWeatherTool(); err != nil {
		log.Printf("Warning: failed to create weather tool: %v", err)
	} else {
		toolset = append(toolset, weather)
	}

	return engine.NewGraph("react-agent").
		AddNode("agent", reactNode(deps, "react_agent", "ReAct agent with calculator and weather tools",
			"You are a helpful assistant. Reason step by step and use the available tools when they help.", toolset)).
		AddEdge(engine.Start, "agent").
		AddEdge("agent", engine.End)
}
