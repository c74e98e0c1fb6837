// Package agents 注册可调用的 Agent
package agents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/config"
	"github.com/ashwinyue/next-agent/internal/service/engine"
)

// DefaultAgent 默认 Agent
const DefaultAgent = "research-assistant"

// ErrAgentNotFound Agent 不存在
var ErrAgentNotFound = errors.New("agent not found")

// ModelResolver 按名称获取模型
type ModelResolver interface {
	ChatModel(ctx context.Context, name string) (model.ToolCallingChatModel, error)
}

// Retriever 知识库检索
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]*schema.Document, error)
}

// Deps 构建 Agent 所需的依赖
type Deps struct {
	Models ModelResolver
	Store  engine.Store
	Agent  config.AgentConfig
	// ResearchTools 研究助手的工具集
	ResearchTools []tool.BaseTool
	// Knowledge 为 nil 时不注册 admission-agent
	Knowledge   Retriever
	BaseContext string
	// TaskStepDelay bg-task-agent 各步之间的间隔
	TaskStepDelay time.Duration
}

// Info Agent 描述
type Info struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

type entry struct {
	description string
	agent       engine.Agent
}

// Registry Agent 注册表
type Registry struct {
	agents       map[string]*entry
	defaultAgent string
}

// NewRegistry 构建全部 Agent
func NewRegistry(ctx context.Context, deps Deps) (*Registry, error) {
	r := &Registry{
		agents:       make(map[string]*entry),
		defaultAgent: DefaultAgent,
	}
	if deps.Agent.DefaultAgent != "" {
		r.defaultAgent = deps.Agent.DefaultAgent
	}

	builders := []struct {
		key, description string
		build            func(deps Deps) *engine.Graph
	}{
		{"chatbot", "A simple chatbot.", newChatbot},
		{"research-assistant", "A research assistant with web search and calculator.", newResearchAssistant},
		{"react-agent", "A ReAct framework agent with step-by-step reasoning.", newReactAgent},
		{"command-agent", "A command agent.", newCommandAgent},
		{"bg-task-agent", "A background task agent.", newBgTaskAgent},
	}
	if deps.Knowledge != nil {
		builders = append(builders, struct {
			key, description string
			build            func(deps Deps) *engine.Graph
		}{"admission-agent", "An admission counselling assistant answering from the uploaded knowledge base.", newAdmissionAgent})
	}

	for _, b := range builders {
		a, err := engine.NewGraphAgent(ctx, b.build(deps), deps.Store)
		if err != nil {
			return nil, fmt.Errorf("failed to build agent %s: %w", b.key, err)
		}
		r.Register(b.key, b.description, a)
	}

	if _, ok := r.agents[r.defaultAgent]; !ok {
		return nil, fmt.Errorf("default agent %q is not registered", r.defaultAgent)
	}
	return r, nil
}

// Register 注册或替换 Agent
func (r *Registry) Register(key, description string, a engine.Agent) {
	r.agents[key] = &entry{description: description, agent: a}
}

// Get 获取 Agent
func (r *Registry) Get(key string) (engine.Agent, error) {
	e, ok := r.agents[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, key)
	}
	return e.agent, nil
}

// Infos 按 key 排序的 Agent 列表
func (r *Registry) Infos() []Info {
	infos := make([]Info, 0, len(r.agents))
	for key, e := range r.agents {
		infos = append(infos, Info{Key: key, Description: e.description})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos
}

// Default 默认 Agent 的 key
func (r *Registry) Default() string {
	return r.defaultAgent
}

// chatModel 取本次运行指定的模型，未指定时用默认模型
func chatModel(ctx context.Context, deps Deps) (model.ToolCallingChatModel, error) {
	name := engine.RunConfigFrom(ctx).Model
	if name == "" {
		name = deps.Agent.DefaultModel
	}
	m, err := deps.Models.ChatModel(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve model %s: %w", name, err)
	}
	return m, nil
}
