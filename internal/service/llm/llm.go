// Package llm 创建 eino 模型组件
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"

	"github.com/ashwinyue/next-agent/internal/config"
)

// Provider 按模型名创建并缓存 ChatModel
type Provider struct {
	cfg config.AIConfig

	mu     sync.Mutex
	models map[string]model.ToolCallingChatModel
}

// NewProvider 创建模型提供者
func NewProvider(cfg config.AIConfig) *Provider {
	return &Provider{
		cfg:    cfg,
		models: make(map[string]model.ToolCallingChatModel),
	}
}

// ChatModel 获取指定名称的模型
func (p *Provider) ChatModel(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.models[name]; ok {
		return m, nil
	}

	m, err := p.newChatModel(ctx, name)
	if err != nil {
		return nil, err
	}
	p.models[name] = m
	return m, nil
}

// newChatModel 创建支持工具调用的 ChatModel
// deepseek 开头的模型走 DeepSeek 接口，其余走 OpenAI 兼容接口
func (p *Provider) newChatModel(ctx context.Context, name string) (model.ToolCallingChatModel, error) {
	apiKey, baseURL, timeout := p.cfg.OpenAI.APIKey, p.cfg.OpenAI.BaseURL, p.cfg.OpenAI.Timeout
	if strings.HasPrefix(name, "deepseek") || p.cfg.Provider == "deepseek" {
		apiKey, baseURL, timeout = p.cfg.DeepSeek.APIKey, p.cfg.DeepSeek.BaseURL, p.cfg.DeepSeek.Timeout
	}

	if apiKey == "" {
		return nil, fmt.Errorf("api_key is required for model: %s", name)
	}

	modelCfg := &openai.ChatModelConfig{
		APIKey:  apiKey,
		BaseURL: baseURL,
		Model:   name,
	}
	if timeout > 0 {
		modelCfg.Timeout = time.Duration(timeout) * time.Second
	}

	m, err := openai.NewChatModel(ctx, modelCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model %s: %w", name, err)
	}
	return m, nil
}

// NewEmbedder 创建 DashScope Embedding 器
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding api_key is empty")
	}

	embCfg := &dashscope.EmbeddingConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}
	if cfg.Timeout > 0 {
		embCfg.Timeout = time.Duration(cfg.Timeout) * time.Second
	}
	if cfg.Dimensions > 0 {
		dims := cfg.Dimensions
		embCfg.Dimensions = &dims
	}

	embedder, err := dashscope.NewEmbedder(ctx, embCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}
