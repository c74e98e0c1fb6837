package service

import (
	"context"
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/ashwinyue/next-agent/internal/config"
	"github.com/ashwinyue/next-agent/internal/repository"
	"github.com/ashwinyue/next-agent/internal/service/agent"
	"github.com/ashwinyue/next-agent/internal/service/agents"
	"github.com/ashwinyue/next-agent/internal/service/auth"
	"github.com/ashwinyue/next-agent/internal/service/callback"
	"github.com/ashwinyue/next-agent/internal/service/checkpoint"
	"github.com/ashwinyue/next-agent/internal/service/knowledge"
	"github.com/ashwinyue/next-agent/internal/service/llm"
	"github.com/ashwinyue/next-agent/internal/service/telemetry"
	"github.com/ashwinyue/next-agent/internal/service/tools"
)

// Services 服务集合
type Services struct {
	Config *config.Config

	Auth      *auth.Service
	Agent     *agent.Service
	Registry  *agents.Registry
	Knowledge *knowledge.Service // 未启用招生知识库时为 nil

	// Metrics 进程级 Prometheus 注册表
	Metrics *prometheus.Registry
}

// NewServices 创建所有服务
// redisClient 仅在 checkpoint 使用 redis 时需要，可为 nil
func NewServices(ctx context.Context, cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) (*Services, error) {
	repos := repository.NewRepositories(db)

	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	store, err := checkpoint.New(cfg.Checkpoint, db, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint store: %w", err)
	}
	log.Printf("Checkpoint store: %s", cfg.Checkpoint.Driver)

	var kb *knowledge.Service
	if cfg.Admission.Enabled {
		kb, err = newKnowledge(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	callback.Setup(cfg.App.Debug)

	deps := agents.Deps{
		Models:        llm.NewProvider(cfg.AI),
		Store:         store,
		Agent:         cfg.Agent,
		ResearchTools: tools.NewResearchTools(ctx),
		BaseContext:   cfg.Admission.BaseContext,
	}
	if kb != nil {
		deps.Knowledge = kb
	}
	log.Printf("Research tools: %v", tools.Names(ctx, deps.ResearchTools))

	registry, err := agents.NewRegistry(ctx, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to build agents: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	agentSvc := agent.NewService(
		registry,
		telemetry.New(cfg.Telemetry),
		agent.Config{DefaultModel: cfg.Agent.DefaultModel, AvailableModels: cfg.Agent.AvailableModels},
		agent.NewFrameCounter(metrics),
	)

	return &Services{
		Config:    cfg,
		Auth:      auth.NewService(repos.Auth, tokens),
		Agent:     agentSvc,
		Registry:  registry,
		Knowledge: kb,
		Metrics:   metrics,
	}, nil
}

// newKnowledge 创建招生知识库：Embedding、ES 向量存储与导入服务
func newKnowledge(ctx context.Context, cfg *config.Config) (*knowledge.Service, error) {
	embedder, err := llm.NewEmbedder(ctx, cfg.AI.Embedding)
	if err != nil {
		return nil, err
	}

	client, err := knowledge.NewESClient(cfg.Elastic)
	if err != nil {
		return nil, err
	}

	store, err := knowledge.NewESStore(ctx, client, cfg.Admission.Index, cfg.AI.Embedding.Dimensions, embedder)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureIndex(ctx); err != nil {
		log.Printf("Warning: failed to ensure index %s: %v", cfg.Admission.Index, err)
	}
	log.Printf("Admission knowledge base enabled: index=%s", cfg.Admission.Index)

	return knowledge.NewService(store, cfg.Admission), nil
}
