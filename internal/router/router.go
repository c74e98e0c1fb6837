package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ashwinyue/next-agent/internal/handler"
	"github.com/ashwinyue/next-agent/internal/middleware"
)

// Options 路由依赖
type Options struct {
	Verifier    middleware.TokenVerifier
	Metrics     *prometheus.Registry
	CORSOrigins []string
}

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.Recovery())
	r.Use(middleware.Logging())
	r.Use(middleware.CORS(opts.CORSOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.NewHTTPMetrics(opts.Metrics).Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Metrics, promhttp.HandlerOpts{})))
	}

	// 健康检查
	r.GET("/health", h.System.Health)

	requireAuth := middleware.RequireAuth(opts.Verifier)

	// API v1
	v1 := r.Group("/api/v1")
	{
		// Auth 认证
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.GET("/me", requireAuth, h.Auth.Me)
		}

		// Agent 智能体
		agent := v1.Group("/agent", requireAuth)
		{
			agent.GET("/info", h.Agent.Info)
			agent.POST("/invoke", h.Agent.Invoke)
			agent.POST("/:agent_id/invoke", h.Agent.Invoke)
			agent.POST("/stream", h.Agent.Stream)
			agent.POST("/:agent_id/stream", h.Agent.Stream)
			agent.POST("/feedback", h.Agent.Feedback)
			agent.POST("/history", h.Agent.History)
		}

		// Admission 招生知识库
		admission := v1.Group("/admission", requireAuth)
		{
			admission.POST("/upload-admission-data", h.Admission.Upload)
		}
	}

	return r
}
