package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-agent/internal/service/agent"
	"github.com/ashwinyue/next-agent/internal/service/agents"
)

// AgentHandler Agent 处理器
type AgentHandler struct {
	svc *agent.Service
}

// NewAgentHandler 创建 Agent 处理器
func NewAgentHandler(svc *agent.Service) *AgentHandler {
	return &AgentHandler{svc: svc}
}

// Info 可用 Agent 与模型
// GET /api/v1/agent/info
func (h *AgentHandler) Info(c *gin.Context) {
	Success(c, h.svc.Info())
}

// Invoke 同步调用 Agent
// POST /api/v1/agent/invoke, /api/v1/agent/:agent_id/invoke
func (h *AgentHandler) Invoke(c *gin.Context) {
	var req agent.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	msg, err := h.svc.Invoke(c.Request.Context(), c.Param("agent_id"), &req)
	if err != nil {
		agentError(c, err)
		return
	}

	Success(c, msg)
}

// Stream 流式调用 Agent，以 SSE 输出
// POST /api/v1/agent/stream, /api/v1/agent/:agent_id/stream
func (h *AgentHandler) Stream(c *gin.Context) {
	var req agent.StreamInput
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	frames, err := h.svc.Stream(ctx, c.Param("agent_id"), &req)
	if err != nil {
		agentError(c, err)
		return
	}

	// 设置 SSE 响应头
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for frame := range frames {
		data, err := frame.Encode()
		if err != nil {
			log.Printf("Failed to encode stream frame: %v", err)
			data, _ = agent.ErrorFrame("Unexpected error").Encode()
		}
		if _, err := c.Writer.Write(data); err != nil {
			log.Printf("Stream client gone: %v", err)
			return
		}
		c.Writer.Flush()

		if ctx.Err() != nil {
			return
		}
	}
}

// Feedback 上报运行反馈
// POST /api/v1/agent/feedback
func (h *AgentHandler) Feedback(c *gin.Context) {
	var req agent.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	resp, err := h.svc.Feedback(c.Request.Context(), &req)
	if err != nil {
		var reserved *agent.ReservedKeyError
		if errors.As(err, &reserved) || errors.Is(err, agent.ErrMissingScore) {
			UnprocessableEntity(c, err.Error())
			return
		}
		log.Printf("Failed to record feedback for run %s: %v", req.RunID, err)
		InternalServerError(c, "Unexpected error")
		return
	}

	Success(c, resp)
}

// History 线程历史
// POST /api/v1/agent/history
func (h *AgentHandler) History(c *gin.Context) {
	var req agent.HistoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		UnprocessableEntity(c, err.Error())
		return
	}

	history, err := h.svc.History(c.Request.Context(), &req)
	if err != nil {
		InternalServerError(c, "Unexpected error while retrieving chat history")
		return
	}

	Success(c, history)
}

// agentError 将 Agent 服务错误映射为响应
func agentError(c *gin.Context, err error) {
	var reserved *agent.ReservedKeyError
	switch {
	case errors.Is(err, agents.ErrAgentNotFound):
		NotFound(c, "Agent not found")
	case errors.As(err, &reserved):
		UnprocessableEntity(c, reserved.Error())
	default:
		InternalServerError(c, "Unexpected error")
	}
}
