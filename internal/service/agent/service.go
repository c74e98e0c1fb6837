package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ashwinyue/next-agent/internal/service/agents"
	"github.com/ashwinyue/next-agent/internal/service/engine"
	"github.com/ashwinyue/next-agent/internal/service/telemetry"
)

// 保留的配置键
const (
	keyThreadID = "thread_id"
	keyModel    = "model"
)

// ErrRunFailed Agent 运行失败，细节只记录日志
var ErrRunFailed = errors.New("agent run failed")

// ErrMissingScore 反馈缺少 score
var ErrMissingScore = errors.New("feedback score is required")

// ErrHistory 读取历史失败
var ErrHistory = errors.New("failed to retrieve chat history")

// ReservedKeyError 请求中的自由配置覆盖了保留键
// Field 为出错的字段名，缺省为 agent_config
type ReservedKeyError struct {
	Field string
	Keys  []string
}

func (e *ReservedKeyError) Error() string {
	field := e.Field
	if field == "" {
		field = "agent_config"
	}
	return field + " contains reserved keys: " + strings.Join(e.Keys, ", ")
}

// 反馈中由请求体顶层字段承载的键
var feedbackReserved = []string{"run_id", "key", "score"}

// Registry Agent 注册表
type Registry interface {
	Get(key string) (engine.Agent, error)
	Infos() []agents.Info
	Default() string
}

// UserInput 调用请求
type UserInput struct {
	Message     string         `json:"message" binding:"required"`
	Model       string         `json:"model,omitempty"`
	ThreadID    string         `json:"thread_id,omitempty"`
	AgentConfig map[string]any `json:"agent_config,omitempty"`
}

// StreamInput 流式请求，stream_tokens 缺省为 true
type StreamInput struct {
	UserInput
	StreamTokens *bool `json:"stream_tokens,omitempty"`
}

// Tokens 是否输出 token 帧
func (in *StreamInput) Tokens() bool {
	return in.StreamTokens == nil || *in.StreamTokens
}

// FeedbackRequest 反馈请求
type FeedbackRequest struct {
	RunID  string         `json:"run_id" binding:"required"`
	Key    string         `json:"key" binding:"required"`
	Score  *float64       `json:"score" binding:"required"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// FeedbackResponse 反馈响应
type FeedbackResponse struct {
	Status string `json:"status"`
}

// HistoryRequest 历史请求
type HistoryRequest struct {
	ThreadID string `json:"thread_id" binding:"required"`
}

// ChatHistory 历史消息
type ChatHistory struct {
	Messages []*ChatMessage `json:"messages"`
}

// ServiceMetadata 服务元信息
type ServiceMetadata struct {
	Agents       []agents.Info `json:"agents"`
	Models       []string      `json:"models"`
	DefaultAgent string        `json:"default_agent"`
	DefaultModel string        `json:"default_model"`
}

// Config 服务配置
type Config struct {
	DefaultModel    string
	AvailableModels []string
}

// NewFrameCounter 注册按帧类型计数的流式输出指标
func NewFrameCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	return promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "agent_stream_frames_total",
		Help: "Number of SSE frames sent to clients by frame type.",
	}, []string{"type"})
}

// Service Agent 服务
type Service struct {
	registry  Registry
	telemetry telemetry.Client
	cfg       Config
	frames    *prometheus.CounterVec
}

// NewService 创建 Agent 服务
// frames 可为 nil
func NewService(registry Registry, tc telemetry.Client, cfg Config, frames *prometheus.CounterVec) *Service {
	return &Service{registry: registry, telemetry: tc, cfg: cfg, frames: frames}
}

// Info 服务元信息
func (s *Service) Info() *ServiceMetadata {
	models := append([]string(nil), s.cfg.AvailableModels...)
	sort.Strings(models)
	return &ServiceMetadata{
		Agents:       s.registry.Infos(),
		Models:       models,
		DefaultAgent: s.registry.Default(),
		DefaultModel: s.cfg.DefaultModel,
	}
}

// parseInput 构建引擎输入和运行配置
func (s *Service) parseInput(in *UserInput) (*engine.Input, *engine.RunConfig, error) {
	cfg := &engine.RunConfig{
		RunID:    uuid.New().String(),
		ThreadID: in.ThreadID,
		Model:    in.Model,
	}
	if cfg.ThreadID == "" {
		cfg.ThreadID = uuid.New().String()
	}
	if cfg.Model == "" {
		cfg.Model = s.cfg.DefaultModel
	}

	configurable := map[string]any{keyThreadID: cfg.ThreadID, keyModel: cfg.Model}
	var reserved []string
	for k, v := range in.AgentConfig {
		if _, ok := configurable[k]; ok {
			reserved = append(reserved, k)
			continue
		}
		configurable[k] = v
	}
	if len(reserved) > 0 {
		sort.Strings(reserved)
		return nil, nil, &ReservedKeyError{Field: "agent_config", Keys: reserved}
	}
	cfg.Configurable = configurable

	return &engine.Input{Messages: []*schema.Message{schema.UserMessage(in.Message)}}, cfg, nil
}

func (s *Service) agent(id string) (engine.Agent, error) {
	if id == "" {
		id = s.registry.Default()
	}
	return s.registry.Get(id)
}

// Invoke 同步调用，返回最后一条消息
func (s *Service) Invoke(ctx context.Context, agentID string, in *UserInput) (*ChatMessage, error) {
	a, err := s.agent(agentID)
	if err != nil {
		return nil, err
	}
	input, cfg, err := s.parseInput(in)
	if err != nil {
		return nil, err
	}

	state, err := a.Invoke(ctx, input, cfg)
	if err != nil {
		log.Printf("Agent invoke failed: run_id=%s error=%v", cfg.RunID, err)
		return nil, ErrRunFailed
	}

	out, err := Normalize(state.LastMessage())
	if err != nil {
		log.Printf("Failed to normalize agent output: run_id=%s error=%v", cfg.RunID, err)
		return nil, ErrRunFailed
	}
	out.RunID = cfg.RunID
	return out, nil
}

// Stream 流式调用
// 找不到 Agent 或输入非法时在开始前返回错误；之后的错误以 error 帧输出，流总以 DoneFrame 结束
// ctx 结束时停止输出并取消 Agent 运行
func (s *Service) Stream(ctx context.Context, agentID string, in *StreamInput) (<-chan Frame, error) {
	a, err := s.agent(agentID)
	if err != nil {
		return nil, err
	}
	input, cfg, err := s.parseInput(&in.UserInput)
	if err != nil {
		return nil, err
	}

	out := make(chan Frame)
	go func() {
		defer close(out)

		sr := a.Events(ctx, input, cfg)
		defer sr.Close()

		p := &producer{ctx: ctx, out: out, frames: s.frames, runID: cfg.RunID, input: in.Message, tokens: in.Tokens()}
		for {
			ev, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Printf("Agent stream failed: run_id=%s error=%v", cfg.RunID, err)
				p.send(ErrorFrame("Unexpected error"))
				break
			}
			if !p.handle(ev) {
				return
			}
		}
		p.send(DoneFrame)
	}()

	return out, nil
}

// producer 将引擎事件转换为帧
type producer struct {
	ctx    context.Context
	out    chan<- Frame
	frames *prometheus.CounterVec
	runID  string
	input  string
	tokens bool
}

// send 输出一帧，ctx 结束时返回 false
func (p *producer) send(f Frame) bool {
	// ctx 已结束时不再输出
	if p.ctx.Err() != nil {
		return false
	}
	select {
	case p.out <- f:
		if p.frames != nil {
			label := string(f.Type)
			if f.IsDone() {
				label = "done"
			}
			p.frames.WithLabelValues(label).Inc()
		}
		return true
	case <-p.ctx.Done():
		return false
	}
}

// handle 处理一个事件，消费方离开时返回 false
func (p *producer) handle(ev *engine.Event) bool {
	var msgs []*schema.Message
	switch ev.Kind {
	case engine.KindStepEnd:
		msgs = ev.StepMessages()
	case engine.KindCustom:
		if ev.Tags.Has(engine.TagCustomDispatch) && ev.Custom != nil {
			msgs = []*schema.Message{ev.Custom}
		}
	case engine.KindTokenDelta:
		if !p.tokens || ev.Tags.Has(engine.TagSafety) || ev.Chunk == nil {
			return true
		}
		if text := TextContent(ev.Chunk); text != "" {
			return p.send(tokenFrame(text))
		}
		return true
	default:
		return true
	}

	for _, m := range msgs {
		cm, err := Normalize(m)
		if err != nil {
			log.Printf("Error parsing message: run_id=%s error=%v", p.runID, err)
			if !p.send(ErrorFrame("Unexpected error")) {
				return false
			}
			continue
		}
		if cm.Type == TypeHuman && cm.Content == p.input {
			continue
		}
		cm.RunID = p.runID
		if !p.send(messageFrame(cm)) {
			return false
		}
	}
	return true
}

// Feedback 上报反馈
// score 必须由调用方给出；kwargs 不得包含 run_id/key/score
func (s *Service) Feedback(ctx context.Context, req *FeedbackRequest) (*FeedbackResponse, error) {
	if req.Score == nil {
		return nil, ErrMissingScore
	}
	var reserved []string
	for _, k := range feedbackReserved {
		if _, ok := req.Kwargs[k]; ok {
			reserved = append(reserved, k)
		}
	}
	if len(reserved) > 0 {
		sort.Strings(reserved)
		return nil, &ReservedKeyError{Field: "kwargs", Keys: reserved}
	}

	err := s.telemetry.CreateFeedback(ctx, &telemetry.Feedback{
		RunID:  req.RunID,
		Key:    req.Key,
		Score:  *req.Score,
		Kwargs: req.Kwargs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback: %w", err)
	}
	return &FeedbackResponse{Status: "success"}, nil
}

// History 默认 Agent 的线程历史
func (s *Service) History(ctx context.Context, req *HistoryRequest) (*ChatHistory, error) {
	a, err := s.agent("")
	if err != nil {
		log.Printf("Failed to get default agent: %v", err)
		return nil, ErrHistory
	}

	state, err := a.GetState(ctx, &engine.RunConfig{ThreadID: req.ThreadID})
	if err != nil {
		log.Printf("Failed to load thread %s: %v", req.ThreadID, err)
		return nil, ErrHistory
	}

	history := &ChatHistory{Messages: make([]*ChatMessage, 0, len(state.Messages))}
	for _, m := range state.Messages {
		cm, err := Normalize(m)
		if err != nil {
			log.Printf("Failed to normalize history of thread %s: %v", req.ThreadID, err)
			return nil, ErrHistory
		}
		history.Messages = append(history.Messages, cm)
	}
	return history, nil
}
