// Package telemetry 将运行反馈上报到外部追踪服务
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ashwinyue/next-agent/internal/config"
)

// ErrReservedField kwargs 与请求体顶层字段冲突
var ErrReservedField = errors.New("kwargs contains a reserved field")

// Feedback 一条运行反馈
type Feedback struct {
	RunID  string
	Key    string
	Score  float64
	Kwargs map[string]any
}

// Client 反馈上报客户端
type Client interface {
	CreateFeedback(ctx context.Context, fb *Feedback) error
}

// New 按配置创建客户端，未配置 Endpoint 时只记录日志
func New(cfg config.TelemetryConfig) Client {
	if cfg.Endpoint == "" {
		return LogClient{}
	}
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewLangSmithClient(cfg.Endpoint, cfg.APIKey, &http.Client{Timeout: timeout})
}

// LogClient 只记录日志的客户端
type LogClient struct{}

// CreateFeedback 记录反馈
func (LogClient) CreateFeedback(_ context.Context, fb *Feedback) error {
	log.Printf("Feedback received: run_id=%s key=%s score=%v", fb.RunID, fb.Key, fb.Score)
	return nil
}

// LangSmithClient LangSmith 兼容的 HTTP 反馈接口
type LangSmithClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewLangSmithClient 创建 HTTP 客户端
func NewLangSmithClient(endpoint, apiKey string, hc *http.Client) *LangSmithClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &LangSmithClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     hc,
	}
}

// CreateFeedback POST {endpoint}/api/v1/feedback
// kwargs 与 run_id/key/score 合并为同一请求体，kwargs 含有这三个键时返回 ErrReservedField
func (c *LangSmithClient) CreateFeedback(ctx context.Context, fb *Feedback) error {
	body := make(map[string]any, len(fb.Kwargs)+3)
	for k, v := range fb.Kwargs {
		switch k {
		case "run_id", "key", "score":
			return fmt.Errorf("%w: %s", ErrReservedField, k)
		}
		body[k] = v
	}
	body["run_id"] = fb.RunID
	body["key"] = fb.Key
	body["score"] = fb.Score

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v1/feedback", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send feedback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("feedback rejected: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
