// Package agent 调用、流式输出、反馈与历史服务
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
	"github.com/ashwinyue/next-agent/internal/service/tools"
)

// 消息类型
const (
	TypeHuman  = "human"
	TypeAI     = "ai"
	TypeTool   = "tool"
	TypeCustom = "custom"
)

// ErrUnsupportedMessage 无法转换的消息角色
var ErrUnsupportedMessage = errors.New("unsupported message type")

// ToolCall 工具调用描述
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	ID   string         `json:"id"`
	Type string         `json:"type"`
}

// ChatMessage 返回给客户端的消息
type ChatMessage struct {
	Type             string         `json:"type"`
	Content          string         `json:"content"`
	ToolCalls        []ToolCall     `json:"tool_calls"`
	ToolCallID       string         `json:"tool_call_id,omitempty"`
	RunID            string         `json:"run_id,omitempty"`
	ResponseMetadata map[string]any `json:"response_metadata"`
	CustomData       map[string]any `json:"custom_data"`
}

// Normalize 将引擎消息转换为 ChatMessage
func Normalize(msg *schema.Message) (*ChatMessage, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrUnsupportedMessage)
	}

	out := &ChatMessage{
		Content:          TextContent(msg),
		ToolCalls:        []ToolCall{},
		ResponseMetadata: map[string]any{},
		CustomData:       map[string]any{},
	}

	switch msg.Role {
	case schema.User:
		out.Type = TypeHuman
	case schema.Assistant:
		out.Type = TypeAI
		for _, tc := range msg.ToolCalls {
			call, err := toToolCall(tc)
			if err != nil {
				return nil, err
			}
			out.ToolCalls = append(out.ToolCalls, call)
		}
		if meta := msg.ResponseMeta; meta != nil {
			if meta.FinishReason != "" {
				out.ResponseMetadata["finish_reason"] = meta.FinishReason
			}
			if u := meta.Usage; u != nil {
				out.ResponseMetadata["token_usage"] = map[string]any{
					"prompt_tokens":     u.PromptTokens,
					"completion_tokens": u.CompletionTokens,
					"total_tokens":      u.TotalTokens,
				}
			}
		}
	case schema.Tool:
		out.Type = TypeTool
		out.ToolCallID = msg.ToolCallID
	case engine.RoleCustom:
		out.Type = TypeCustom
		data, ok := msg.Extra[engine.CustomDataKey].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: custom message without %s", ErrUnsupportedMessage, engine.CustomDataKey)
		}
		out.Content = ""
		out.CustomData = data
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMessage, msg.Role)
	}

	return out, nil
}

func toToolCall(tc schema.ToolCall) (ToolCall, error) {
	args := map[string]any{}
	if raw := tools.RepairJSON(tc.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return ToolCall{}, fmt.Errorf("invalid arguments for tool call %s: %w", tc.Function.Name, err)
		}
	}
	return ToolCall{Name: tc.Function.Name, Args: args, ID: tc.ID, Type: "tool_call"}, nil
}

// TextContent 消息文本，多段内容只保留文本部分
func TextContent(msg *schema.Message) string {
	if msg.Content != "" || len(msg.MultiContent) == 0 {
		return msg.Content
	}
	var sb strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == schema.ChatMessagePartTypeText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
