package agent

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

func TestNormalize(t *testing.T) {
	t.Run("human", func(t *testing.T) {
		cm, err := Normalize(schema.UserMessage("hi"))
		require.NoError(t, err)
		assert.Equal(t, TypeHuman, cm.Type)
		assert.Equal(t, "hi", cm.Content)
		assert.Empty(t, cm.ToolCalls)
		assert.NotNil(t, cm.ToolCalls)
	})

	t.Run("ai with tool calls", func(t *testing.T) {
		msg := schema.AssistantMessage("", []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: "calculator", Arguments: `{"expression":"1+1"}`},
		}})
		msg.ResponseMeta = &schema.ResponseMeta{
			FinishReason: "tool_calls",
			Usage:        &schema.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}

		cm, err := Normalize(msg)
		require.NoError(t, err)
		assert.Equal(t, TypeAI, cm.Type)
		require.Len(t, cm.ToolCalls, 1)
		assert.Equal(t, ToolCall{Name: "calculator", Args: map[string]any{"expression": "1+1"}, ID: "call_1", Type: "tool_call"}, cm.ToolCalls[0])
		assert.Equal(t, "tool_calls", cm.ResponseMetadata["finish_reason"])
		assert.Contains(t, cm.ResponseMetadata, "token_usage")
	})

	t.Run("tool", func(t *testing.T) {
		cm, err := Normalize(schema.ToolMessage("42", "call_1"))
		require.NoError(t, err)
		assert.Equal(t, TypeTool, cm.Type)
		assert.Equal(t, "call_1", cm.ToolCallID)
		assert.Equal(t, "42", cm.Content)
	})

	t.Run("custom", func(t *testing.T) {
		cm, err := Normalize(engine.NewCustomMessage(map[string]any{"state": "new"}))
		require.NoError(t, err)
		assert.Equal(t, TypeCustom, cm.Type)
		assert.Equal(t, map[string]any{"state": "new"}, cm.CustomData)
	})

	t.Run("multi content", func(t *testing.T) {
		msg := &schema.Message{Role: schema.Assistant, MultiContent: []schema.ChatMessagePart{
			{Type: schema.ChatMessagePartTypeText, Text: "Hello "},
			{Type: schema.ChatMessagePartTypeImageURL, ImageURL: &schema.ChatMessageImageURL{URL: "http://x/img.png"}},
			{Type: schema.ChatMessagePartTypeText, Text: "world"},
		}}
		cm, err := Normalize(msg)
		require.NoError(t, err)
		assert.Equal(t, "Hello world", cm.Content)
	})

	errCases := map[string]*schema.Message{
		"nil":                 nil,
		"system":              schema.SystemMessage("be nice"),
		"custom without data": {Role: engine.RoleCustom},
	}
	for name, msg := range errCases {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(msg)
			assert.ErrorIs(t, err, ErrUnsupportedMessage)
		})
	}
}

func TestNormalize_JSONShape(t *testing.T) {
	cm, err := Normalize(schema.AssistantMessage("hello", nil))
	require.NoError(t, err)

	data, err := json.Marshal(cm)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"ai","content":"hello","tool_calls":[],"response_metadata":{},"custom_data":{}}`, string(data))
}

func TestFrame_Encode(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  string
	}{
		{name: "token", frame: tokenFrame("Hel"), want: "data: {\"type\":\"token\",\"content\":\"Hel\"}\n\n"},
		{name: "error", frame: ErrorFrame("Unexpected error"), want: "data: {\"type\":\"error\",\"content\":\"Unexpected error\"}\n\n"},
		{name: "done", frame: DoneFrame, want: "data: [DONE]\n\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.frame.Encode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	got, err := messageFrame(&ChatMessage{Type: TypeAI, Content: "x", RunID: "r1"}).Encode()
	require.NoError(t, err)
	assert.Contains(t, string(got), `"type":"message"`)
	assert.Contains(t, string(got), `"run_id":"r1"`)
}
