package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// FakeChatModel 按脚本依次返回回复的模型
// 流式调用时按空格把内容切成多个片段
type FakeChatModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	Err     error
	Inputs  [][]*schema.Message
	Tools   []*schema.ToolInfo
}

var _ model.ToolCallingChatModel = (*FakeChatModel)(nil)

// NewFakeChatModel 创建脚本化模型
func NewFakeChatModel(replies ...*schema.Message) *FakeChatModel {
	return &FakeChatModel{replies: replies}
}

// Generate 返回下一条回复
func (m *FakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	return m.next(input)
}

// Stream 以流形式返回下一条回复
func (m *FakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	reply, err := m.next(input)
	if err != nil {
		return nil, err
	}

	var chunks []*schema.Message
	for i, word := range strings.SplitAfter(reply.Content, " ") {
		if word == "" {
			continue
		}
		chunk := &schema.Message{Role: reply.Role, Content: word}
		if i == 0 {
			chunk.ToolCalls = reply.ToolCalls
		}
		chunks = append(chunks, chunk)
	}
	if len(chunks) == 0 {
		chunks = append(chunks, &schema.Message{Role: reply.Role, ToolCalls: reply.ToolCalls})
	}
	return schema.StreamReaderFromArray(chunks), nil
}

// WithTools 记录绑定的工具
func (m *FakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Tools = tools
	return m, nil
}

// Calls 调用次数
func (m *FakeChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Inputs)
}

func (m *FakeChatModel) next(input []*schema.Message) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Inputs = append(m.Inputs, input)
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.replies) == 0 {
		return nil, errors.New("fake chat model: no scripted reply left")
	}

	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}
