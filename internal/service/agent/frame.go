package agent

import (
	"encoding/json"
)

// FrameType 流式帧类型
type FrameType string

const (
	FrameMessage FrameType = "message"
	FrameToken   FrameType = "token"
	FrameError   FrameType = "error"
)

// Frame 一个 SSE 帧
type Frame struct {
	Type    FrameType `json:"type"`
	Content any       `json:"content"`
	done    bool
}

// DoneFrame 流的最后一帧
var DoneFrame = Frame{done: true}

var doneBytes = []byte("data: [DONE]\n\n")

func messageFrame(m *ChatMessage) Frame { return Frame{Type: FrameMessage, Content: m} }

func tokenFrame(text string) Frame { return Frame{Type: FrameToken, Content: text} }

// ErrorFrame 错误帧
func ErrorFrame(msg string) Frame { return Frame{Type: FrameError, Content: msg} }

// IsDone 是否为结束帧
func (f Frame) IsDone() bool {
	return f.done
}

// Encode 编码为 "data: <json>\n\n"
func (f Frame) Encode() ([]byte, error) {
	if f.done {
		return doneBytes, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	return buf, nil
}
