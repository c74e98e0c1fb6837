package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type emitterKey struct{}

// emitter 将事件写入订阅流
// 订阅方关闭流后取消本次运行
type emitter struct {
	sw     *schema.StreamWriter[*Event]
	cancel context.CancelFunc
}

func withEmitter(ctx context.Context, em *emitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, em)
}

// Emit 发出事件，没有订阅方时忽略
func Emit(ctx context.Context, ev *Event) {
	em, ok := ctx.Value(emitterKey{}).(*emitter)
	if !ok {
		return
	}
	if closed := em.sw.Send(ev, nil); closed {
		em.cancel()
	}
}

// EmitStep 发出节点结束事件
func EmitStep(ctx context.Context, node string, msgs []*schema.Message) {
	Emit(ctx, &Event{
		Kind:   KindStepEnd,
		Node:   node,
		Tags:   NewTagSet(),
		Output: &StepOutput{Messages: msgs},
	})
}

// EmitToken 发出模型增量片段
func EmitToken(ctx context.Context, node string, chunk *schema.Message, tags ...string) {
	Emit(ctx, &Event{
		Kind:  KindTokenDelta,
		Node:  node,
		Tags:  NewTagSet(tags...),
		Chunk: chunk,
	})
}

// DispatchCustom 派发自定义消息
func DispatchCustom(ctx context.Context, node string, msg *schema.Message) {
	Emit(ctx, &Event{
		Kind:   KindCustom,
		Node:   node,
		Tags:   NewTagSet(TagCustomDispatch),
		Custom: msg,
	})
}

func stepEvent(node string, u *Update) *Event {
	ev := &Event{Kind: KindStepEnd, Node: node, Tags: NewTagSet()}
	if u.Goto != "" {
		ev.Command = &Command{Goto: u.Goto, Update: StepOutput{Messages: u.Messages}}
	} else {
		ev.Output = &StepOutput{Messages: u.Messages}
	}
	return ev
}

// ErrEmptyResponse 模型未返回任何内容
var ErrEmptyResponse = errors.New("empty model response")

// StreamModel 以流式调用模型，逐片发出增量事件并返回拼接后的完整消息
func StreamModel(ctx context.Context, node string, m model.BaseChatModel, input []*schema.Message, tags []string, opts ...model.Option) (*schema.Message, error) {
	sr, err := m.Stream(ctx, input, opts...)
	if err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	return drain(ctx, node, sr, true, tags)
}

// drain 读取消息流直到结束，emitTokens 为 true 时逐片发出增量事件
func drain(ctx context.Context, node string, sr *schema.StreamReader[*schema.Message], emitTokens bool, tags []string) (*schema.Message, error) {
	defer sr.Close()

	var chunks []*schema.Message
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to receive chunk: %w", err)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if emitTokens {
			EmitToken(ctx, node, chunk, tags...)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if len(chunks) == 0 {
		return nil, ErrEmptyResponse
	}
	return schema.ConcatMessages(chunks)
}
