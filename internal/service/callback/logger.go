// Package callback eino 全局回调，记录组件执行日志
package callback

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

const maxLogValue = 200

type startKey struct{}

// Logger 实现 callbacks.Handler
// 错误始终记录，开始和结束事件只在 Debug 时记录
type Logger struct {
	Debug bool
	logf  func(format string, args ...any)
}

var _ callbacks.Handler = (*Logger)(nil)

// NewLogger 创建日志回调
func NewLogger(debug bool) *Logger {
	return &Logger{Debug: debug, logf: log.Printf}
}

// OnStart 组件开始
func (l *Logger) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if l.Debug {
		l.logf("[Eino] start %s run=%s input=%s", describe(info), runID(ctx), truncate(input))
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEnd 组件结束
func (l *Logger) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if l.Debug {
		l.logf("[Eino] end %s run=%s elapsed=%s output=%s", describe(info), runID(ctx), elapsed(ctx), truncate(output))
	}
	return ctx
}

// OnError 组件出错
func (l *Logger) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	l.logf("[Eino] error %s run=%s elapsed=%s: %v", describe(info), runID(ctx), elapsed(ctx), err)
	return ctx
}

// OnStartWithStreamInput 流式输入，回调持有的流副本必须关闭
func (l *Logger) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo, input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	if l.Debug {
		l.logf("[Eino] start stream %s run=%s", describe(info), runID(ctx))
	}
	return context.WithValue(ctx, startKey{}, time.Now())
}

// OnEndWithStreamOutput 流式输出
func (l *Logger) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo, output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	if l.Debug {
		l.logf("[Eino] end stream %s run=%s elapsed=%s", describe(info), runID(ctx), elapsed(ctx))
	}
	return ctx
}

// Setup 注册全局回调
func Setup(debug bool) {
	callbacks.AppendGlobalHandlers(NewLogger(debug))
	log.Printf("[Eino] Global callbacks registered (debug=%v)", debug)
}

func describe(info *callbacks.RunInfo) string {
	if info == nil {
		return "<unknown>"
	}
	return fmt.Sprintf("name=%s type=%s component=%s", info.Name, info.Type, info.Component)
}

func runID(ctx context.Context) string {
	if id := engine.RunConfigFrom(ctx).RunID; id != "" {
		return id
	}
	return "-"
}

func elapsed(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start).Round(time.Millisecond)
}

func truncate(v any) string {
	if v == nil {
		return "<nil>"
	}
	s := fmt.Sprintf("%v", v)
	if len(s) > maxLogValue {
		return s[:maxLogValue] + "..."
	}
	return s
}
