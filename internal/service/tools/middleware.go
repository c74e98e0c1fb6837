package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/kaptinlin/jsonrepair"
)

// FailureFormatter 将工具错误转换为返回给模型的文本
type FailureFormatter func(ctx context.Context, in *compose.ToolInput, err error) string

// formatFailure 默认的错误文本
func formatFailure(ctx context.Context, in *compose.ToolInput, err error) string {
	return fmt.Sprintf("Error: tool %q failed: %s. Please fix your mistakes.", in.Name, err.Error())
}

// RecoverErrors 工具调用失败时把错误作为工具结果交给模型，ReAct 循环继续
// 中断重跑错误原样返回
func RecoverErrors(format FailureFormatter) compose.ToolMiddleware {
	if format == nil {
		format = formatFailure
	}

	recoverable := func(ctx context.Context, in *compose.ToolInput, err error) (string, bool) {
		if _, ok := compose.IsInterruptRerunError(err); ok {
			return "", false
		}
		log.Printf("Tool %s failed: %v", in.Name, err)
		return format(ctx, in, err), true
	}

	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
				out, err := next(ctx, in)
				if err == nil {
					return out, nil
				}
				text, ok := recoverable(ctx, in, err)
				if !ok {
					return nil, err
				}
				return &compose.ToolOutput{Result: text}, nil
			}
		},
		Streamable: func(next compose.StreamableToolEndpoint) compose.StreamableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.StreamToolOutput, error) {
				out, err := next(ctx, in)
				if err == nil {
					return out, nil
				}
				text, ok := recoverable(ctx, in, err)
				if !ok {
					return nil, err
				}
				return &compose.StreamToolOutput{Result: schema.StreamReaderFromArray([]string{text})}, nil
			}
		},
	}
}

// RepairArguments 调用工具前修复模型生成的参数 JSON
func RepairArguments() compose.ToolMiddleware {
	return compose.ToolMiddleware{
		Invokable: func(next compose.InvokableToolEndpoint) compose.InvokableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.ToolOutput, error) {
				in.Arguments = RepairJSON(in.Arguments)
				return next(ctx, in)
			}
		},
		Streamable: func(next compose.StreamableToolEndpoint) compose.StreamableToolEndpoint {
			return func(ctx context.Context, in *compose.ToolInput) (*compose.StreamToolOutput, error) {
				in.Arguments = RepairJSON(in.Arguments)
				return next(ctx, in)
			}
		},
	}
}

// artifacts 模型常在参数外包裹的标记
var artifacts = []string{"<|FunctionCallBegin|>", "<|FunctionCallEnd|>", "```json", "```"}

// RepairJSON 修复参数 JSON，无法修复时原样返回
func RepairJSON(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}

	for _, a := range artifacts {
		s = strings.ReplaceAll(s, a, "")
	}
	s = strings.TrimSpace(s)

	// 截取第一个 { 到最后一个 } 之间的对象
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		if obj := s[i : j+1]; json.Valid([]byte(obj)) {
			return obj
		}
	}

	out, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return input
	}
	return out
}

// Middlewares ReAct 工具节点使用的中间件，先修复参数再兜底错误
func Middlewares() []compose.ToolMiddleware {
	return []compose.ToolMiddleware{RepairArguments(), RecoverErrors(nil)}
}
