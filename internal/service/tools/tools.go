// Package tools 提供 Agent 可调用的工具
package tools

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	httptool "github.com/cloudwego/eino-ext/components/tool/httprequest"
	sequencethinking "github.com/cloudwego/eino-ext/components/tool/sequentialthinking"
	wikipediatool "github.com/cloudwego/eino-ext/components/tool/wikipedia"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/expr-lang/expr"
)

// CalculatorInput calculator 输入参数
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"A single math expression, e.g. 37593 * 67 or 37593**(1/5)"`
}

// WeatherInput get_weather 输入参数
type WeatherInput struct {
	City string `json:"city" jsonschema_description:"City name"`
}

// NewCalculatorTool 创建计算器工具
func NewCalculatorTool() (tool.InvokableTool, error) {
	return utils.InferTool(
		"calculator",
		"Calculates a math expression. Useful for when you need to answer math questions. "+
			"Supports +, -, *, /, %, ** and parentheses. Pass a single expression.",
		func(ctx context.Context, in *CalculatorInput) (string, error) {
			return Calculate(in.Expression)
		},
	)
}

// Calculate 计算数学表达式
func Calculate(expression string) (string, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return "", fmt.Errorf("expression is required")
	}

	out, err := expr.Eval(expression, nil)
	if err != nil {
		return "", fmt.Errorf("calculator failed to evaluate %q: %w", expression, err)
	}

	switch v := out.(type) {
	case int, int64, float64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("calculator: %q is not a numeric expression", expression)
	}
}

// NewWeatherTool 创建天气查询工具
func NewWeatherTool() (tool.InvokableTool, error) {
	return utils.InferTool(
		"get_weather",
		"Use this to get weather information for a city.",
		func(ctx context.Context, in *WeatherInput) (string, error) {
			if in.City == "" {
				return "", fmt.Errorf("city is required")
			}
			return fmt.Sprintf("Weather in %s: Sunny", in.City), nil
		},
	)
}

// NewResearchTools 研究助手使用的工具集
// 单个工具创建失败时记录日志并跳过（网络搜索以占位工具代替）
func NewResearchTools(ctx context.Context) []tool.BaseTool {
	tools := []tool.BaseTool{newWebSearchTool(ctx)}

	wikiTool, err := wikipediatool.NewTool(ctx, &wikipediatool.Config{
		Language: "en",
		TopK:     3,
	})
	if err != nil {
		log.Printf("Warning: failed to create wikipedia tool: %v", err)
	} else {
		tools = append(tools, wikiTool)
	}

	httpTools, err := httptool.NewToolKit(ctx, &httptool.Config{})
	if err != nil {
		log.Printf("Warning: failed to create http tools: %v", err)
	} else {
		tools = append(tools, httpTools...)
	}

	thinkTool, err := sequencethinking.NewTool()
	if err != nil {
		log.Printf("Warning: failed to create sequentialthinking tool: %v", err)
	} else {
		tools = append(tools, thinkTool)
	}

	calc, err := NewCalculatorTool()
	if err != nil {
		log.Printf("Warning: failed to create calculator tool: %v", err)
	} else {
		tools = append(tools, calc)
	}

	return tools
}

// newWebSearchTool 创建网络搜索工具
func newWebSearchTool(ctx context.Context) tool.BaseTool {
	searchTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search",
		ToolDesc:   "Search the web for current information using DuckDuckGo. Use this when you need up-to-date information.",
		MaxResults: 5,
	})
	if err != nil {
		log.Printf("Warning: failed to create web search tool: %v", err)
		return &stubTool{name: "web_search"}
	}
	return searchTool
}

// stubTool 占位工具
type stubTool struct {
	name string
}

func (t *stubTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.name,
		Desc: t.name + " (unavailable)",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The query string",
				Required: true,
			},
		}),
	}, nil
}

func (t *stubTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	return fmt.Sprintf(`{"error":"%s is not available"}`, t.name), nil
}

// Names 列出工具名称
func Names(ctx context.Context, tools []tool.BaseTool) []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			continue
		}
		names = append(names, info.Name)
	}
	return names
}
