package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

// unsafeCategories 安全分类编号与名称
var unsafeCategories = map[string]string{
	"S1":  "Violent Crimes",
	"S2":  "Non-Violent Crimes",
	"S3":  "Sex Crimes",
	"S4":  "Child Exploitation",
	"S5":  "Defamation",
	"S6":  "Specialized Advice",
	"S7":  "Privacy",
	"S8":  "Intellectual Property",
	"S9":  "Indiscriminate Weapons",
	"S10": "Hate",
	"S11": "Self-Harm",
	"S12": "Sexual Content",
	"S13": "Elections",
	"S14": "Code Interpreter Abuse",
}

const guardPrompt = `Task: Check if there is unsafe content in '%s' messages in conversations according to our safety policy with the below categories.

<BEGIN UNSAFE CONTENT CATEGORIES>
%s
<END UNSAFE CONTENT CATEGORIES>

<BEGIN CONVERSATION>

%s

<END CONVERSATION>

Provide your safety assessment for ONLY THE LAST %s in the above conversation:
- First line must read 'safe' or 'unsafe'.
- If unsafe, a second line must include a comma-separated list of violated categories.`

// SafetyAssessment 安全评估结果
type SafetyAssessment struct {
	Safe       bool
	Categories []string
}

// ParseSafety 解析安全模型的输出
// 无法识别的输出视为 unsafe
func ParseSafety(output string) SafetyAssessment {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	switch strings.TrimSpace(lines[0]) {
	case "safe":
		return SafetyAssessment{Safe: true}
	case "unsafe":
		var cats []string
		if len(lines) > 1 {
			for _, code := range strings.Split(lines[1], ",") {
				code = strings.TrimSpace(code)
				if name, ok := unsafeCategories[code]; ok {
					cats = append(cats, name)
				}
			}
		}
		return SafetyAssessment{Categories: cats}
	default:
		return SafetyAssessment{}
	}
}

// buildGuardPrompt 将对话格式化为安全模型输入
func buildGuardPrompt(msgs []*schema.Message) string {
	role := "User"
	if last := msgs[len(msgs)-1]; last.Role == schema.Assistant {
		role = "Agent"
	}

	codes := make([]string, 0, len(unsafeCategories))
	for i := 1; i <= len(unsafeCategories); i++ {
		code := fmt.Sprintf("S%d", i)
		codes = append(codes, code+": "+unsafeCategories[code]+".")
	}

	var conv []string
	for _, m := range msgs {
		switch m.Role {
		case schema.User:
			conv = append(conv, "User: "+m.Content)
		case schema.Assistant:
			if m.Content != "" {
				conv = append(conv, "Agent: "+m.Content)
			}
		}
	}

	return fmt.Sprintf(guardPrompt, role, strings.Join(codes, "\n"), strings.Join(conv, "\n\n"), role)
}

// checkSafety 调用安全模型
// 未配置安全模型时直接视为 safe
func checkSafety(ctx context.Context, deps Deps, node string, msgs []*schema.Message) (SafetyAssessment, error) {
	if deps.Agent.GuardModel == "" || len(msgs) == 0 {
		return SafetyAssessment{Safe: true}, nil
	}

	m, err := deps.Models.ChatModel(ctx, deps.Agent.GuardModel)
	if err != nil {
		return SafetyAssessment{}, fmt.Errorf("failed to resolve guard model: %w", err)
	}

	input := []*schema.Message{schema.UserMessage(buildGuardPrompt(msgs))}
	out, err := engine.StreamModel(ctx, node, m, input, []string{engine.TagSafety})
	if err != nil {
		return SafetyAssessment{}, fmt.Errorf("guard model failed: %w", err)
	}
	return ParseSafety(out.Content), nil
}

// unsafeMessage 拦截消息
func unsafeMessage(a SafetyAssessment) *schema.Message {
	return schema.AssistantMessage(
		"This conversation was flagged for unsafe content: "+strings.Join(a.Categories, ", "), nil)
}
