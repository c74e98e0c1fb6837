package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

// defaultBaseContext 未配置时使用的基础招生信息
const defaultBaseContext = `Programs of the Faculty of Mathematics, Mechanics and Informatics (school code QHT):

1. Mathematics (QHT01): subject groups A00, A01, D07, D08; 2024 cut-off 34.45/40 (Math x2 + two subjects); tuition about 1,640,000 VND/month.
2. Mathematics and Informatics (QHT02): subject groups A00, A01, D07, D08; 2024 cut-off 34.45/40; tuition about 2,700,000 VND/month.
3. Computer and Information Science (QHT98): subject groups A00, A01, D07, D08; 2024 cut-off 34.70/40; tuition about 3,700,000 VND/month.
4. Data Science (QHT93): subject groups A00, A01, D07, D08; 2024 cut-off 35.00/40; tuition about 1,640,000 VND/month.

All programs take 4 years. Subject groups: A00 Math, Physics, Chemistry; A01 Math, Physics, English; D07 Math, Chemistry, English; D08 Math, Biology, English.`

const admissionPrompt = `You are the admission counselling assistant of the Faculty of Mathematics, Mechanics and Informatics.
Your job is to answer admission questions from applicants and their parents.

%s

Use the additional context below to give more detailed answers. If it does not contain the information, answer from the basic information above.
Answer briefly, accurately and in a friendly tone.

Additional context: %s`

const (
	ctxRelevantDocs = "relevant_docs"
	ctxSources      = "sources"
)

func newAdmissionAgent(deps Deps) *engine.Graph {
	base := deps.BaseContext
	if base == "" {
		base = defaultBaseContext
	}

	return engine.NewGraph("admission-agent").
		AddNode("retrieve_context", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			last := s.LastMessage()
			if last == nil || last.Role != schema.User {
				return nil, nil
			}

			docs, err := deps.Knowledge.Retrieve(ctx, last.Content)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve context: %w", err)
			}

			contents := make([]string, 0, len(docs))
			sources := make([]map[string]any, 0, len(docs))
			for _, d := range docs {
				contents = append(contents, d.Content)
				sources = append(sources, d.MetaData)
			}
			return &engine.Update{Context: map[string]any{
				ctxRelevantDocs: contents,
				ctxSources:      sources,
			}}, nil
		}).
		AddNode("generate_response", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			m, err := chatModel(ctx, deps)
			if err != nil {
				return nil, err
			}

			var question string
			if last := s.LastMessage(); last != nil {
				question = last.Content
			}
			input := []*schema.Message{
				schema.SystemMessage(fmt.Sprintf(admissionPrompt, base, strings.Join(relevantDocs(s.Context), "\n"))),
				schema.UserMessage(question),
			}

			msg, err := engine.StreamModel(ctx, "generate_response", m, input, nil)
			if err != nil {
				return nil, err
			}
			return &engine.Update{Messages: []*schema.Message{msg}}, nil
		}).
		AddEdge(engine.Start, "retrieve_context").
		AddEdge("retrieve_context", "generate_response").
		AddEdge("generate_response", engine.End)
}

// relevantDocs 读取检索结果，兼容从存储恢复后的 []any
func relevantDocs(c map[string]any) []string {
	switch v := c[ctxRelevantDocs].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
