package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

const researchInstruction = `You are a helpful research assistant with the ability to search the web and use other tools.
Today's date is %s.

NOTE: THE USER CAN'T SEE THE TOOL RESPONSE.

A few things to remember:
- Please include markdown-formatted links to any citations used in your response. Only include one
  or two citations per response unless more are needed. ONLY USE LINKS RETURNED BY THE TOOLS.
- Use the calculator tool to answer math questions. The user cannot see the calculator
  response, so you should provide the answer to the user.`

func newResearchAssistant(deps Deps) *engine.Graph {
	instruction := fmt.Sprintf(researchInstruction, time.Now().Format("January 2, 2006"))

	return engine.NewGraph("research-assistant").
		AddNode("guard_input", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			a, err := checkSafety(ctx, deps, "guard_input", s.Messages)
			if err != nil {
				return nil, err
			}
			if !a.Safe {
				return &engine.Update{
					Context: map[string]any{"safety_categories": a.Categories},
					Goto:    "block_unsafe_content",
				}, nil
			}
			return &engine.Update{Goto: "agent"}, nil
		}).
		AddNode("agent", reactNode(deps, "research_assistant", "Research assistant", instruction, deps.ResearchTools)).
		AddNode("block_unsafe_content", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			cats, _ := s.Context["safety_categories"].([]string)
			return &engine.Update{Messages: []*schema.Message{unsafeMessage(SafetyAssessment{Categories: cats})}}, nil
		}).
		AddEdge(engine.Start, "guard_input").
		AddRoute("guard_input", "agent", "block_unsafe_content").
		AddEdge("agent", engine.End).
		AddEdge("block_unsafe_content", engine.End)
}
