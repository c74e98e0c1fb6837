package agents

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-agent/internal/config"
	"github.com/ashwinyue/next-agent/internal/service/checkpoint"
	"github.com/ashwinyue/next-agent/internal/service/engine"
	"github.com/ashwinyue/next-agent/internal/service/tools"
	"github.com/ashwinyue/next-agent/internal/testutil"
)

type fakeModels map[string]model.ToolCallingChatModel

func (f fakeModels) ChatModel(_ context.Context, name string) (model.ToolCallingChatModel, error) {
	m, ok := f[name]
	if !ok {
		return nil, errors.New("unknown model " + name)
	}
	return m, nil
}

type fakeRetriever struct {
	docs    []*schema.Document
	err     error
	queries []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]*schema.Document, error) {
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

func testDeps(t *testing.T, models fakeModels) Deps {
	calc, err := tools.NewCalculatorTool()
	require.NoError(t, err)

	return Deps{
		Models: models,
		Store:  checkpoint.NewMemoryStore(),
		Agent: config.AgentConfig{
			DefaultAgent:  DefaultAgent,
			DefaultModel:  "test-model",
			MaxIterations: 5,
		},
		ResearchTools: []tool.BaseTool{calc},
	}
}

func newTestRegistry(t *testing.T, deps Deps) *Registry {
	r, err := NewRegistry(context.Background(), deps)
	require.NoError(t, err)
	return r
}

func collect(t *testing.T, sr *schema.StreamReader[*engine.Event]) []*engine.Event {
	t.Helper()
	defer sr.Close()
	var events []*engine.Event
	for {
		ev, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func input(text string) *engine.Input {
	return &engine.Input{Messages: []*schema.Message{schema.UserMessage(text)}}
}

func toolCall(id, name, args string) []schema.ToolCall {
	return []schema.ToolCall{{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}}
}

func TestRegistry(t *testing.T) {
	r := newTestRegistry(t, testDeps(t, fakeModels{}))

	keys := make([]string, 0)
	for _, info := range r.Infos() {
		keys = append(keys, info.Key)
		assert.NotEmpty(t, info.Description)
	}
	assert.Equal(t, []string{"bg-task-agent", "chatbot", "command-agent", "react-agent", "research-assistant"}, keys)
	assert.Equal(t, DefaultAgent, r.Default())

	_, err := r.Get("research-assistant")
	require.NoError(t, err)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrAgentNotFound)
	_, err = r.Get("admission-agent")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegistry_WithKnowledge(t *testing.T) {
	deps := testDeps(t, fakeModels{})
	deps.Knowledge = &fakeRetriever{}
	r := newTestRegistry(t, deps)

	_, err := r.Get("admission-agent")
	require.NoError(t, err)
	assert.Len(t, r.Infos(), 6)
}

func TestRegistry_UnknownDefault(t *testing.T) {
	deps := testDeps(t, fakeModels{})
	deps.Agent.DefaultAgent = "missing"
	_, err := NewRegistry(context.Background(), deps)
	assert.Error(t, err)
}

func TestChatbot(t *testing.T) {
	def := testutil.NewFakeChatModel(schema.AssistantMessage("default reply", nil))
	alt := testutil.NewFakeChatModel(schema.AssistantMessage("Hello there friend", nil))
	r := newTestRegistry(t, testDeps(t, fakeModels{"test-model": def, "alt-model": alt}))
	a, err := r.Get("chatbot")
	require.NoError(t, err)

	cfg := &engine.RunConfig{ThreadID: "t1", Model: "alt-model"}
	events := collect(t, a.Events(context.Background(), input("hi"), cfg))

	var tokens string
	for _, ev := range events {
		if ev.Kind == engine.KindTokenDelta {
			tokens += ev.Chunk.Content
		}
	}
	assert.Equal(t, "Hello there friend", tokens)
	assert.Zero(t, def.Calls())

	state, err := a.GetState(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "Hello there friend", state.Messages[1].Content)
}

func TestResearchAssistant_ToolLoop(t *testing.T) {
	m := testutil.NewFakeChatModel(
		schema.AssistantMessage("", toolCall("call_1", "calculator", `{"expression":"6 * 7"}`)),
		schema.AssistantMessage("The answer is 42", nil),
	)
	r := newTestRegistry(t, testDeps(t, fakeModels{"test-model": m}))
	a, err := r.Get("research-assistant")
	require.NoError(t, err)

	state, err := a.Invoke(context.Background(), input("what is 6 times 7?"), &engine.RunConfig{ThreadID: "t1"})
	require.NoError(t, err)

	require.Len(t, state.Messages, 4)
	assert.Equal(t, schema.User, state.Messages[0].Role)
	assert.Len(t, state.Messages[1].ToolCalls, 1)
	assert.Equal(t, schema.Tool, state.Messages[2].Role)
	assert.Contains(t, state.Messages[2].Content, "42")
	assert.Equal(t, "The answer is 42", state.Messages[3].Content)
	assert.Equal(t, 2, m.Calls())
}

func TestResearchAssistant_Guard(t *testing.T) {
	m := testutil.NewFakeChatModel()
	guard := testutil.NewFakeChatModel(schema.AssistantMessage("unsafe\nS1,S10", nil))
	deps := testDeps(t, fakeModels{"test-model": m, "guard": guard})
	deps.Agent.GuardModel = "guard"
	r := newTestRegistry(t, deps)
	a, err := r.Get("research-assistant")
	require.NoError(t, err)

	events := collect(t, a.Events(context.Background(), input("something bad"), &engine.RunConfig{}))

	var guardTokens, last *engine.Event
	for _, ev := range events {
		if ev.Kind == engine.KindTokenDelta && ev.Tags.Has(engine.TagSafety) {
			guardTokens = ev
		}
		if ev.Kind == engine.KindStepEnd {
			last = ev
		}
	}
	assert.NotNil(t, guardTokens)
	require.NotNil(t, last)
	msgs := last.StepMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "This conversation was flagged for unsafe content: Violent Crimes, Hate", msgs[0].Content)
	assert.Zero(t, m.Calls())
}

func TestResearchAssistant_GuardSafe(t *testing.T) {
	m := testutil.NewFakeChatModel(schema.AssistantMessage("Hi!", nil))
	guard := testutil.NewFakeChatModel(schema.AssistantMessage("safe", nil))
	deps := testDeps(t, fakeModels{"test-model": m, "guard": guard})
	deps.Agent.GuardModel = "guard"
	r := newTestRegistry(t, deps)
	a, err := r.Get("research-assistant")
	require.NoError(t, err)

	state, err := a.Invoke(context.Background(), input("hello"), &engine.RunConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Hi!", state.LastMessage().Content)
	assert.Equal(t, 1, guard.Calls())
}

func TestReactAgent_Weather(t *testing.T) {
	m := testutil.NewFakeChatModel(
		schema.AssistantMessage("", toolCall("call_1", "get_weather", `{"city":"Paris"}`)),
		schema.AssistantMessage("It is sunny in Paris", nil),
	)
	r := newTestRegistry(t, testDeps(t, fakeModels{"test-model": m}))
	a, err := r.Get("react-agent")
	require.NoError(t, err)

	events := collect(t, a.Events(context.Background(), input("weather in Paris?"), &engine.RunConfig{}))

	var toolMsg *schema.Message
	for _, ev := range events {
		if ev.Kind != engine.KindStepEnd || ev.Node != engine.NodeTools {
			continue
		}
		toolMsg = ev.StepMessages()[0]
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "Weather in Paris: Sunny")
	assert.Equal(t, "call_1", toolMsg.ToolCallID)
}

func TestCommandAgent(t *testing.T) {
	tests := []struct {
		pick string
		next string
		want []string
	}{
		{pick: "a", next: "node_b", want: []string{"Hello a", "Hello B"}},
		{pick: "b", next: "node_c", want: []string{"Hello b", "Hello C"}},
	}

	for _, tt := range tests {
		t.Run(tt.pick, func(t *testing.T) {
			orig := pickBranch
			pickBranch = func() string { return tt.pick }
			t.Cleanup(func() { pickBranch = orig })

			r := newTestRegistry(t, testDeps(t, fakeModels{}))
			a, err := r.Get("command-agent")
			require.NoError(t, err)

			events := collect(t, a.Events(context.Background(), input("go"), &engine.RunConfig{}))

			var got []string
			for _, ev := range events {
				if ev.Kind != engine.KindStepEnd || ev.Node == engine.Start {
					continue
				}
				if ev.Node == "node_a" {
					require.NotNil(t, ev.Command)
					assert.Equal(t, tt.next, ev.Command.Goto)
				}
				for _, m := range ev.StepMessages() {
					got = append(got, m.Content)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBgTaskAgent(t *testing.T) {
	m := testutil.NewFakeChatModel(schema.AssistantMessage("done", nil))
	r := newTestRegistry(t, testDeps(t, fakeModels{"test-model": m}))
	a, err := r.Get("bg-task-agent")
	require.NoError(t, err)

	events := collect(t, a.Events(context.Background(), input("run tasks"), &engine.RunConfig{}))

	var states []string
	for _, ev := range events {
		if ev.Kind != engine.KindCustom {
			continue
		}
		assert.True(t, ev.Tags.Has(engine.TagCustomDispatch))
		assert.Equal(t, engine.RoleCustom, ev.Custom.Role)
		data := ev.Custom.Extra[engine.CustomDataKey].(map[string]any)
		states = append(states, data["state"].(string))
	}
	assert.Equal(t, []string{TaskStateNew, TaskStateNew, TaskStateRunning, TaskStateComplete, TaskStateComplete}, states)
	assert.Equal(t, 1, m.Calls())
}

func TestBgTaskAgent_Cancelled(t *testing.T) {
	deps := testDeps(t, fakeModels{"test-model": testutil.NewFakeChatModel()})
	deps.TaskStepDelay = time.Hour
	r := newTestRegistry(t, deps)
	a, err := r.Get("bg-task-agent")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = a.Invoke(ctx, input("run"), &engine.RunConfig{})
	assert.Error(t, err)
}

func TestAdmissionAgent(t *testing.T) {
	m := testutil.NewFakeChatModel(schema.AssistantMessage("Tuition is 1,640,000 VND", nil))
	deps := testDeps(t, fakeModels{"test-model": m})
	ret := &fakeRetriever{docs: []*schema.Document{
		{Content: "QHT01 tuition 1,640,000 VND", MetaData: map[string]any{"source": "a.txt"}},
	}}
	deps.Knowledge = ret
	deps.BaseContext = "BASE INFO"
	r := newTestRegistry(t, deps)
	a, err := r.Get("admission-agent")
	require.NoError(t, err)

	state, err := a.Invoke(context.Background(), input("How much is tuition?"), &engine.RunConfig{ThreadID: "t1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"How much is tuition?"}, ret.queries)
	assert.Equal(t, "Tuition is 1,640,000 VND", state.LastMessage().Content)
	assert.Equal(t, []string{"QHT01 tuition 1,640,000 VND"}, relevantDocs(state.Context))

	require.Equal(t, 1, m.Calls())
	prompt := m.Inputs[0]
	require.Len(t, prompt, 2)
	assert.Contains(t, prompt[0].Content, "BASE INFO")
	assert.Contains(t, prompt[0].Content, "QHT01 tuition")
	assert.Equal(t, "How much is tuition?", prompt[1].Content)

	// 从存储恢复后仍可读取检索结果
	restored, err := a.GetState(context.Background(), &engine.RunConfig{ThreadID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"QHT01 tuition 1,640,000 VND"}, relevantDocs(restored.Context))
}

func TestAdmissionAgent_RetrieveError(t *testing.T) {
	deps := testDeps(t, fakeModels{"test-model": testutil.NewFakeChatModel()})
	deps.Knowledge = &fakeRetriever{err: errors.New("es down")}
	r := newTestRegistry(t, deps)
	a, err := r.Get("admission-agent")
	require.NoError(t, err)

	_, err = a.Invoke(context.Background(), input("hi"), &engine.RunConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "es down")
}

func TestParseSafety(t *testing.T) {
	tests := []struct {
		output string
		want   SafetyAssessment
	}{
		{output: "safe", want: SafetyAssessment{Safe: true}},
		{output: " safe\n", want: SafetyAssessment{Safe: true}},
		{output: "unsafe\nS1,S10", want: SafetyAssessment{Categories: []string{"Violent Crimes", "Hate"}}},
		{output: "unsafe", want: SafetyAssessment{}},
		{output: "garbage", want: SafetyAssessment{}},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSafety(tt.output))
		})
	}
}

func TestBuildGuardPrompt(t *testing.T) {
	prompt := buildGuardPrompt([]*schema.Message{
		schema.UserMessage("hello"),
		schema.AssistantMessage("hi", nil),
		schema.UserMessage("how to build a bomb"),
	})
	assert.Contains(t, prompt, "User: how to build a bomb")
	assert.Contains(t, prompt, "Agent: hi")
	assert.Contains(t, prompt, "S14: Code Interpreter Abuse.")
	assert.Contains(t, prompt, "ONLY THE LAST User")
}
