package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/next-agent/internal/service/agents"
	"github.com/ashwinyue/next-agent/internal/service/engine"
	"github.com/ashwinyue/next-agent/internal/service/telemetry"
)

// scriptedAgent 按脚本发出事件的 Agent
type scriptedAgent struct {
	events    []*engine.Event
	streamErr error
	endless   bool

	state     *engine.State
	invokeErr error
	stateErr  error

	mu      sync.Mutex
	cfg     *engine.RunConfig
	input   *engine.Input
	stopped chan struct{}
}

func (a *scriptedAgent) record(in *engine.Input, cfg *engine.RunConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.input, a.cfg = in, cfg
}

func (a *scriptedAgent) lastConfig() *engine.RunConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *scriptedAgent) Invoke(_ context.Context, in *engine.Input, cfg *engine.RunConfig) (*engine.State, error) {
	a.record(in, cfg)
	return a.state, a.invokeErr
}

func (a *scriptedAgent) Events(_ context.Context, in *engine.Input, cfg *engine.RunConfig) *schema.StreamReader[*engine.Event] {
	a.record(in, cfg)
	sr, sw := schema.Pipe[*engine.Event](0)
	go func() {
		defer sw.Close()
		if a.stopped != nil {
			defer close(a.stopped)
		}
		for {
			for _, ev := range a.events {
				if closed := sw.Send(ev, nil); closed {
					return
				}
			}
			if !a.endless {
				break
			}
		}
		if a.streamErr != nil {
			sw.Send(nil, a.streamErr)
		}
	}()
	return sr
}

func (a *scriptedAgent) GetState(_ context.Context, cfg *engine.RunConfig) (*engine.State, error) {
	a.record(nil, cfg)
	if a.stateErr != nil {
		return nil, a.stateErr
	}
	if a.state == nil {
		return &engine.State{ThreadID: cfg.ThreadID}, nil
	}
	return a.state, nil
}

type fakeRegistry map[string]engine.Agent

func (r fakeRegistry) Get(key string) (engine.Agent, error) {
	a, ok := r[key]
	if !ok {
		return nil, agents.ErrAgentNotFound
	}
	return a, nil
}

func (r fakeRegistry) Infos() []agents.Info {
	return []agents.Info{{Key: agents.DefaultAgent, Description: "default"}}
}

func (r fakeRegistry) Default() string { return agents.DefaultAgent }

type fakeTelemetry struct {
	got *telemetry.Feedback
	err error
}

func (f *fakeTelemetry) CreateFeedback(_ context.Context, fb *telemetry.Feedback) error {
	f.got = fb
	return f.err
}

func newTestService(a engine.Agent) *Service {
	return NewService(fakeRegistry{agents.DefaultAgent: a}, &fakeTelemetry{}, Config{
		DefaultModel:    "gpt-4o-mini",
		AvailableModels: []string{"gpt-4o-mini", "deepseek-chat", "gpt-4o"},
	}, nil)
}

func drain(t *testing.T, ch <-chan Frame) []Frame {
	t.Helper()
	var frames []Frame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, f)
		case <-timeout:
			t.Fatal("stream did not finish")
		}
	}
}

func step(node string, msgs ...*schema.Message) *engine.Event {
	return &engine.Event{Kind: engine.KindStepEnd, Node: node, Tags: engine.NewTagSet(), Output: &engine.StepOutput{Messages: msgs}}
}

func token(text string, tags ...string) *engine.Event {
	return &engine.Event{Kind: engine.KindTokenDelta, Node: "model", Tags: engine.NewTagSet(tags...), Chunk: &schema.Message{Role: schema.Assistant, Content: text}}
}

func TestParseInput(t *testing.T) {
	svc := newTestService(&scriptedAgent{})

	input, cfg, err := svc.parseInput(&UserInput{Message: "hello"})
	require.NoError(t, err)
	require.Len(t, input.Messages, 1)
	assert.Equal(t, schema.User, input.Messages[0].Role)
	assert.Equal(t, "hello", input.Messages[0].Content)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	_, err = uuid.Parse(cfg.ThreadID)
	assert.NoError(t, err)
	_, err = uuid.Parse(cfg.RunID)
	assert.NoError(t, err)

	_, cfg, err = svc.parseInput(&UserInput{
		Message:     "hello",
		ThreadID:    "t1",
		Model:       "gpt-4o",
		AgentConfig: map[string]any{"spicy_level": 0.8},
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.ThreadID)
	assert.Equal(t, map[string]any{"thread_id": "t1", "model": "gpt-4o", "spicy_level": 0.8}, cfg.Configurable)

	_, cfg2, err := svc.parseInput(&UserInput{Message: "hello", ThreadID: "t1"})
	require.NoError(t, err)
	assert.NotEqual(t, cfg.RunID, cfg2.RunID)
}

func TestParseInput_ReservedKeys(t *testing.T) {
	svc := newTestService(&scriptedAgent{})

	_, _, err := svc.parseInput(&UserInput{
		Message:     "hello",
		AgentConfig: map[string]any{"model": "x", "thread_id": "y", "ok": 1},
	})
	var rk *ReservedKeyError
	require.ErrorAs(t, err, &rk)
	assert.Equal(t, []string{"model", "thread_id"}, rk.Keys)
	assert.Contains(t, err.Error(), "agent_config contains reserved keys")
}

func TestInvoke(t *testing.T) {
	a := &scriptedAgent{state: &engine.State{Messages: []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("Hello!", nil),
	}}}
	svc := newTestService(a)

	out, err := svc.Invoke(context.Background(), "", &UserInput{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, TypeAI, out.Type)
	assert.Equal(t, "Hello!", out.Content)
	assert.Equal(t, a.lastConfig().RunID, out.RunID)
}

func TestInvoke_Errors(t *testing.T) {
	ctx := context.Background()

	svc := newTestService(&scriptedAgent{})
	_, err := svc.Invoke(ctx, "missing", &UserInput{Message: "hi"})
	assert.ErrorIs(t, err, agents.ErrAgentNotFound)

	_, err = svc.Invoke(ctx, "", &UserInput{Message: "hi", AgentConfig: map[string]any{"thread_id": "x"}})
	var rk *ReservedKeyError
	assert.ErrorAs(t, err, &rk)

	svc = newTestService(&scriptedAgent{invokeErr: errors.New("model exploded with secret details")})
	_, err = svc.Invoke(ctx, "", &UserInput{Message: "hi"})
	assert.ErrorIs(t, err, ErrRunFailed)
	assert.NotContains(t, err.Error(), "secret")

	svc = newTestService(&scriptedAgent{state: &engine.State{Messages: []*schema.Message{schema.SystemMessage("sys")}}})
	_, err = svc.Invoke(ctx, "", &UserInput{Message: "hi"})
	assert.ErrorIs(t, err, ErrRunFailed)
}

func TestStream(t *testing.T) {
	toolOnly := &engine.Event{Kind: engine.KindTokenDelta, Node: "model", Tags: engine.NewTagSet(), Chunk: &schema.Message{
		Role:      schema.Assistant,
		ToolCalls: []schema.ToolCall{{ID: "c1", Function: schema.FunctionCall{Name: "calculator", Arguments: "{}"}}},
	}}
	command := &engine.Event{Kind: engine.KindStepEnd, Node: "node_a", Tags: engine.NewTagSet(), Command: &engine.Command{
		Goto:   "node_b",
		Update: engine.StepOutput{Messages: []*schema.Message{schema.AssistantMessage("Routed", nil)}},
	}}
	custom := &engine.Event{Kind: engine.KindCustom, Tags: engine.NewTagSet(engine.TagCustomDispatch),
		Custom: engine.NewCustomMessage(map[string]any{"state": "new"})}
	untagged := &engine.Event{Kind: engine.KindCustom, Tags: engine.NewTagSet(),
		Custom: engine.NewCustomMessage(map[string]any{"state": "ignored"})}

	a := &scriptedAgent{events: []*engine.Event{
		step(engine.Start, schema.UserMessage("hi")),
		token("Hel"),
		token(""),
		toolOnly,
		token("unsafe", engine.TagSafety),
		token("lo"),
		step("model", schema.AssistantMessage("Hello", nil)),
		command,
		custom,
		untagged,
		step("broken", schema.SystemMessage("sys")),
		{Kind: engine.KindOther},
	}}
	svc := newTestService(a)

	ch, err := svc.Stream(context.Background(), "", &StreamInput{UserInput: UserInput{Message: "hi"}})
	require.NoError(t, err)
	frames := drain(t, ch)

	runID := a.lastConfig().RunID
	require.Len(t, frames, 7)
	assert.Equal(t, tokenFrame("Hel"), frames[0])
	assert.Equal(t, tokenFrame("lo"), frames[1])

	for i, want := range []string{"Hello", "Routed"} {
		f := frames[2+i]
		require.Equal(t, FrameMessage, f.Type)
		cm := f.Content.(*ChatMessage)
		assert.Equal(t, want, cm.Content)
		assert.Equal(t, runID, cm.RunID)
	}

	require.Equal(t, FrameMessage, frames[4].Type)
	cm := frames[4].Content.(*ChatMessage)
	assert.Equal(t, TypeCustom, cm.Type)
	assert.Equal(t, runID, cm.RunID)

	assert.Equal(t, ErrorFrame("Unexpected error"), frames[5])
	assert.True(t, frames[6].IsDone())
}

func TestStream_NoTokens(t *testing.T) {
	a := &scriptedAgent{events: []*engine.Event{token("Hel"), step("model", schema.AssistantMessage("Hello", nil))}}
	svc := newTestService(a)

	off := false
	ch, err := svc.Stream(context.Background(), "", &StreamInput{UserInput: UserInput{Message: "hi"}, StreamTokens: &off})
	require.NoError(t, err)
	frames := drain(t, ch)

	require.Len(t, frames, 2)
	assert.Equal(t, FrameMessage, frames[0].Type)
	assert.True(t, frames[1].IsDone())
}

func TestStream_EngineError(t *testing.T) {
	a := &scriptedAgent{
		events:    []*engine.Event{step("model", schema.AssistantMessage("partial", nil))},
		streamErr: errors.New("boom"),
	}
	svc := newTestService(a)

	ch, err := svc.Stream(context.Background(), "", &StreamInput{UserInput: UserInput{Message: "hi"}})
	require.NoError(t, err)
	frames := drain(t, ch)

	require.Len(t, frames, 3)
	assert.Equal(t, FrameMessage, frames[0].Type)
	assert.Equal(t, ErrorFrame("Unexpected error"), frames[1])
	assert.True(t, frames[2].IsDone())
}

func TestStream_PreStreamErrors(t *testing.T) {
	svc := newTestService(&scriptedAgent{})

	_, err := svc.Stream(context.Background(), "missing", &StreamInput{UserInput: UserInput{Message: "hi"}})
	assert.ErrorIs(t, err, agents.ErrAgentNotFound)

	_, err = svc.Stream(context.Background(), "", &StreamInput{UserInput: UserInput{Message: "hi", AgentConfig: map[string]any{"model": "x"}}})
	var rk *ReservedKeyError
	assert.ErrorAs(t, err, &rk)
}

func TestStream_ConsumerGone(t *testing.T) {
	a := &scriptedAgent{
		events:  []*engine.Event{token("tick")},
		endless: true,
		stopped: make(chan struct{}),
	}
	svc := newTestService(a)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := svc.Stream(ctx, "", &StreamInput{UserInput: UserInput{Message: "hi"}})
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, tokenFrame("tick"), first)
	cancel()

	drain(t, ch)
	select {
	case <-a.stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("engine stream was not closed")
	}
}

func TestStream_FrameCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	frames := NewFrameCounter(reg)
	a := &scriptedAgent{events: []*engine.Event{token("a"), token("b"), step("model", schema.AssistantMessage("ab", nil))}}
	svc := NewService(fakeRegistry{agents.DefaultAgent: a}, &fakeTelemetry{}, Config{DefaultModel: "m"}, frames)

	ch, err := svc.Stream(context.Background(), "", &StreamInput{UserInput: UserInput{Message: "hi"}})
	require.NoError(t, err)
	drain(t, ch)

	assert.Equal(t, 2.0, promtest.ToFloat64(frames.WithLabelValues("token")))
	assert.Equal(t, 1.0, promtest.ToFloat64(frames.WithLabelValues("message")))
	assert.Equal(t, 1.0, promtest.ToFloat64(frames.WithLabelValues("done")))
}

func TestFeedback(t *testing.T) {
	tc := &fakeTelemetry{}
	svc := NewService(fakeRegistry{}, tc, Config{}, nil)

	score := 0.8
	resp, err := svc.Feedback(context.Background(), &FeedbackRequest{
		RunID:  "run-1",
		Key:    "human-feedback-stars",
		Score:  &score,
		Kwargs: map[string]any{"comment": "good"},
	})
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, &telemetry.Feedback{RunID: "run-1", Key: "human-feedback-stars", Score: 0.8, Kwargs: map[string]any{"comment": "good"}}, tc.got)

	tc.err = errors.New("unreachable")
	_, err = svc.Feedback(context.Background(), &FeedbackRequest{RunID: "run-1", Key: "k", Score: &score})
	assert.Error(t, err)
}

func TestFeedback_Rejected(t *testing.T) {
	zero := 0.0
	tests := []struct {
		name    string
		req     *FeedbackRequest
		wantErr error
		keys    []string
	}{
		{name: "missing score", req: &FeedbackRequest{RunID: "run-1", Key: "k"}, wantErr: ErrMissingScore},
		{
			name: "reserved kwargs",
			req:  &FeedbackRequest{RunID: "run-1", Key: "k", Score: &zero, Kwargs: map[string]any{"score": 1, "run_id": "x", "note": "ok"}},
			keys: []string{"run_id", "score"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := &fakeTelemetry{}
			svc := NewService(fakeRegistry{}, tc, Config{}, nil)

			_, err := svc.Feedback(context.Background(), tt.req)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.keys != nil {
				var rk *ReservedKeyError
				require.ErrorAs(t, err, &rk)
				assert.Equal(t, "kwargs", rk.Field)
				assert.Equal(t, tt.keys, rk.Keys)
			}
			assert.Nil(t, tc.got)
		})
	}
}

func TestProducer_SendAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Frame, 1)
	p := &producer{ctx: ctx, out: out}
	for i := 0; i < 100; i++ {
		assert.False(t, p.send(tokenFrame("late")))
	}
	assert.Empty(t, out)
}

func TestHistory(t *testing.T) {
	a := &scriptedAgent{state: &engine.State{ThreadID: "t1", Messages: []*schema.Message{
		schema.UserMessage("hi"),
		schema.AssistantMessage("Hello", nil),
	}}}
	svc := newTestService(a)

	h, err := svc.History(context.Background(), &HistoryRequest{ThreadID: "t1"})
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, TypeHuman, h.Messages[0].Type)
	assert.Equal(t, TypeAI, h.Messages[1].Type)
	assert.Equal(t, "t1", a.lastConfig().ThreadID)
}

func TestHistory_EmptyThread(t *testing.T) {
	svc := newTestService(&scriptedAgent{})

	h, err := svc.History(context.Background(), &HistoryRequest{ThreadID: "unknown"})
	require.NoError(t, err)
	assert.NotNil(t, h.Messages)
	assert.Empty(t, h.Messages)
}

func TestHistory_Errors(t *testing.T) {
	svc := newTestService(&scriptedAgent{stateErr: errors.New("db down")})
	_, err := svc.History(context.Background(), &HistoryRequest{ThreadID: "t1"})
	assert.ErrorIs(t, err, ErrHistory)

	svc = newTestService(&scriptedAgent{state: &engine.State{Messages: []*schema.Message{schema.SystemMessage("x")}}})
	_, err = svc.History(context.Background(), &HistoryRequest{ThreadID: "t1"})
	assert.ErrorIs(t, err, ErrHistory)
}

func TestInfo(t *testing.T) {
	svc := newTestService(&scriptedAgent{})

	info := svc.Info()
	assert.Equal(t, []string{"deepseek-chat", "gpt-4o", "gpt-4o-mini"}, info.Models)
	assert.Equal(t, agents.DefaultAgent, info.DefaultAgent)
	assert.Equal(t, "gpt-4o-mini", info.DefaultModel)
	require.Len(t, info.Agents, 1)
	assert.Equal(t, agents.DefaultAgent, info.Agents[0].Key)
}
