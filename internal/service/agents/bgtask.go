package agents

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/ashwinyue/next-agent/internal/service/engine"
)

// 后台任务状态
const (
	TaskStateNew      = "new"
	TaskStateRunning  = "running"
	TaskStateComplete = "complete"
)

// task 以自定义消息派发进度的后台任务
type task struct {
	name  string
	runID string
	node  string
	state string
}

func newTask(name, node string) *task {
	return &task{name: name, runID: uuid.New().String(), node: node}
}

func (t *task) dispatch(ctx context.Context, result string, data map[string]any) {
	payload := map[string]any{
		"name":   t.name,
		"run_id": t.runID,
		"state":  t.state,
		"data":   data,
	}
	if result != "" {
		payload["result"] = result
	}
	engine.DispatchCustom(ctx, t.node, engine.NewCustomMessage(payload))
}

func (t *task) start(ctx context.Context, data map[string]any) {
	t.state = TaskStateNew
	t.dispatch(ctx, "", data)
}

func (t *task) write(ctx context.Context, data map[string]any) {
	t.state = TaskStateRunning
	t.dispatch(ctx, "", data)
}

func (t *task) finish(ctx context.Context, result string, data map[string]any) {
	t.state = TaskStateComplete
	t.dispatch(ctx, result, data)
}

// sleep 等待 d，context 结束时提前返回错误
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newBgTaskAgent(deps Deps) *engine.Graph {
	return engine.NewGraph("bg-task-agent").
		AddNode("bg_activities", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			delay := deps.TaskStepDelay
			t1 := newTask("Simple task 1...", "bg_activities")
			t2 := newTask("Simple task 2...", "bg_activities")

			steps := []func(){
				func() { t1.start(ctx, nil) },
				func() { t2.start(ctx, nil) },
				func() { t1.write(ctx, map[string]any{"status": "Still running..."}) },
				func() { t2.finish(ctx, "error", map[string]any{"output": 42}) },
				func() { t1.finish(ctx, "success", map[string]any{"output": 42}) },
			}
			for i, step := range steps {
				if i > 0 {
					if err := sleep(ctx, delay); err != nil {
						return nil, err
					}
				}
				step()
			}
			return nil, nil
		}).
		AddNode("model", func(ctx context.Context, s *engine.State) (*engine.Update, error) {
			m, err := chatModel(ctx, deps)
			if err != nil {
				return nil, err
			}
			msg, err := engine.StreamModel(ctx, "model", m, s.Messages, nil)
			if err != nil {
				return nil, err
			}
			return &engine.Update{Messages: []*schema.Message{msg}}, nil
		}).
		AddEdge(engine.Start, "bg_activities").
		AddEdge("bg_activities", "model").
		AddEdge("model", engine.End)
}
