// Package engine 实现 Agent 执行引擎
// 每个 Agent 是一张 eino 图，节点执行时向订阅方发出事件，线程状态通过 Store 持久化
package engine

import "github.com/cloudwego/eino/schema"

// Kind 事件类别
type Kind int

const (
	// KindOther 订阅方无需关心的内部事件
	KindOther Kind = iota
	// KindStepEnd 图节点执行结束，携带该步新增的消息
	KindStepEnd
	// KindTokenDelta 模型流式输出的增量片段
	KindTokenDelta
	// KindCustom 应用层自定义派发的消息
	KindCustom
)

func (k Kind) String() string {
	switch k {
	case KindStepEnd:
		return "step_end"
	case KindTokenDelta:
		return "token_delta"
	case KindCustom:
		return "custom"
	default:
		return "other"
	}
}

// 事件标签
const (
	// TagCustomDispatch 自定义派发事件
	TagCustomDispatch = "custom_data_dispatch"
	// TagSafety 安全审核子模型产生的事件
	TagSafety = "llama_guard"
)

// RoleCustom 自定义消息角色，负载放在 Extra[CustomDataKey]
const (
	RoleCustom    schema.RoleType = "custom"
	CustomDataKey                 = "custom_data"
)

// TagSet 标签集合
type TagSet map[string]struct{}

// NewTagSet 创建标签集合
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Has 判断是否包含标签
func (t TagSet) Has(tag string) bool {
	_, ok := t[tag]
	return ok
}

// StepOutput 节点输出
type StepOutput struct {
	Messages []*schema.Message
}

// Command 带路由指令的节点输出
type Command struct {
	Goto   string
	Update StepOutput
}

// Event 引擎事件
// Kind 决定哪些字段有效：
//   - KindStepEnd: Output 或 Command 二选一
//   - KindTokenDelta: Chunk
//   - KindCustom: Custom
type Event struct {
	Kind    Kind
	Node    string
	Tags    TagSet
	Output  *StepOutput
	Command *Command
	Chunk   *schema.Message
	Custom  *schema.Message
}

// StepMessages 返回节点结束事件中新增的消息
func (e *Event) StepMessages() []*schema.Message {
	switch {
	case e.Command != nil:
		return e.Command.Update.Messages
	case e.Output != nil:
		return e.Output.Messages
	default:
		return nil
	}
}

// NewCustomMessage 构造自定义派发消息
func NewCustomMessage(data map[string]any) *schema.Message {
	return &schema.Message{
		Role:  RoleCustom,
		Extra: map[string]any{CustomDataKey: data},
	}
}
