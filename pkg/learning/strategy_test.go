package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

func TestDefaultStrategy_TriggersOnToolCalls(t *testing.T) {
	d := DefaultStrategy{}.Decide(&TriggerContext{
		ToolCalls: []*ToolTrace{{Tool: "lookup", Success: true}},
	})
	assert.True(t, d.Extract)
	assert.True(t, d.Async)
}

func TestDefaultStrategy_TriggersOnGeneratedCode(t *testing.T) {
	st := state.New()
	st.AppendGeneratedCode("def f(): pass")

	d := DefaultStrategy{}.Decide(&TriggerContext{State: st})
	assert.True(t, d.Extract)
}

func TestDefaultStrategy_TriggersOnExecutionHistory(t *testing.T) {
	st := state.New()
	st.AppendExecutionRecord(&protocol.ExecutionRecord{FunctionName: "f", Success: true})

	d := DefaultStrategy{}.Decide(&TriggerContext{State: st})
	assert.True(t, d.Extract)
}

func TestDefaultStrategy_TriggersOnConversation(t *testing.T) {
	conv := []*protocol.Message{
		protocol.NewUserMessage("q1"),
		protocol.NewAssistantMessage("a1"),
		protocol.NewUserMessage("q2"),
		protocol.NewAssistantMessage("a2"),
	}
	d := DefaultStrategy{}.Decide(&TriggerContext{Conversation: conv})
	assert.True(t, d.Extract)
}

func TestDefaultStrategy_SkipsTrivialTurn(t *testing.T) {
	d := DefaultStrategy{}.Decide(&TriggerContext{
		State: state.New(),
		Conversation: []*protocol.Message{
			protocol.NewUserMessage("hi"),
			protocol.NewAssistantMessage("hello"),
		},
	})
	assert.False(t, d.Extract)

	assert.False(t, DefaultStrategy{}.Decide(nil).Extract)
}

func TestTracesFromHistory(t *testing.T) {
	got := TracesFromHistory([]*protocol.ExecutionRecord{
		{FunctionName: "a", Success: true},
		{FunctionName: "b", Success: false},
	})
	assert.Equal(t, []*ToolTrace{
		{Tool: "a", Success: true},
		{Tool: "b", Success: false},
	}, got)
}
