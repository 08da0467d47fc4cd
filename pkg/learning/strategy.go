// Package learning watches completed turns for reusable signal and
// distills it into experience records. Extraction rides a dedicated
// worker pool so a slow judge never blocks the agent.
package learning

import (
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// TriggerContext is what a strategy sees when deciding whether a turn is
// worth learning from.
type TriggerContext struct {
	Position     hooks.Position
	Conversation []*protocol.Message
	ToolCalls    []*ToolTrace
	State        *state.State
}

// ToolTrace is one observed tool invocation.
type ToolTrace struct {
	Tool    string
	Success bool
}

// Decision is a strategy's verdict for one trigger.
type Decision struct {
	Extract bool
	Async   bool
}

// Strategy decides whether and how to extract from a trigger context.
type Strategy interface {
	Decide(tc *TriggerContext) Decision
}

// DefaultStrategy extracts asynchronously whenever the turn carries any
// signal: generated code, tool calls, execution history, or at least two
// user/assistant exchanges.
type DefaultStrategy struct{}

func (DefaultStrategy) Decide(tc *TriggerContext) Decision {
	if tc == nil {
		return Decision{}
	}
	if len(tc.ToolCalls) > 0 {
		return Decision{Extract: true, Async: true}
	}
	if tc.State != nil {
		if len(tc.State.GeneratedCode()) > 0 || len(tc.State.ExecutionHistory()) > 0 {
			return Decision{Extract: true, Async: true}
		}
	}
	if exchanges(tc.Conversation) >= 2 {
		return Decision{Extract: true, Async: true}
	}
	return Decision{}
}

// exchanges counts completed user→assistant pairs.
func exchanges(messages []*protocol.Message) int {
	count := 0
	sawUser := false
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleUser:
			sawUser = true
		case protocol.RoleAssistant:
			if sawUser {
				count++
				sawUser = false
			}
		}
	}
	return count
}

// TracesFromHistory derives tool traces from the turn's execution records.
func TracesFromHistory(records []*protocol.ExecutionRecord) []*ToolTrace {
	out := make([]*ToolTrace, 0, len(records))
	for _, r := range records {
		out = append(out, &ToolTrace{Tool: r.FunctionName, Success: r.Success})
	}
	return out
}

// languageOf maps the state's language key onto a known stub language,
// defaulting to python.
func languageOf(st *state.State) tool.Language {
	if st == nil {
		return tool.LangPython
	}
	switch tool.Language(st.Language()) {
	case tool.LangJavaScript:
		return tool.LangJavaScript
	default:
		return tool.LangPython
	}
}
