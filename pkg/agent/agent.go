// Package agent implements the React/CodeAct turn loop: hooks fire around
// the model, tool calls or generated code execute through the bridge, and
// the transcript lands in turn state for learning.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/codeact"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// Mode selects how the agent drives tools.
type Mode string

const (
	// ModeReact answers via native tool calls.
	ModeReact Mode = "react"

	// ModeCodeAct answers by synthesizing and executing a program.
	ModeCodeAct Mode = "codeact"
)

const defaultMaxIterations = 8

// Config carries the agent's construction parameters.
type Config struct {
	Mode          Mode
	SystemPrompt  string
	Language      tool.Language
	MaxIterations int
}

func (c *Config) setDefaults() {
	if c.Mode == "" {
		c.Mode = ModeReact
	}
	if c.Language == "" {
		c.Language = tool.LangPython
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}
}

// Agent composes the registry, bridge, hooks, and model into a turn loop.
type Agent struct {
	cfg          Config
	provider     llm.Provider
	tools        *tool.Registry
	stubs        *tool.StubRenderer
	pipeline     *hooks.Pipeline
	contributors *hooks.ContributorManager
	executor     codeact.Executor
	observer     *tool.Observer
	turnObs      func(time.Duration)
}

// Option configures optional collaborators.
type Option func(*Agent)

// WithExecutor attaches the code runtime (required for CodeAct). A fresh
// bridge is built around each turn's state.
func WithExecutor(e codeact.Executor) Option {
	return func(a *Agent) { a.executor = e }
}

// WithObserver attaches the schema observer fed by React tool calls.
func WithObserver(o *tool.Observer) Option {
	return func(a *Agent) { a.observer = o }
}

// WithContributors attaches the prompt contributor manager.
func WithContributors(m *hooks.ContributorManager) Option {
	return func(a *Agent) { a.contributors = m }
}

// WithTurnObserver installs a callback fired with the wall-clock duration
// of every completed turn.
func WithTurnObserver(fn func(time.Duration)) Option {
	return func(a *Agent) { a.turnObs = fn }
}

func New(cfg Config, provider llm.Provider, tools *tool.Registry, pipeline *hooks.Pipeline, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	if pipeline == nil {
		return nil, fmt.Errorf("hook pipeline is required")
	}
	cfg.setDefaults()

	a := &Agent{
		cfg:      cfg,
		provider: provider,
		tools:    tools,
		stubs:    tool.NewStubRenderer(tools),
		pipeline: pipeline,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cfg.Mode == ModeCodeAct && a.executor == nil {
		return nil, fmt.Errorf("codeact mode requires an executor")
	}
	return a, nil
}

// TurnResult is the outcome of one agent turn.
type TurnResult struct {
	Reply      string
	State      *state.State
	Iterations int
}

// Turn runs one full turn: BEFORE_AGENT, the model loop, AFTER_AGENT.
func (a *Agent) Turn(ctx context.Context, userInput string) (*TurnResult, error) {
	if a.turnObs != nil {
		start := time.Now()
		defer func() { a.turnObs(time.Since(start)) }()
	}

	st := state.New()
	st.Set(state.KeyUserInput, userInput)
	st.Set(state.KeyLanguage, string(a.cfg.Language))
	st.AppendMessage(protocol.NewUserMessage(userInput))

	var bridge *codeact.Bridge
	if a.cfg.Mode == ModeCodeAct {
		var err error
		bridge, err = codeact.NewBridge(a.executor, st)
		if err != nil {
			return nil, err
		}
	}

	if _, err := a.pipeline.Run(ctx, hooks.BeforeAgent, st); err != nil {
		return nil, err
	}

	reply, iterations, err := a.loop(ctx, st, bridge)
	if err != nil {
		return nil, err
	}

	if _, err := a.pipeline.Run(ctx, hooks.AfterAgent, st); err != nil {
		return nil, err
	}
	return &TurnResult{Reply: reply, State: st, Iterations: iterations}, nil
}

func (a *Agent) loop(ctx context.Context, st *state.State, bridge *codeact.Bridge) (string, int, error) {
	for i := 1; i <= a.cfg.MaxIterations; i++ {
		if _, err := a.pipeline.Run(ctx, hooks.BeforeModel, st); err != nil {
			return "", i, err
		}

		req, err := a.buildRequest(st)
		if err != nil {
			return "", i, err
		}

		messages := append([]*protocol.Message{protocol.NewSystemMessage(req.System)}, req.Messages...)
		var defs []llm.ToolDefinition
		if a.cfg.Mode == ModeReact {
			defs = a.toolDefinitions()
		}

		resp, err := a.provider.Generate(ctx, messages, defs)
		if err != nil {
			return "", i, fmt.Errorf("model call failed: %w", err)
		}

		if _, err := a.pipeline.Run(ctx, hooks.AfterModel, st); err != nil {
			return "", i, err
		}

		var reply string
		var done bool
		switch a.cfg.Mode {
		case ModeReact:
			reply, done = a.stepReact(ctx, st, resp)
		case ModeCodeAct:
			reply, done = a.stepCodeAct(ctx, st, bridge, resp)
		}
		if done {
			return reply, i, nil
		}
	}
	return "", a.cfg.MaxIterations, fmt.Errorf("turn did not converge after %d iterations", a.cfg.MaxIterations)
}

// buildRequest assembles the system text and message list, merging prompt
// contributions when a manager is attached.
func (a *Agent) buildRequest(st *state.State) (*hooks.ModelRequest, error) {
	system := a.cfg.SystemPrompt
	if a.cfg.Mode == ModeCodeAct {
		stubs, err := a.stubs.Render(a.cfg.Language)
		if err != nil {
			return nil, err
		}
		if stubs != "" {
			system = system + "\n\nAvailable tools:\n\n" + stubs
		}
	}

	req := &hooks.ModelRequest{System: system, Messages: st.Messages()}
	if a.contributors != nil {
		req.Merge(a.contributors.Assemble(st))
	}
	return req, nil
}

func (a *Agent) toolDefinitions() []llm.ToolDefinition {
	records := a.tools.All()
	defs := make([]llm.ToolDefinition, 0, len(records))
	for _, rec := range records {
		defs = append(defs, llm.ToolDefinition{
			Name:        rec.Definition.Name,
			Description: rec.Definition.Description,
			Parameters:  tool.ToJSONSchema(rec.Definition.Parameters),
		})
	}
	return defs
}

// stepReact executes native tool calls. A direct-reply tool terminates
// the turn with its output; otherwise tool results feed the next model
// call.
func (a *Agent) stepReact(ctx context.Context, st *state.State, resp *llm.Response) (string, bool) {
	if len(resp.ToolCalls) == 0 {
		st.AppendMessage(protocol.NewAssistantMessage(resp.Text))
		return resp.Text, true
	}

	st.AppendMessage(&protocol.Message{
		Role:      protocol.RoleAssistant,
		Content:   resp.Text,
		ToolCalls: resp.ToolCalls,
	})

	for _, call := range resp.ToolCalls {
		if reply, direct := a.executeToolCall(ctx, st, call); direct {
			return reply, true
		}
	}
	return "", false
}

func (a *Agent) executeToolCall(ctx context.Context, st *state.State, call *protocol.ToolCall) (string, bool) {
	id := call.ID
	if id == "" {
		id = uuid.NewString()
	}

	rec, err := a.tools.ToolByAlias(call.Name)
	if err != nil {
		a.appendToolResult(st, id, fmt.Sprintf(`{"error": "Tool not found: %s"}`, call.Name))
		return "", false
	}

	args := map[string]any{}
	if call.ArgsJSON != "" {
		if err := json.Unmarshal([]byte(call.ArgsJSON), &args); err != nil {
			a.appendToolResult(st, id, `{"error": "invalid tool arguments"}`)
			return "", false
		}
	}

	start := time.Now()
	result, err := rec.Call(ctx, args)
	execution := &protocol.ExecutionRecord{
		FunctionName: call.Name,
		StartedAt:    start,
		Duration:     time.Since(start),
	}

	var payload string
	if err != nil {
		payload = encodeToolPayload(map[string]any{"error": err.Error()})
		execution.Error = err.Error()
	} else {
		payload = encodeToolPayload(result)
		execution.Success = true
		execution.Result = payload
	}
	st.AppendExecutionRecord(execution)

	if a.observer != nil {
		a.observer.Publish(call.Name, payload, err == nil)
	}
	a.appendToolResult(st, id, payload)

	if err == nil && rec.Definition.DirectReply {
		return directReplyText(result, payload), true
	}
	return "", false
}

func encodeToolPayload(result map[string]any) string {
	data, err := json.Marshal(result)
	if err != nil {
		return `{"error": "tool result not serializable"}`
	}
	return string(data)
}

// directReplyText prefers the conventional content field over the raw
// payload.
func directReplyText(result map[string]any, payload string) string {
	if content, ok := result["content"].(string); ok && content != "" {
		return content
	}
	return payload
}

func (a *Agent) appendToolResult(st *state.State, callID, payload string) {
	st.AppendMessage(&protocol.Message{
		Role:       protocol.RoleTool,
		Content:    payload,
		ToolCallID: callID,
	})
}

var codeBlockRe = regexp.MustCompile("(?s)```(?:python|javascript|js)?\\s*\\n(.*?)```")

// stepCodeAct extracts the generated program, runs it through the bridge,
// and feeds the outcome back to the model. Plain text means the turn is
// done.
func (a *Agent) stepCodeAct(ctx context.Context, st *state.State, bridge *codeact.Bridge, resp *llm.Response) (string, bool) {
	code := extractCodeBlock(resp.Text)
	if code == "" {
		st.AppendMessage(protocol.NewAssistantMessage(resp.Text))
		return resp.Text, true
	}

	st.AppendMessage(protocol.NewAssistantMessage(resp.Text))
	st.AppendGeneratedCode(code)

	record, err := bridge.Run(ctx, a.cfg.Language, code, nil)
	if err != nil {
		// unparseable snippet: tell the model and let it retry
		slog.Debug("Snippet registration failed", "error", err)
		st.AppendMessage(protocol.NewUserMessage(fmt.Sprintf("The code could not be registered: %v", err)))
		return "", false
	}

	if record.Success {
		st.AppendMessage(protocol.NewUserMessage(fmt.Sprintf("Execution result:\n%s", record.Result)))
	} else {
		st.AppendMessage(protocol.NewUserMessage(fmt.Sprintf("Execution failed: %s\n%s", record.Error, record.Stack)))
	}
	return "", false
}

func extractCodeBlock(text string) string {
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
