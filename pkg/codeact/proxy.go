// Package codeact bridges generated code and the tool layer. Snippets run
// inside an embedded interpreter; every tool call and state access they
// make crosses back through the proxies here, so the Go side stays the
// single source of truth for tools, state, and observed schemas.
package codeact

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// ToolProxy is the call surface exposed to running snippets. Tool failures
// come back as an error envelope in the payload, never as a Go error:
// generated code handles `{"error": ...}` results, while a missing tool is
// a bug in the snippet and surfaces as a hard error.
type ToolProxy struct {
	registry *tool.Registry
	observer *tool.Observer
}

func NewToolProxy(registry *tool.Registry, observer *tool.Observer) (*ToolProxy, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required")
	}
	return &ToolProxy{registry: registry, observer: observer}, nil
}

// Call invokes a tool by name (aliases resolve) with a JSON argument
// object and returns the result payload as JSON. The result shape is
// published to the schema observer after the call returns.
func (p *ToolProxy) Call(ctx context.Context, name, argsJSON string) (string, error) {
	rec, err := p.registry.ToolByAlias(name)
	if err != nil {
		return "", fmt.Errorf("Tool not found: %s", name)
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return p.errorEnvelope(name, fmt.Errorf("invalid arguments: %w", err)), nil
		}
	}

	result, err := rec.Call(ctx, args)
	if err != nil {
		return p.errorEnvelope(name, err), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return p.errorEnvelope(name, fmt.Errorf("result not serializable: %w", err)), nil
	}

	p.observe(name, string(payload), true)
	return string(payload), nil
}

// errorEnvelope wraps a tool failure for the snippet and records it as a
// failed observation.
func (p *ToolProxy) errorEnvelope(name string, callErr error) string {
	slog.Debug("Tool call failed", "tool", name, "error", callErr)
	payload, err := json.Marshal(map[string]any{"error": callErr.Error()})
	if err != nil {
		payload = []byte(`{"error": "tool call failed"}`)
	}
	p.observe(name, string(payload), false)
	return string(payload)
}

func (p *ToolProxy) observe(name, payload string, success bool) {
	if p.observer != nil {
		p.observer.Publish(name, payload, success)
	}
}

// Has reports whether a tool (or alias) is callable.
func (p *ToolProxy) Has(name string) bool {
	_, err := p.registry.ToolByAlias(name)
	return err == nil
}

// List returns the callable tool names in registration order.
func (p *ToolProxy) List() []string {
	return p.registry.Names()
}

// StateProxy exposes the turn state to running snippets.
type StateProxy struct {
	state *state.State
}

func NewStateProxy(s *state.State) (*StateProxy, error) {
	if s == nil {
		return nil, fmt.Errorf("state is required")
	}
	return &StateProxy{state: s}, nil
}

func (p *StateProxy) Get(key string) (any, bool) {
	return p.state.Get(key)
}

func (p *StateProxy) Set(key string, value any) {
	p.state.Set(key, value)
}

func (p *StateProxy) Has(key string) bool {
	return p.state.Has(key)
}

// All returns a point-in-time copy of the state.
func (p *StateProxy) All() map[string]any {
	return p.state.Snapshot()
}
