// Package llm defines the chat-completion seam the runtime consumes.
//
// The runtime never depends on a concrete model vendor; components receive
// a Provider and treat it as opaque. An OpenAI-compatible HTTP provider is
// included for wiring, and tests use MockProvider.
package llm

import (
	"context"
	"fmt"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/registry"
)

// ToolDefinition is the vendor-neutral tool description handed to a model.
// Parameters is a JSON-Schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Response is the outcome of one model call: either assistant text (which
// may contain a fenced code block in CodeAct mode) or tool calls.
type Response struct {
	Text      string
	ToolCalls []*protocol.ToolCall
	Tokens    int
}

// Provider performs chat completions.
type Provider interface {
	// Generate performs a non-streaming request.
	Generate(ctx context.Context, messages []*protocol.Message, tools []ToolDefinition) (*Response, error)

	ModelName() string

	Close() error
}

// Registry holds named providers.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

func (r *Registry) RegisterProvider(name string, provider Provider) error {
	if provider == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(name, provider)
}
