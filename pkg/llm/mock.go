package llm

import (
	"context"
	"sync"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
)

// MockProvider is a scripted Provider for tests. Responses are consumed in
// order; the last one repeats once the script is exhausted.
type MockProvider struct {
	mu        sync.Mutex
	responses []*Response
	index     int

	// Requests records every call for assertions.
	Requests [][]*protocol.Message

	// Err, when set, is returned by every Generate call.
	Err error
}

func NewMockProvider(responses ...*Response) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(ctx context.Context, messages []*protocol.Message, tools []ToolDefinition) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, messages)

	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.responses) == 0 {
		return &Response{Text: ""}, nil
	}
	resp := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}
	return resp, nil
}

func (m *MockProvider) ModelName() string { return "mock" }

func (m *MockProvider) Close() error { return nil }

// CallCount returns the number of Generate calls made so far.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
