package learning

import (
	"context"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

// Hook adapts the learning service to the hook pipeline. It fires at
// AFTER_AGENT by default and never writes state or jumps.
type Hook struct {
	service   *Service
	positions []hooks.Position
}

func NewHook(service *Service, positions ...hooks.Position) (*Hook, error) {
	if len(positions) == 0 {
		positions = []hooks.Position{hooks.AfterAgent}
	}
	return &Hook{service: service, positions: positions}, nil
}

func (h *Hook) Name() string { return "learning" }

func (h *Hook) Positions() []hooks.Position { return h.positions }

func (h *Hook) AllowedJumps() []string { return nil }

func (h *Hook) Run(ctx context.Context, pos hooks.Position, st *state.State, cfg map[string]any) (*hooks.Result, error) {
	tc := &TriggerContext{
		Position:     pos,
		Conversation: st.Messages(),
		ToolCalls:    TracesFromHistory(st.ExecutionHistory()),
		State:        st,
	}
	h.service.OnTrigger(ctx, tc)
	return nil, nil
}
