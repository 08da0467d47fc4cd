package hooks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

// Contribution is what one prompt contributor emits for a model request.
type Contribution struct {
	SystemPrepend   string
	SystemAppend    string
	MessagesPrepend []*protocol.Message
	MessagesAppend  []*protocol.Message
}

// PromptContributor assembles prompt text from state at BEFORE_MODEL.
// Lower priority runs earlier.
type PromptContributor interface {
	Name() string
	Priority() int
	Contribute(st *state.State) (*Contribution, error)
}

// ContributorManager aggregates contributors sorted by ascending priority
// into a single contribution.
type ContributorManager struct {
	contributors []PromptContributor
}

func NewContributorManager() *ContributorManager {
	return &ContributorManager{}
}

func (m *ContributorManager) Register(c PromptContributor) error {
	if c == nil {
		return fmt.Errorf("prompt contributor cannot be nil")
	}
	if c.Name() == "" {
		return fmt.Errorf("prompt contributor name cannot be empty")
	}
	for _, existing := range m.contributors {
		if existing.Name() == c.Name() {
			return fmt.Errorf("prompt contributor '%s' already registered", c.Name())
		}
	}
	m.contributors = append(m.contributors, c)
	sort.SliceStable(m.contributors, func(i, j int) bool {
		return m.contributors[i].Priority() < m.contributors[j].Priority()
	})
	return nil
}

// Assemble runs every contributor in priority order and merges their
// output. A failing contributor is skipped.
func (m *ContributorManager) Assemble(st *state.State) *Contribution {
	merged := &Contribution{}
	var systemPrepends, systemAppends []string

	for _, c := range m.contributors {
		contrib, err := c.Contribute(st)
		if err != nil || contrib == nil {
			continue
		}
		if contrib.SystemPrepend != "" {
			systemPrepends = append(systemPrepends, contrib.SystemPrepend)
		}
		if contrib.SystemAppend != "" {
			systemAppends = append(systemAppends, contrib.SystemAppend)
		}
		merged.MessagesPrepend = append(merged.MessagesPrepend, contrib.MessagesPrepend...)
		merged.MessagesAppend = append(merged.MessagesAppend, contrib.MessagesAppend...)
	}

	merged.SystemPrepend = strings.Join(systemPrepends, "\n\n")
	merged.SystemAppend = strings.Join(systemAppends, "\n\n")
	return merged
}

// ModelRequest is the outgoing request the interceptor rewrites.
type ModelRequest struct {
	System   string
	Messages []*protocol.Message
}

// Merge folds a contribution into the request. System texts concatenate
// with blank-line separators; contributed messages wrap the existing list.
// No additional system messages are ever injected into Messages.
func (r *ModelRequest) Merge(c *Contribution) {
	if c == nil {
		return
	}

	var systemParts []string
	if c.SystemPrepend != "" {
		systemParts = append(systemParts, c.SystemPrepend)
	}
	if r.System != "" {
		systemParts = append(systemParts, r.System)
	}
	if c.SystemAppend != "" {
		systemParts = append(systemParts, c.SystemAppend)
	}
	r.System = strings.Join(systemParts, "\n\n")

	if len(c.MessagesPrepend) > 0 || len(c.MessagesAppend) > 0 {
		messages := make([]*protocol.Message, 0, len(c.MessagesPrepend)+len(r.Messages)+len(c.MessagesAppend))
		messages = append(messages, c.MessagesPrepend...)
		messages = append(messages, r.Messages...)
		messages = append(messages, c.MessagesAppend...)
		r.Messages = messages
	}
}

// ContributorFunc adapts a function into a PromptContributor.
type ContributorFunc struct {
	ContributorName string
	Prio            int
	Fn              func(st *state.State) (*Contribution, error)
}

func (c *ContributorFunc) Name() string  { return c.ContributorName }
func (c *ContributorFunc) Priority() int { return c.Prio }
func (c *ContributorFunc) Contribute(st *state.State) (*Contribution, error) {
	if c.Fn == nil {
		return nil, nil
	}
	return c.Fn(st)
}
