// Package hooks implements ordered interception around agent and model
// steps. Hooks register once, fire at their declared positions in
// registration order, and communicate through the shared turn state.
package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

// Position is one of the four interception points.
type Position string

const (
	BeforeAgent Position = "BEFORE_AGENT"
	AfterAgent  Position = "AFTER_AGENT"
	BeforeModel Position = "BEFORE_MODEL"
	AfterModel  Position = "AFTER_MODEL"
)

// Result is what a hook returns: state updates to apply and an optional
// jump to a labeled downstream node.
type Result struct {
	Updates map[string]any
	Jump    string
}

// Hook observes one or more pipeline positions. cfg is the static
// configuration attached at registration, nil when none was given.
type Hook interface {
	Name() string
	Positions() []Position

	// AllowedJumps lists the labels this hook may jump to. A jump to any
	// other label is ignored with a warning.
	AllowedJumps() []string

	Run(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error)
}

// Base is a no-op hook meant for embedding; override what you need.
type Base struct {
	HookName      string
	HookPositions []Position
}

func (b *Base) Name() string           { return b.HookName }
func (b *Base) Positions() []Position  { return b.HookPositions }
func (b *Base) AllowedJumps() []string { return nil }
func (b *Base) Run(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
	return nil, nil
}

// Func adapts a plain function into a Hook.
type Func struct {
	FuncName string
	At       []Position
	Jumps    []string
	RunFunc  func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error)
}

func (f *Func) Name() string           { return f.FuncName }
func (f *Func) Positions() []Position  { return f.At }
func (f *Func) AllowedJumps() []string { return f.Jumps }
func (f *Func) Run(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
	if f.RunFunc == nil {
		return nil, nil
	}
	return f.RunFunc(ctx, pos, st, cfg)
}

// entry pairs a hook with the config it was registered with.
type entry struct {
	hook Hook
	cfg  map[string]any
}

// Pipeline holds registered hooks per position and runs them in
// registration order. Hooks are sequential: each observes all state
// writes of the hooks before it.
type Pipeline struct {
	hooks   map[Position][]entry
	timeout time.Duration
	onRun   func(hook string, pos Position, err error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHookTimeout bounds each individual hook invocation. The default is
// no timeout.
func WithHookTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithRunObserver installs a callback fired after every hook invocation
// with the outcome, for instrumentation.
func WithRunObserver(fn func(hook string, pos Position, err error)) Option {
	return func(p *Pipeline) { p.onRun = fn }
}

func NewPipeline(opts ...Option) *Pipeline {
	p := &Pipeline{hooks: make(map[Position][]entry)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a hook at every position it declares.
func (p *Pipeline) Register(h Hook) error {
	return p.RegisterWith(h, nil)
}

// RegisterWith adds a hook with a static config handed to every Run.
func (p *Pipeline) RegisterWith(h Hook, cfg map[string]any) error {
	if h == nil {
		return fmt.Errorf("hook cannot be nil")
	}
	if h.Name() == "" {
		return fmt.Errorf("hook name cannot be empty")
	}
	positions := h.Positions()
	if len(positions) == 0 {
		return fmt.Errorf("hook '%s' declares no positions", h.Name())
	}
	for _, pos := range positions {
		switch pos {
		case BeforeAgent, AfterAgent, BeforeModel, AfterModel:
		default:
			return fmt.Errorf("hook '%s' declares unknown position '%s'", h.Name(), pos)
		}
	}
	for _, pos := range positions {
		p.hooks[pos] = append(p.hooks[pos], entry{hook: h, cfg: cfg})
	}
	return nil
}

// Hooks returns the hooks registered at pos, in registration order.
func (p *Pipeline) Hooks(pos Position) []Hook {
	entries := p.hooks[pos]
	out := make([]Hook, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.hook)
	}
	return out
}

// Run fires every hook at pos. Hook errors are logged and skipped; the
// pipeline continues. The returned jump is the first allowed jump any
// hook requested, or "".
func (p *Pipeline) Run(ctx context.Context, pos Position, st *state.State) (string, error) {
	for _, e := range p.hooks[pos] {
		h := e.hook
		if err := ctx.Err(); err != nil {
			return "", err
		}

		result, err := p.runOne(ctx, e, pos, st)
		if p.onRun != nil {
			p.onRun(h.Name(), pos, err)
		}
		if err != nil {
			slog.Warn("Hook failed, continuing pipeline",
				"hook", h.Name(),
				"position", pos,
				"error", err)
			continue
		}
		if result == nil {
			continue
		}

		if len(result.Updates) > 0 {
			st.Apply(result.Updates)
		}

		if result.Jump != "" {
			if jumpAllowed(h, result.Jump) {
				return result.Jump, nil
			}
			slog.Warn("Hook requested disallowed jump, ignoring",
				"hook", h.Name(),
				"jump", result.Jump)
		}
	}
	return "", nil
}

func (p *Pipeline) runOne(ctx context.Context, e entry, pos Position, st *state.State) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return e.hook.Run(ctx, pos, st, e.cfg)
}

func jumpAllowed(h Hook, label string) bool {
	for _, allowed := range h.AllowedJumps() {
		if allowed == label {
			return true
		}
	}
	return false
}
