package hooks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

func writerHook(name string, at Position, fn func(st *state.State) map[string]any) *Func {
	return &Func{
		FuncName: name,
		At:       []Position{at},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return &Result{Updates: fn(st)}, nil
		},
	}
}

func TestPipeline_OrderAndWriteThrough(t *testing.T) {
	p := NewPipeline()

	h1 := writerHook("h1", BeforeAgent, func(st *state.State) map[string]any {
		return map[string]any{"x": 1}
	})
	h2 := writerHook("h2", BeforeAgent, func(st *state.State) map[string]any {
		x, _ := st.Get("x")
		return map[string]any{"y": x.(int) + 1}
	})
	require.NoError(t, p.Register(h1))
	require.NoError(t, p.Register(h2))

	st := state.New()
	_, err := p.Run(context.Background(), BeforeAgent, st)
	require.NoError(t, err)

	x, _ := st.Get("x")
	y, _ := st.Get("y")
	assert.Equal(t, 1, x)
	assert.Equal(t, 2, y)
}

func TestPipeline_ReversedOrderChangesResult(t *testing.T) {
	p := NewPipeline()

	h1 := writerHook("h1", BeforeAgent, func(st *state.State) map[string]any {
		return map[string]any{"x": 10}
	})
	h2 := writerHook("h2", BeforeAgent, func(st *state.State) map[string]any {
		x, ok := st.Get("x")
		if !ok {
			return map[string]any{"y": -1}
		}
		return map[string]any{"y": x.(int) + 1}
	})
	require.NoError(t, p.Register(h2))
	require.NoError(t, p.Register(h1))

	st := state.New()
	_, err := p.Run(context.Background(), BeforeAgent, st)
	require.NoError(t, err)

	y, _ := st.Get("y")
	assert.Equal(t, -1, y, "h2 ran before h1 wrote x")
}

func TestPipeline_ErrorLoggedAndSkipped(t *testing.T) {
	p := NewPipeline()

	failing := &Func{
		FuncName: "failing",
		At:       []Position{BeforeAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return nil, fmt.Errorf("boom")
		},
	}
	after := writerHook("after", BeforeAgent, func(st *state.State) map[string]any {
		return map[string]any{"ran": true}
	})
	require.NoError(t, p.Register(failing))
	require.NoError(t, p.Register(after))

	st := state.New()
	_, err := p.Run(context.Background(), BeforeAgent, st)
	require.NoError(t, err)
	assert.True(t, st.Has("ran"))
}

func TestPipeline_PanicContained(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Register(&Func{
		FuncName: "panicky",
		At:       []Position{AfterModel},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			panic("oops")
		},
	}))

	_, err := p.Run(context.Background(), AfterModel, state.New())
	assert.NoError(t, err)
}

func TestPipeline_JumpAllowList(t *testing.T) {
	p := NewPipeline()

	jumper := &Func{
		FuncName: "jumper",
		At:       []Position{BeforeModel},
		Jumps:    []string{"finalize"},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return &Result{Jump: "finalize"}, nil
		},
	}
	require.NoError(t, p.Register(jumper))

	jump, err := p.Run(context.Background(), BeforeModel, state.New())
	require.NoError(t, err)
	assert.Equal(t, "finalize", jump)
}

func TestPipeline_DisallowedJumpIgnored(t *testing.T) {
	p := NewPipeline()

	rogue := &Func{
		FuncName: "rogue",
		At:       []Position{BeforeModel},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return &Result{Jump: "finalize", Updates: map[string]any{"wrote": true}}, nil
		},
	}
	require.NoError(t, p.Register(rogue))

	st := state.New()
	jump, err := p.Run(context.Background(), BeforeModel, st)
	require.NoError(t, err)
	assert.Empty(t, jump)
	assert.True(t, st.Has("wrote"), "updates apply even when the jump is refused")
}

func TestPipeline_RegisterWithConfig(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.RegisterWith(&Func{
		FuncName: "configured",
		At:       []Position{BeforeAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return &Result{Updates: map[string]any{"limit": cfg["limit"]}}, nil
		},
	}, map[string]any{"limit": 3}))

	st := state.New()
	_, err := p.Run(context.Background(), BeforeAgent, st)
	require.NoError(t, err)

	limit, _ := st.Get("limit")
	assert.Equal(t, 3, limit)
}

func TestPipeline_RegisterPassesNilConfig(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Register(&Func{
		FuncName: "bare",
		At:       []Position{BeforeAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			assert.Nil(t, cfg)
			return nil, nil
		},
	}))

	_, err := p.Run(context.Background(), BeforeAgent, state.New())
	require.NoError(t, err)
}

func TestPipeline_RunObserver(t *testing.T) {
	type seen struct {
		hook string
		pos  Position
		ok   bool
	}
	var calls []seen
	p := NewPipeline(WithRunObserver(func(hook string, pos Position, err error) {
		calls = append(calls, seen{hook, pos, err == nil})
	}))

	require.NoError(t, p.Register(writerHook("good", BeforeAgent, func(st *state.State) map[string]any {
		return nil
	})))
	require.NoError(t, p.Register(&Func{
		FuncName: "bad",
		At:       []Position{BeforeAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			return nil, fmt.Errorf("boom")
		},
	}))

	_, err := p.Run(context.Background(), BeforeAgent, state.New())
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, seen{"good", BeforeAgent, true}, calls[0])
	assert.Equal(t, seen{"bad", BeforeAgent, false}, calls[1])
}

func TestPipeline_RegistrationValidation(t *testing.T) {
	p := NewPipeline()

	assert.Error(t, p.Register(nil))
	assert.Error(t, p.Register(&Func{FuncName: "", At: []Position{BeforeAgent}}))
	assert.Error(t, p.Register(&Func{FuncName: "nowhere"}))
	assert.Error(t, p.Register(&Func{FuncName: "bad", At: []Position{Position("MIDDLE")}}))
}

func TestPipeline_MultiPositionHook(t *testing.T) {
	p := NewPipeline()

	count := 0
	require.NoError(t, p.Register(&Func{
		FuncName: "both",
		At:       []Position{BeforeAgent, AfterAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			count++
			return nil, nil
		},
	}))

	st := state.New()
	_, _ = p.Run(context.Background(), BeforeAgent, st)
	_, _ = p.Run(context.Background(), AfterAgent, st)
	_, _ = p.Run(context.Background(), BeforeModel, st)
	assert.Equal(t, 2, count)
}

func TestPipeline_HookTimeout(t *testing.T) {
	p := NewPipeline(WithHookTimeout(10 * time.Millisecond))

	require.NoError(t, p.Register(&Func{
		FuncName: "slow",
		At:       []Position{BeforeAgent},
		RunFunc: func(ctx context.Context, pos Position, st *state.State, cfg map[string]any) (*Result, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return &Result{Updates: map[string]any{"slow": true}}, nil
			}
		},
	}))
	require.NoError(t, p.Register(writerHook("fast", BeforeAgent, func(st *state.State) map[string]any {
		return map[string]any{"fast": true}
	})))

	st := state.New()
	start := time.Now()
	_, err := p.Run(context.Background(), BeforeAgent, st)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, st.Has("slow"))
	assert.True(t, st.Has("fast"))
}

func TestPipeline_CancellationStops(t *testing.T) {
	p := NewPipeline()
	require.NoError(t, p.Register(writerHook("h", BeforeAgent, func(st *state.State) map[string]any {
		return map[string]any{"ran": true}
	})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := state.New()
	_, err := p.Run(ctx, BeforeAgent, st)
	assert.Error(t, err)
	assert.False(t, st.Has("ran"))
}
