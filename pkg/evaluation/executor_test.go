package evaluation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type span struct {
	start, end time.Time
}

// spanRecorder tracks wall-clock execution windows per criterion.
type spanRecorder struct {
	mu    sync.Mutex
	spans map[string]span
}

func newSpanRecorder() *spanRecorder {
	return &spanRecorder{spans: make(map[string]span)}
}

func (sr *spanRecorder) evaluator(delay time.Duration) EvaluatorFunc {
	return func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
		start := time.Now()
		time.Sleep(delay)
		sr.mu.Lock()
		sr.spans[c.Name] = span{start: start, end: time.Now()}
		sr.mu.Unlock()
		return "ok", "", nil
	}
}

func newTestExecutor(t *testing.T, evaluators map[string]EvaluatorFunc, opts ...ExecutorOption) *Executor {
	t.Helper()
	reg := NewEvaluatorRegistry()
	for name, fn := range evaluators {
		require.NoError(t, reg.RegisterFunc(name, fn))
	}
	exec, err := NewExecutor(reg, opts...)
	require.NoError(t, err)
	return exec
}

func TestExecutor_FanOutRespectsDependencyOrder(t *testing.T) {
	rec := newSpanRecorder()
	exec := newTestExecutor(t, map[string]EvaluatorFunc{"timed": rec.evaluator(20 * time.Millisecond)})

	suite := suiteOf(
		&Criterion{Name: "A", Evaluator: "timed"},
		&Criterion{Name: "B", Evaluator: "timed", DependsOn: []string{"A"}},
		&Criterion{Name: "C", Evaluator: "timed", DependsOn: []string{"A"}},
	)

	result, err := exec.Run(context.Background(), suite, nil)
	require.NoError(t, err)

	require.Contains(t, result.Criteria, "A")
	require.Contains(t, result.Criteria, "B")
	require.Contains(t, result.Criteria, "C")

	a, b, c := rec.spans["A"], rec.spans["B"], rec.spans["C"]
	assert.False(t, b.start.Before(a.end), "B started before A finished")
	assert.False(t, c.start.Before(a.end), "C started before A finished")
	assert.False(t, result.EndedAt.Before(b.end))
	assert.False(t, result.EndedAt.Before(c.end))
	assert.Equal(t, 3, result.Statistics.Success)
}

func TestExecutor_TimeoutIsolation(t *testing.T) {
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"fast": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			return 1.0, "", nil
		},
		"slow": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(time.Second):
				return 1.0, "", nil
			}
		},
	})

	suite := suiteOf(
		&Criterion{Name: "A", Evaluator: "fast"},
		&Criterion{Name: "B", Evaluator: "slow", Timeout: 20 * time.Millisecond},
	)

	result, err := exec.Run(context.Background(), suite, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Criteria["A"].Status)
	assert.Equal(t, StatusTimeout, result.Criteria["B"].Status)
	assert.Nil(t, result.Criteria["B"].Value)
	assert.Equal(t, 1, result.Statistics.Success)
	assert.Equal(t, 1, result.Statistics.Timeout)
	assert.Equal(t, 2, result.Statistics.Total)
}

func TestExecutor_PredecessorResultsVisible(t *testing.T) {
	var got map[string]any
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"emit": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			return 7, "", nil
		},
		"check": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			got = inputs
			return true, "", nil
		},
	})

	suite := suiteOf(
		&Criterion{Name: "first", Evaluator: "emit"},
		&Criterion{Name: "second", Evaluator: "check", DependsOn: []string{"first"}},
	)

	_, err := exec.Run(context.Background(), suite, nil)
	require.NoError(t, err)

	pred, ok := got["first_result"].(*CriterionResult)
	require.True(t, ok, "predecessor result missing under first_result")
	assert.Equal(t, 7, pred.Value)
	assert.Equal(t, StatusSuccess, pred.Status)
}

func TestExecutor_DependentRunsAfterErroredPredecessor(t *testing.T) {
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"broken": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			return nil, "", fmt.Errorf("boom")
		},
		"after": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			pred := inputs["bad_result"].(*CriterionResult)
			return string(pred.Status), "", nil
		},
	})

	suite := suiteOf(
		&Criterion{Name: "bad", Evaluator: "broken"},
		&Criterion{Name: "dependent", Evaluator: "after", DependsOn: []string{"bad"}},
	)

	result, err := exec.Run(context.Background(), suite, nil)
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Criteria["bad"].Status)
	assert.Equal(t, StatusSuccess, result.Criteria["dependent"].Status)
	assert.Equal(t, string(StatusError), result.Criteria["dependent"].Value)
}

func TestExecutor_PanicBecomesError(t *testing.T) {
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"panicky": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			panic("oops")
		},
	})

	result, err := exec.Run(context.Background(), suiteOf(&Criterion{Name: "p", Evaluator: "panicky"}), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Criteria["p"].Status)
	assert.Contains(t, result.Criteria["p"].Reasoning, "panicked")
}

func TestExecutor_MissingEvaluatorIsError(t *testing.T) {
	exec := newTestExecutor(t, nil)

	result, err := exec.Run(context.Background(), suiteOf(&Criterion{Name: "a", Evaluator: "ghost"}), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Criteria["a"].Status)
}

func TestExecutor_CancellationSkipsPending(t *testing.T) {
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"slow": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			select {
			case <-ctx.Done():
				return nil, "", ctx.Err()
			case <-time.After(time.Second):
				return 1, "", nil
			}
		},
	}, WithParallelism(1))

	suite := suiteOf(
		&Criterion{Name: "first", Evaluator: "slow"},
		&Criterion{Name: "second", Evaluator: "slow", DependsOn: []string{"first"}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := exec.Run(ctx, suite, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, result.Criteria["second"].Status)
}

func TestExecutor_BooleanFalseIsFailed(t *testing.T) {
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"no": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			return false, "did not pass", nil
		},
	})

	result, err := exec.Run(context.Background(), suiteOf(&Criterion{Name: "check", Evaluator: "no"}), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Criteria["check"].Status)
	assert.Equal(t, 1, result.Statistics.Failed)
}

func TestExecutor_ContextBindings(t *testing.T) {
	var got map[string]any
	exec := newTestExecutor(t, map[string]EvaluatorFunc{
		"capture": func(ctx context.Context, evalCtx *Context, c *Criterion, inputs map[string]any) (any, string, error) {
			got = inputs
			return true, "", nil
		},
	})

	suite := suiteOf(&Criterion{Name: "a", Evaluator: "capture", Bindings: []string{"user_input", "exit_code"}})
	evalCtx := &Context{
		Input:           map[string]any{"user_input": "hello"},
		ExecutionResult: map[string]any{"exit_code": 0},
	}

	_, err := exec.Run(context.Background(), suite, evalCtx)
	require.NoError(t, err)
	assert.Equal(t, "hello", got["user_input"])
	assert.Equal(t, 0, got["exit_code"])
}
