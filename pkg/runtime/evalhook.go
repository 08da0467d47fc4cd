package runtime

import (
	"context"
	"log/slog"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/evaluation"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/observability"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

// KeyEvaluationResult is the state key a synchronous evaluation run writes
// its suite result under.
const KeyEvaluationResult = "evaluation_result"

// evaluationHook routes finished turns into the configured evaluation
// suite. Async mode detaches from the turn entirely; sync mode writes the
// suite result back into turn state.
type evaluationHook struct {
	cfg      config.EvaluationConfig
	executor *evaluation.Executor
	suite    func(id string) *evaluation.Suite
	metrics  *observability.Metrics
}

func (h *evaluationHook) Name() string { return "evaluation_routing" }

func (h *evaluationHook) Positions() []hooks.Position {
	return []hooks.Position{hooks.AfterAgent}
}

func (h *evaluationHook) AllowedJumps() []string { return nil }

func (h *evaluationHook) Run(ctx context.Context, pos hooks.Position, st *state.State, cfg map[string]any) (*hooks.Result, error) {
	suite := h.suite(h.cfg.InputRouting.SuiteID)
	if suite == nil {
		slog.Warn("Evaluation suite not registered, skipping turn evaluation",
			"suite", h.cfg.InputRouting.SuiteID)
		return nil, nil
	}

	evalCtx := contextFromState(st)

	if h.cfg.Async {
		// the turn is over; the run must not inherit its context
		go h.evaluate(context.Background(), suite, evalCtx)
		return nil, nil
	}

	result := h.evaluate(ctx, suite, evalCtx)
	if result == nil {
		return nil, nil
	}
	return &hooks.Result{Updates: map[string]any{KeyEvaluationResult: result}}, nil
}

func (h *evaluationHook) evaluate(ctx context.Context, suite *evaluation.Suite, evalCtx *evaluation.Context) *evaluation.Result {
	result, err := h.executor.Run(ctx, suite, evalCtx)
	if err != nil {
		slog.Warn("Turn evaluation failed", "suite", suite.ID, "error", err)
		return nil
	}

	if h.metrics != nil {
		for _, cr := range result.Criteria {
			h.metrics.ObserveCriterion(suite.ID, string(cr.Status), cr.Duration)
		}
	}
	slog.Info("Turn evaluated",
		"suite", suite.ID,
		"total", result.Statistics.Total,
		"success", result.Statistics.Success,
		"failed", result.Statistics.Failed)
	return result
}

// contextFromState snapshots the turn into an immutable evaluation context.
func contextFromState(st *state.State) *evaluation.Context {
	input := map[string]any{}
	if v, ok := st.Get(state.KeyUserInput); ok {
		input["user_input"] = v
	}
	if v, ok := st.Get(state.KeyLanguage); ok {
		input["language"] = v
	}

	execution := map[string]any{}
	if code := st.GeneratedCode(); len(code) > 0 {
		execution["generated_code"] = code
	}
	history := st.ExecutionHistory()
	if len(history) > 0 {
		execution["execution_history"] = history
		failures := 0
		for _, rec := range history {
			if !rec.Success {
				failures++
			}
		}
		execution["execution_failures"] = failures
	}
	if msgs := st.Messages(); len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		input["final_reply"] = last.Content
		execution["conversation"] = msgs
	}

	return &evaluation.Context{
		Input:           input,
		ExecutionResult: execution,
	}
}
