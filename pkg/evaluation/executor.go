package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	defaultParallelism     = 4
	defaultCriterionTimout = 30 * time.Second
)

// Executor runs compiled suites against an evaluator registry with a
// bounded worker pool. Concurrency is capped by the executor, never by
// graph topology.
type Executor struct {
	evaluators  *EvaluatorRegistry
	parallelism int64
	defTimeout  time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithParallelism caps how many criteria run concurrently.
func WithParallelism(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.parallelism = int64(n)
		}
	}
}

// WithDefaultTimeout sets the per-criterion timeout used when a criterion
// declares none.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.defTimeout = d
		}
	}
}

func NewExecutor(evaluators *EvaluatorRegistry, opts ...ExecutorOption) (*Executor, error) {
	if evaluators == nil {
		return nil, fmt.Errorf("evaluator registry is required")
	}
	e := &Executor{
		evaluators:  evaluators,
		parallelism: defaultParallelism,
		defTimeout:  defaultCriterionTimout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// run-local state shared across the goroutines of one suite invocation.
type run struct {
	mu      sync.Mutex
	results map[string]*CriterionResult
	done    map[string]chan struct{}
}

func (r *run) publish(name string, result *CriterionResult) {
	r.mu.Lock()
	r.results[ResultKey(name)] = result
	r.mu.Unlock()
	close(r.done[name])
}

func (r *run) result(name string) *CriterionResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[ResultKey(name)]
}

// Run compiles and executes the suite. Every criterion publishes exactly
// one result; the suite result's end timestamp is set once, after the DAG
// drains.
func (e *Executor) Run(ctx context.Context, suite *Suite, evalCtx *Context) (*Result, error) {
	d, err := compile(suite)
	if err != nil {
		return nil, err
	}
	if evalCtx == nil {
		evalCtx = &Context{}
	}

	result := &Result{
		SuiteID:   suite.ID,
		SuiteName: suite.Name,
		StartedAt: time.Now(),
		Criteria:  make(map[string]*CriterionResult, len(suite.Criteria)),
	}

	rn := &run{
		results: make(map[string]*CriterionResult, len(suite.Criteria)),
		done:    make(map[string]chan struct{}, len(d.nodes)),
	}
	for name := range d.nodes {
		rn.done[name] = make(chan struct{})
	}
	close(rn.done[startNode])

	sem := semaphore.NewWeighted(e.parallelism)
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range suite.Criteria {
		c := c
		n := d.nodes[c.Name]
		g.Go(func() error {
			// join semantics: wait for every predecessor to publish
			for _, pred := range n.preds {
				select {
				case <-rn.done[pred]:
				case <-gctx.Done():
					rn.publish(c.Name, &CriterionResult{Status: StatusSkipped})
					return nil
				}
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				rn.publish(c.Name, &CriterionResult{Status: StatusSkipped})
				return nil
			}
			defer sem.Release(1)

			rn.publish(c.Name, e.runCriterion(gctx, evalCtx, c, rn))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range suite.Criteria {
		res := rn.result(c.Name)
		if res == nil {
			slog.Warn("Criterion published no result", "suite", suite.ID, "criterion", c.Name)
			continue
		}
		result.Criteria[c.Name] = res
		result.Statistics.Total++
		switch res.Status {
		case StatusSuccess:
			result.Statistics.Success++
		case StatusFailed:
			result.Statistics.Failed++
		case StatusSkipped:
			result.Statistics.Skipped++
		case StatusTimeout:
			result.Statistics.Timeout++
		case StatusError:
			result.Statistics.Error++
		}
	}
	result.EndedAt = time.Now()
	return result, nil
}

// runCriterion resolves the evaluator, binds its inputs, and executes it
// under the criterion timeout. Failures never propagate past the result.
func (e *Executor) runCriterion(ctx context.Context, evalCtx *Context, c *Criterion, rn *run) *CriterionResult {
	if err := ctx.Err(); err != nil {
		return &CriterionResult{Status: StatusSkipped}
	}

	evaluator, ok := e.evaluators.Get(c.Evaluator)
	if !ok {
		return &CriterionResult{
			Status:    StatusError,
			Reasoning: fmt.Sprintf("evaluator '%s' not registered", c.Evaluator),
		}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = e.defTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	inputs := e.bindInputs(evalCtx, c, rn)

	start := time.Now()
	value, reasoning, err := e.evaluate(cctx, evaluator, evalCtx, c, inputs)
	duration := time.Since(start)

	switch {
	case errors.Is(cctx.Err(), context.DeadlineExceeded):
		return &CriterionResult{Status: StatusTimeout, Duration: duration}
	case ctx.Err() != nil:
		return &CriterionResult{Status: StatusSkipped, Duration: duration}
	case err != nil:
		return &CriterionResult{
			Status:    StatusError,
			Reasoning: err.Error(),
			Duration:  duration,
		}
	}

	// a boolean criterion that answers false is a failed check, not an error
	status := StatusSuccess
	if passed, ok := value.(bool); ok && !passed {
		status = StatusFailed
	}
	return &CriterionResult{
		Status:    status,
		Value:     value,
		Reasoning: reasoning,
		Duration:  duration,
	}
}

// evaluate invokes the evaluator with panic containment.
func (e *Executor) evaluate(ctx context.Context, evaluator Evaluator, evalCtx *Context, c *Criterion, inputs map[string]any) (value any, reasoning string, err error) {
	defer func() {
		if r := recover(); r != nil {
			value, reasoning = nil, ""
			err = fmt.Errorf("evaluator panicked: %v", r)
		}
	}()
	return evaluator.Evaluate(ctx, evalCtx, c, inputs)
}

// bindInputs assembles the evaluator's input map: every predecessor result
// under "<dep>_result", plus the declared bindings resolved against run
// results first and the evaluation context second.
func (e *Executor) bindInputs(evalCtx *Context, c *Criterion, rn *run) map[string]any {
	inputs := make(map[string]any, len(c.DependsOn)+len(c.Bindings))

	for _, dep := range c.DependsOn {
		if res := rn.result(dep); res != nil {
			inputs[ResultKey(dep)] = res
		}
	}
	for _, key := range c.Bindings {
		rn.mu.Lock()
		v, ok := rn.results[key]
		rn.mu.Unlock()
		if ok {
			inputs[key] = v
			continue
		}
		if v, ok := lookupContext(evalCtx, key); ok {
			inputs[key] = v
		}
	}
	return inputs
}

func lookupContext(evalCtx *Context, key string) (any, bool) {
	for _, m := range []map[string]any{evalCtx.Input, evalCtx.ExecutionResult, evalCtx.Environment} {
		if v, ok := m[key]; ok {
			return v, true
		}
	}
	return nil, false
}
