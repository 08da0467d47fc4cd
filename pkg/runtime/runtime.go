// Package runtime composes the platform from configuration: tool
// registries per agent phase, the hook pipeline, evaluation, learning,
// the experience store, and the trigger scheduler.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/agent"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/codeact"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/config"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/evaluation"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/experience"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/hooks"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/learning"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/observability"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// EvaluatorJudge is the reference name the built-in LLM judge registers
// under.
const EvaluatorJudge = "llm_judge"

// Runtime owns every composed component and their shutdown order.
type Runtime struct {
	cfg      *config.Config
	provider llm.Provider
	executor codeact.Executor

	experiences  experience.Repository
	tools        map[agent.Mode]*tool.Registry
	observers    map[agent.Mode]*tool.Observer
	contributors map[agent.Mode]*hooks.ContributorManager
	pipeline     *hooks.Pipeline

	evaluators *evaluation.EvaluatorRegistry
	evalExec   *evaluation.Executor

	learning  *learning.Service
	scheduler *Scheduler
	metrics   *observability.Metrics

	mu           sync.RWMutex
	suites       map[string]*evaluation.Suite
	offlineTasks map[string]TaskFunc
	onTrigger    TriggerHandler

	closeOnce sync.Once
}

// Option configures the runtime before composition.
type Option func(*Runtime)

// WithProvider injects the chat-completion provider. Without it, an
// OpenAI-compatible provider is built from the llm config section.
func WithProvider(p llm.Provider) Option {
	return func(r *Runtime) { r.provider = p }
}

// WithExecutor injects the code runtime backing CodeAct agents.
func WithExecutor(e codeact.Executor) Option {
	return func(r *Runtime) { r.executor = e }
}

// WithExperienceStore replaces the default in-memory store.
func WithExperienceStore(repo experience.Repository) Option {
	return func(r *Runtime) { r.experiences = repo }
}

var agentModes = []agent.Mode{agent.ModeReact, agent.ModeCodeAct}

// New composes a runtime from configuration.
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	r := &Runtime{
		cfg:          cfg,
		tools:        make(map[agent.Mode]*tool.Registry, len(agentModes)),
		observers:    make(map[agent.Mode]*tool.Observer, len(agentModes)),
		contributors: make(map[agent.Mode]*hooks.ContributorManager, len(agentModes)),
		suites:       make(map[string]*evaluation.Suite),
		offlineTasks: make(map[string]TaskFunc),
		metrics:      observability.NewMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.buildProvider(); err != nil {
		return nil, err
	}
	if err := r.buildExperiences(); err != nil {
		return nil, err
	}
	if err := r.buildTools(); err != nil {
		return nil, err
	}
	r.buildContributors()
	if err := r.buildEvaluation(); err != nil {
		return nil, err
	}
	if err := r.buildLearning(); err != nil {
		return nil, err
	}
	if cfg.Trigger.Enabled || len(cfg.Learning.Offline.Tasks) > 0 {
		r.scheduler = NewScheduler(cfg.Trigger)
	}
	return r, nil
}

func (r *Runtime) buildProvider() error {
	if r.provider != nil {
		return nil
	}
	provider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL:     r.cfg.LLM.BaseURL,
		APIKey:      r.cfg.LLM.APIKey,
		Model:       r.cfg.LLM.Model,
		MaxTokens:   r.cfg.LLM.MaxTokens,
		Temperature: r.cfg.LLM.Temperature,
		Timeout:     r.cfg.LLM.Timeout,
		MaxRetries:  r.cfg.LLM.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to build llm provider: %w", err)
	}
	r.provider = provider
	return nil
}

func (r *Runtime) buildExperiences() error {
	if r.experiences == nil {
		r.experiences = experience.NewMemoryStore()
	}
	if r.cfg.Experience.Demo.Enabled {
		if err := experience.SeedDemo(context.Background(), r.experiences); err != nil {
			return fmt.Errorf("failed to seed demo experiences: %w", err)
		}
	}
	return nil
}

func (r *Runtime) buildTools() error {
	for _, mode := range agentModes {
		reg := tool.NewRegistry()
		r.tools[mode] = reg
		r.observers[mode] = tool.NewObserver(reg.Schemas(), 0)
	}

	replies, err := buildReplyTools(r.cfg.Reply)
	if err != nil {
		return err
	}
	for _, rt := range replies {
		if rt.phases.ReactEnabled() {
			if err := r.registerTool(agent.ModeReact, rt.record); err != nil {
				return err
			}
		}
		if rt.phases.CodeActEnabled() {
			if err := r.registerTool(agent.ModeCodeAct, rt.record); err != nil {
				return err
			}
		}
	}

	if r.cfg.Trigger.Enabled {
		trigger, err := r.buildTriggerTool()
		if err != nil {
			return err
		}
		for _, mode := range agentModes {
			if err := r.registerTool(mode, trigger); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runtime) buildContributors() {
	if r.cfg.Prompt.React.Enabled {
		r.contributors[agent.ModeReact] = r.newContributorManager()
	}
	if r.cfg.Prompt.CodeAct.Enabled {
		r.contributors[agent.ModeCodeAct] = r.newContributorManager()
	}
}

func (r *Runtime) newContributorManager() *hooks.ContributorManager {
	m := hooks.NewContributorManager()
	if err := m.Register(newExperienceContributor(r.experiences)); err != nil {
		slog.Warn("Failed to register experience contributor", "error", err)
	}
	return m
}

func (r *Runtime) buildEvaluation() error {
	r.evaluators = evaluation.NewEvaluatorRegistry()
	judge, err := evaluation.NewJudgeEvaluator(r.provider)
	if err != nil {
		return err
	}
	if err := r.evaluators.Register(EvaluatorJudge, judge); err != nil {
		return err
	}

	r.evalExec, err = evaluation.NewExecutor(r.evaluators,
		evaluation.WithDefaultTimeout(r.cfg.Evaluation.Timeout))
	if err != nil {
		return err
	}

	r.pipeline = hooks.NewPipeline(hooks.WithRunObserver(func(hook string, pos hooks.Position, err error) {
		r.metrics.ObserveHookRun(hook, string(pos), err)
	}))
	if r.cfg.Evaluation.InputRouting.Enabled {
		hook := &evaluationHook{
			cfg:      r.cfg.Evaluation,
			executor: r.evalExec,
			suite:    r.suite,
			metrics:  r.metrics,
		}
		if err := r.pipeline.Register(hook); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) buildLearning() error {
	extractor, err := learning.NewExtractor(r.provider)
	if err != nil {
		return err
	}
	repo, err := learning.NewRepository(r.experiences)
	if err != nil {
		return err
	}
	r.learning, err = learning.NewService(extractor, repo,
		learning.WithOutcomeObserver(r.metrics.ObserveLearningExtraction))
	if err != nil {
		return err
	}

	hook, err := learning.NewHook(r.learning)
	if err != nil {
		return err
	}
	return r.pipeline.Register(hook)
}

// registerTool adds a record to one phase registry, wrapping its handler
// with metrics.
func (r *Runtime) registerTool(mode agent.Mode, rec *tool.Record) error {
	wrapped := &tool.Record{
		Definition: rec.Definition,
		Call:       r.instrument(rec.Definition.Name, rec.Call),
	}
	return r.tools[mode].Register(wrapped)
}

func (r *Runtime) instrument(name string, h tool.Handler) tool.Handler {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		out, err := h(ctx, args)
		r.metrics.ObserveToolCall(name, err == nil)
		return out, err
	}
}

// RegisterTool adds a tool to the given phases (both when none given).
func (r *Runtime) RegisterTool(rec *tool.Record, modes ...agent.Mode) error {
	if len(modes) == 0 {
		modes = agentModes
	}
	for _, mode := range modes {
		if err := r.registerTool(mode, rec); err != nil {
			return err
		}
	}
	return nil
}

// Tools returns the registry backing one agent phase.
func (r *Runtime) Tools(mode agent.Mode) *tool.Registry {
	return r.tools[mode]
}

// Pipeline returns the shared hook pipeline.
func (r *Runtime) Pipeline() *hooks.Pipeline { return r.pipeline }

// Experiences returns the experience repository.
func (r *Runtime) Experiences() experience.Repository { return r.experiences }

// Evaluators returns the evaluator registry for programmatic evaluators.
func (r *Runtime) Evaluators() *evaluation.EvaluatorRegistry { return r.evaluators }

// Metrics returns the runtime instrument set.
func (r *Runtime) Metrics() *observability.Metrics { return r.metrics }

// RegisterMetrics attaches the instrument set to a Prometheus registerer.
func (r *Runtime) RegisterMetrics(reg prometheus.Registerer) error {
	return r.metrics.Register(reg)
}

// RegisterSuite makes an evaluation suite available for input routing and
// direct runs.
func (r *Runtime) RegisterSuite(s *evaluation.Suite) error {
	if s == nil {
		return fmt.Errorf("suite is required")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.suites[s.ID]; ok {
		return fmt.Errorf("suite '%s' already registered", s.ID)
	}
	r.suites[s.ID] = s
	return nil
}

func (r *Runtime) suite(id string) *evaluation.Suite {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites[id]
}

// EvaluateSuite runs a registered suite directly.
func (r *Runtime) EvaluateSuite(ctx context.Context, id string, evalCtx *evaluation.Context) (*evaluation.Result, error) {
	s := r.suite(id)
	if s == nil {
		return nil, fmt.Errorf("suite '%s' not registered", id)
	}
	return r.evalExec.Run(ctx, s, evalCtx)
}

// BindOfflineTask attaches the implementation for a configured offline
// learning task. Must be called before Start.
func (r *Runtime) BindOfflineTask(name string, fn TaskFunc) error {
	if fn == nil {
		return fmt.Errorf("task function is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offlineTasks[name] = fn
	return nil
}

// TriggerHandler executes the prompt of a fired trigger, typically by
// running an agent turn with it.
type TriggerHandler func(ctx context.Context, prompt string) error

// SetTriggerHandler installs the function scheduled trigger-tool calls
// invoke.
func (r *Runtime) SetTriggerHandler(fn TriggerHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTrigger = fn
}

func (r *Runtime) triggerHandler() TriggerHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onTrigger
}

// Agent builds an agent for the given phase from the composed parts.
func (r *Runtime) Agent(mode agent.Mode, systemPrompt string) (*agent.Agent, error) {
	opts := []agent.Option{
		agent.WithObserver(r.observers[mode]),
		agent.WithTurnObserver(r.metrics.ObserveTurn),
	}
	if m := r.contributors[mode]; m != nil {
		opts = append(opts, agent.WithContributors(m))
	}
	if r.executor != nil {
		opts = append(opts, agent.WithExecutor(r.executor))
	}
	return agent.New(agent.Config{
		Mode:         mode,
		SystemPrompt: systemPrompt,
	}, r.provider, r.tools[mode], r.pipeline, opts...)
}

// Start schedules configured offline tasks and begins firing the
// scheduler. Tasks with no bound implementation are skipped with a log
// line.
func (r *Runtime) Start() error {
	if r.scheduler == nil {
		return nil
	}

	r.mu.RLock()
	bound := make(map[string]TaskFunc, len(r.offlineTasks))
	for name, fn := range r.offlineTasks {
		bound[name] = fn
	}
	r.mu.RUnlock()

	for _, task := range r.cfg.Learning.Offline.Tasks {
		fn, ok := bound[task.Name]
		if !ok {
			slog.Warn("Offline task has no bound implementation, skipping", "task", task.Name)
			continue
		}
		var err error
		switch task.ScheduleMode {
		case config.ScheduleCron:
			err = r.scheduler.ScheduleCron(task.Name, task.CronExpression, fn)
		case config.ScheduleInterval:
			err = r.scheduler.ScheduleInterval(task.Name, task.Interval, fn)
		}
		if err != nil {
			return err
		}
	}
	r.scheduler.Start()
	return nil
}

// Close shuts components down in dependency order: learning drains before
// the store is abandoned, observers drain before registries go away.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		if r.scheduler != nil {
			r.scheduler.Stop()
		}
		if r.learning != nil {
			r.learning.Close()
		}
		for _, o := range r.observers {
			o.Close()
		}
		if r.provider != nil {
			err = r.provider.Close()
		}
	})
	return err
}
