// Package config defines the runtime configuration surface: which agent
// features are enabled, how evaluation and learning behave, and the
// declarative tool lists loaded at composition time.
package config

import (
	"fmt"
	"time"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging,omitempty"`
	LLM        LLMConfig        `yaml:"llm,omitempty"`
	Trigger    TriggerConfig    `yaml:"trigger,omitempty"`
	Evaluation EvaluationConfig `yaml:"evaluation,omitempty"`
	Reply      ReplyConfig      `yaml:"reply,omitempty"`
	Experience ExperienceConfig `yaml:"experience,omitempty"`
	Learning   LearningConfig   `yaml:"learning,omitempty"`
	Prompt     PromptConfig     `yaml:"prompt,omitempty"`
}

// LoggingConfig controls the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// LLMConfig configures the chat-completion provider seam.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxRetries  int           `yaml:"max_retries,omitempty"`
}

// TriggerConfig gates trigger-tool registration and the scheduler.
type TriggerConfig struct {
	Enabled   bool                   `yaml:"enabled,omitempty"`
	Scheduler TriggerSchedulerConfig `yaml:"scheduler,omitempty"`
	Execution TriggerExecutionConfig `yaml:"execution,omitempty"`
}

type TriggerSchedulerConfig struct {
	PoolSize         int           `yaml:"pool_size,omitempty"`
	AwaitTermination time.Duration `yaml:"await_termination,omitempty"`
}

type TriggerExecutionConfig struct {
	DefaultMaxRetries int           `yaml:"default_max_retries,omitempty"`
	DefaultRetryDelay time.Duration `yaml:"default_retry_delay,omitempty"`

	// ExecutionTimeout bounds one triggered execution; zero is unbounded.
	ExecutionTimeout time.Duration `yaml:"execution_timeout,omitempty"`
}

// EvaluationConfig controls evaluation hooks.
type EvaluationConfig struct {
	Async        bool               `yaml:"async,omitempty"`
	Timeout      time.Duration      `yaml:"timeout,omitempty"`
	InputRouting InputRoutingConfig `yaml:"input_routing,omitempty"`
}

type InputRoutingConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	SuiteID string `yaml:"suite_id,omitempty"`
}

// ReplyConfig declares the reply tools registered at startup.
type ReplyConfig struct {
	Enabled bool              `yaml:"enabled,omitempty"`
	Tools   []ReplyToolConfig `yaml:"tools,omitempty"`
}

// ReplyToolConfig is one declarative direct-reply tool.
type ReplyToolConfig struct {
	Name        string                 `yaml:"name"`
	Channel     string                 `yaml:"channel,omitempty"`
	Description string                 `yaml:"description"`
	Phases      PhaseFlags             `yaml:"phases,omitempty"`
	Parameters  []ReplyParameterConfig `yaml:"parameters,omitempty"`
}

type ReplyParameterConfig struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// PhaseFlags gates a feature per agent phase. Zero value means both.
type PhaseFlags struct {
	React   *bool `yaml:"react,omitempty"`
	CodeAct *bool `yaml:"codeact,omitempty"`
}

// ReactEnabled reports whether the React phase is on (default true).
func (p PhaseFlags) ReactEnabled() bool {
	return p.React == nil || *p.React
}

// CodeActEnabled reports whether the CodeAct phase is on (default true).
func (p PhaseFlags) CodeActEnabled() bool {
	return p.CodeAct == nil || *p.CodeAct
}

// ExperienceConfig controls the experience store.
type ExperienceConfig struct {
	Demo DemoConfig `yaml:"demo,omitempty"`
}

type DemoConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// LearningConfig controls the learning loop.
type LearningConfig struct {
	Offline OfflineLearningConfig `yaml:"offline,omitempty"`
}

type OfflineLearningConfig struct {
	Tasks []OfflineTaskConfig `yaml:"tasks,omitempty"`
}

// ScheduleMode says how an offline task is scheduled.
type ScheduleMode string

const (
	ScheduleCron     ScheduleMode = "cron"
	ScheduleInterval ScheduleMode = "interval"
)

// OfflineTaskConfig is one scheduled offline learning task. Exactly one of
// CronExpression and Interval must be set; ScheduleMode resolves from
// whichever is present.
type OfflineTaskConfig struct {
	Name           string        `yaml:"name"`
	CronExpression string        `yaml:"cron_expression,omitempty"`
	Interval       time.Duration `yaml:"interval,omitempty"`
	ScheduleMode   ScheduleMode  `yaml:"schedule_mode,omitempty"`
}

// ResolveScheduleMode fills ScheduleMode from the present schedule field.
func (t *OfflineTaskConfig) ResolveScheduleMode() error {
	switch {
	case t.CronExpression != "" && t.Interval > 0:
		return fmt.Errorf("offline task '%s' sets both cron_expression and interval", t.Name)
	case t.CronExpression != "":
		t.ScheduleMode = ScheduleCron
	case t.Interval > 0:
		t.ScheduleMode = ScheduleInterval
	default:
		return fmt.Errorf("offline task '%s' sets neither cron_expression nor interval", t.Name)
	}
	return nil
}

// PromptConfig gates the prompt-contributor hooks per phase.
type PromptConfig struct {
	React   PromptPhaseConfig `yaml:"react,omitempty"`
	CodeAct PromptPhaseConfig `yaml:"codeact,omitempty"`
}

type PromptPhaseConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// Validate checks cross-field invariants and resolves derived fields.
func (c *Config) Validate() error {
	if c.Evaluation.InputRouting.Enabled && c.Evaluation.InputRouting.SuiteID == "" {
		return fmt.Errorf("evaluation.input_routing.suite_id is required when input routing is enabled")
	}

	if c.Reply.Enabled {
		seen := make(map[string]bool, len(c.Reply.Tools))
		for i := range c.Reply.Tools {
			t := &c.Reply.Tools[i]
			if t.Name == "" {
				return fmt.Errorf("reply tool %d has no name", i)
			}
			if seen[t.Name] {
				return fmt.Errorf("reply tool '%s' declared twice", t.Name)
			}
			seen[t.Name] = true
			if t.Description == "" {
				return fmt.Errorf("reply tool '%s' has no description", t.Name)
			}
		}
	}

	for i := range c.Learning.Offline.Tasks {
		t := &c.Learning.Offline.Tasks[i]
		if t.Name == "" {
			return fmt.Errorf("offline task %d has no name", i)
		}
		if err := t.ResolveScheduleMode(); err != nil {
			return err
		}
	}

	if c.Trigger.Enabled {
		if c.Trigger.Scheduler.PoolSize < 0 {
			return fmt.Errorf("trigger.scheduler.pool_size cannot be negative")
		}
		if c.Trigger.Execution.DefaultMaxRetries < 0 {
			return fmt.Errorf("trigger.execution.default_max_retries cannot be negative")
		}
	}
	return nil
}

// SetDefaults fills zero values with their documented defaults.
func (c *Config) SetDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Trigger.Enabled && c.Trigger.Scheduler.PoolSize == 0 {
		c.Trigger.Scheduler.PoolSize = 4
	}
	if c.Evaluation.Timeout == 0 {
		c.Evaluation.Timeout = 30 * time.Second
	}
}
