// Package evaluation compiles criterion suites into dependency DAGs and
// executes them with bounded parallelism. Each criterion publishes exactly
// one result slot that downstream criteria and prompt assembly can read.
package evaluation

import (
	"fmt"
	"time"
)

// Status is the outcome class of one criterion execution.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
	StatusTimeout Status = "TIMEOUT"
	StatusError   Status = "ERROR"
)

// ResultType declares what kind of value a criterion produces.
type ResultType string

const (
	ResultNumeric    ResultType = "numeric"
	ResultEnumerated ResultType = "enumerated"
	ResultBoolean    ResultType = "boolean"
	ResultText       ResultType = "text"
)

// EvaluatorKind selects between a model judge and a registered Go function.
type EvaluatorKind string

const (
	KindLLMJudge     EvaluatorKind = "llm_judge"
	KindProgrammatic EvaluatorKind = "programmatic"
)

// Criterion is one evaluation question within a suite.
type Criterion struct {
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description,omitempty" json:"description,omitempty"`
	ResultType  ResultType    `yaml:"result_type,omitempty" json:"result_type,omitempty"`
	Allowed     []string      `yaml:"allowed,omitempty" json:"allowed,omitempty"`
	DependsOn   []string      `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Evaluator   string        `yaml:"evaluator" json:"evaluator"`
	Kind        EvaluatorKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Config is the criterion's opaque config bag, handed to the evaluator.
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`

	// Reasoning asks an LLM judge to emit its reasoning alongside the value.
	Reasoning bool `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`

	// PromptTemplate overrides the judge prompt; ignored for programmatic
	// evaluators.
	PromptTemplate string `yaml:"prompt_template,omitempty" json:"prompt_template,omitempty"`

	// Bindings lists the state keys whose values feed the evaluator, in
	// order. Predecessor results bind as "<dep>_result".
	Bindings []string `yaml:"bindings,omitempty" json:"bindings,omitempty"`

	// Timeout bounds this criterion; zero falls back to the suite default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Suite is an ordered collection of criteria compiled to a DAG.
type Suite struct {
	ID       string        `yaml:"id" json:"id"`
	Name     string        `yaml:"name" json:"name"`
	Criteria []*Criterion  `yaml:"criteria" json:"criteria"`
	Timeout  time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// Validate checks the suite's registration-time invariants. Cycle
// detection happens at compile.
func (s *Suite) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("suite id cannot be blank")
	}
	if len(s.Criteria) == 0 {
		return fmt.Errorf("suite '%s' has no criteria", s.ID)
	}
	names := make(map[string]bool, len(s.Criteria))
	for _, c := range s.Criteria {
		if c.Name == "" {
			return fmt.Errorf("suite '%s' has a criterion with no name", s.ID)
		}
		if names[c.Name] {
			return fmt.Errorf("suite '%s' declares criterion '%s' twice", s.ID, c.Name)
		}
		names[c.Name] = true
		if c.Evaluator == "" {
			return fmt.Errorf("criterion '%s' has no evaluator", c.Name)
		}
	}
	for _, c := range s.Criteria {
		for _, dep := range c.DependsOn {
			if !names[dep] {
				return fmt.Errorf("criterion '%s' depends on unknown criterion '%s'", c.Name, dep)
			}
		}
	}
	return nil
}

// Context carries the read-only inputs of one suite invocation.
type Context struct {
	Input           map[string]any
	ExecutionResult map[string]any
	Environment     map[string]any
}

// CriterionResult is the outcome of one criterion execution.
type CriterionResult struct {
	Status    Status        `json:"status"`
	Value     any           `json:"value"`
	Reasoning string        `json:"reasoning,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Statistics aggregates per-status counts across a suite run.
type Statistics struct {
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Timeout int `json:"timeout"`
	Error   int `json:"error"`
	Total   int `json:"total"`
}

// Result is the full outcome of a suite run.
type Result struct {
	SuiteID    string                      `json:"suite_id"`
	SuiteName  string                      `json:"suite_name"`
	StartedAt  time.Time                   `json:"started_at"`
	EndedAt    time.Time                   `json:"ended_at"`
	Criteria   map[string]*CriterionResult `json:"criteria"`
	Statistics Statistics                  `json:"statistics"`
}

// ResultKey is the state slot a criterion publishes under.
func ResultKey(criterion string) string {
	return criterion + "_result"
}
