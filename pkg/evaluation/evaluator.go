package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/registry"
)

// Evaluator answers one criterion. Inputs carry the bound state values,
// including predecessor results under "<dep>_result".
type Evaluator interface {
	Evaluate(ctx context.Context, evalCtx *Context, criterion *Criterion, inputs map[string]any) (value any, reasoning string, err error)
}

// EvaluatorFunc adapts a plain function into an Evaluator.
type EvaluatorFunc func(ctx context.Context, evalCtx *Context, criterion *Criterion, inputs map[string]any) (any, string, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, evalCtx *Context, criterion *Criterion, inputs map[string]any) (any, string, error) {
	return f(ctx, evalCtx, criterion, inputs)
}

// EvaluatorRegistry resolves evaluator references declared in criteria.
type EvaluatorRegistry struct {
	*registry.BaseRegistry[Evaluator]
}

func NewEvaluatorRegistry() *EvaluatorRegistry {
	return &EvaluatorRegistry{BaseRegistry: registry.NewBaseRegistry[Evaluator]()}
}

// RegisterFunc registers a programmatic evaluator by reference name.
func (r *EvaluatorRegistry) RegisterFunc(name string, fn EvaluatorFunc) error {
	return r.Register(name, fn)
}

const judgeSystemPrompt = `You are an evaluation judge. Answer the single criterion you are given.
Respond with a JSON object only: {"value": <answer>, "reasoning": "<short justification>"}.
The value must match the requested result type. Do not add any other text.`

// JudgeEvaluator asks a language model to score a criterion. The judge
// prompt is either the criterion's template or a generated description of
// the criterion plus its inputs.
type JudgeEvaluator struct {
	provider llm.Provider
}

func NewJudgeEvaluator(provider llm.Provider) (*JudgeEvaluator, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	return &JudgeEvaluator{provider: provider}, nil
}

func (e *JudgeEvaluator) Evaluate(ctx context.Context, evalCtx *Context, criterion *Criterion, inputs map[string]any) (any, string, error) {
	prompt, err := e.buildPrompt(criterion, inputs)
	if err != nil {
		return nil, "", err
	}

	messages := []*protocol.Message{
		protocol.NewSystemMessage(judgeSystemPrompt),
		protocol.NewUserMessage(prompt),
	}
	resp, err := e.provider.Generate(ctx, messages, nil)
	if err != nil {
		return nil, "", fmt.Errorf("judge call failed: %w", err)
	}

	return parseJudgeOutput(resp.Text, criterion)
}

func (e *JudgeEvaluator) buildPrompt(criterion *Criterion, inputs map[string]any) (string, error) {
	var b strings.Builder

	if criterion.PromptTemplate != "" {
		b.WriteString(criterion.PromptTemplate)
	} else {
		fmt.Fprintf(&b, "Criterion: %s\n", criterion.Name)
		if criterion.Description != "" {
			fmt.Fprintf(&b, "Question: %s\n", criterion.Description)
		}
		if criterion.ResultType != "" {
			fmt.Fprintf(&b, "Result type: %s\n", criterion.ResultType)
		}
		if len(criterion.Allowed) > 0 {
			fmt.Fprintf(&b, "Allowed values: %s\n", strings.Join(criterion.Allowed, ", "))
		}
		if criterion.Reasoning {
			b.WriteString("Include your reasoning.\n")
		}
	}

	if len(inputs) > 0 {
		encoded, err := json.Marshal(inputs)
		if err != nil {
			return "", fmt.Errorf("failed to encode evaluator inputs: %w", err)
		}
		b.WriteString("\nInputs:\n")
		b.Write(encoded)
	}
	return b.String(), nil
}

// parseJudgeOutput decodes the judge's JSON, repairing near-JSON output
// before giving up.
func parseJudgeOutput(text string, criterion *Criterion) (any, string, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var decoded struct {
		Value     any    `json:"value"`
		Reasoning string `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(trimmed)
		if repairErr != nil {
			return nil, "", fmt.Errorf("judge output is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &decoded); err != nil {
			return nil, "", fmt.Errorf("judge output is not JSON after repair: %w", err)
		}
	}

	if len(criterion.Allowed) > 0 {
		value := fmt.Sprintf("%v", decoded.Value)
		allowed := false
		for _, a := range criterion.Allowed {
			if a == value {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, decoded.Reasoning, fmt.Errorf("judge returned '%s', not in allowed set", value)
		}
	}
	return decoded.Value, decoded.Reasoning, nil
}
