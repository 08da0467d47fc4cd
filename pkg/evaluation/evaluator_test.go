package evaluation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
)

func TestJudgeEvaluator_ParsesCleanJSON(t *testing.T) {
	provider := llm.NewMockProvider(&llm.Response{Text: `{"value": "relevant", "reasoning": "matches the query"}`})
	judge, err := NewJudgeEvaluator(provider)
	require.NoError(t, err)

	c := &Criterion{
		Name:        "relevance",
		Description: "Is the answer relevant?",
		ResultType:  ResultEnumerated,
		Allowed:     []string{"relevant", "irrelevant"},
	}
	value, reasoning, err := judge.Evaluate(context.Background(), &Context{}, c, map[string]any{"answer": "42"})
	require.NoError(t, err)
	assert.Equal(t, "relevant", value)
	assert.Equal(t, "matches the query", reasoning)
}

func TestJudgeEvaluator_RepairsNearJSON(t *testing.T) {
	provider := llm.NewMockProvider(&llm.Response{Text: "```json\n{value: true, reasoning: 'fine',}\n```"})
	judge, err := NewJudgeEvaluator(provider)
	require.NoError(t, err)

	value, _, err := judge.Evaluate(context.Background(), &Context{}, &Criterion{Name: "ok"}, nil)
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestJudgeEvaluator_RejectsDisallowedValue(t *testing.T) {
	provider := llm.NewMockProvider(&llm.Response{Text: `{"value": "maybe"}`})
	judge, err := NewJudgeEvaluator(provider)
	require.NoError(t, err)

	c := &Criterion{Name: "verdict", Allowed: []string{"yes", "no"}}
	_, _, err = judge.Evaluate(context.Background(), &Context{}, c, nil)
	assert.ErrorContains(t, err, "not in allowed set")
}

func TestJudgeEvaluator_GarbageOutputIsError(t *testing.T) {
	provider := llm.NewMockProvider(&llm.Response{Text: "I think the answer is probably fine"})
	judge, err := NewJudgeEvaluator(provider)
	require.NoError(t, err)

	_, _, err = judge.Evaluate(context.Background(), &Context{}, &Criterion{Name: "x"}, nil)
	assert.Error(t, err)
}

func TestJudgeEvaluator_UsesPromptTemplate(t *testing.T) {
	provider := llm.NewMockProvider(&llm.Response{Text: `{"value": 5}`})
	judge, err := NewJudgeEvaluator(provider)
	require.NoError(t, err)

	c := &Criterion{Name: "score", PromptTemplate: "Rate the answer from 1 to 5."}
	_, _, err = judge.Evaluate(context.Background(), &Context{}, c, nil)
	require.NoError(t, err)

	require.Len(t, provider.Requests, 1)
	sent := provider.Requests[0]
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Content, "Rate the answer from 1 to 5.")
}

func TestNewJudgeEvaluator_RequiresProvider(t *testing.T) {
	_, err := NewJudgeEvaluator(nil)
	assert.Error(t, err)
}
