package functiontool

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max results,default=10"`
}

func TestNew_GeneratesParameters(t *testing.T) {
	rec, err := New(
		Config{Name: "search", Description: "Search documents"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return map[string]any{"count": 0}, nil
		},
	)
	require.NoError(t, err)
	require.Len(t, rec.Definition.Parameters, 2)

	byName := make(map[string]*tool.Parameter)
	for _, p := range rec.Definition.Parameters {
		byName[p.Name] = p
	}

	query := byName["query"]
	require.NotNil(t, query)
	assert.Equal(t, tool.TypeString, query.Type)
	assert.True(t, query.Required)
	assert.Equal(t, "Search query", query.Description)

	limit := byName["limit"]
	require.NotNil(t, limit)
	assert.Equal(t, tool.TypeInteger, limit.Type)
	assert.False(t, limit.Required)
}

func TestNew_HandlerDecodesArgs(t *testing.T) {
	rec, err := New(
		Config{Name: "search", Description: "Search documents"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return map[string]any{"query": args.Query, "limit": args.Limit}, nil
		},
	)
	require.NoError(t, err)

	out, err := rec.Call(context.Background(), map[string]any{"query": "go", "limit": float64(5)})
	require.NoError(t, err)
	assert.Equal(t, "go", out["query"])
	assert.Equal(t, 5, out["limit"])
}

func TestNew_BadArgsError(t *testing.T) {
	rec, err := New(
		Config{Name: "search", Description: "Search documents"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return nil, nil
		},
	)
	require.NoError(t, err)

	_, err = rec.Call(context.Background(), map[string]any{"limit": "not a number"})
	assert.ErrorContains(t, err, "invalid arguments for search")
}

func TestNew_Validation(t *testing.T) {
	fn := func(ctx context.Context, args searchArgs) (map[string]any, error) { return nil, nil }

	_, err := New(Config{Description: "d"}, fn)
	assert.Error(t, err)

	_, err = New(Config{Name: "n"}, fn)
	assert.Error(t, err)

	_, err = New[searchArgs](Config{Name: "n", Description: "d"}, nil)
	assert.Error(t, err)
}

func TestNewWithValidation(t *testing.T) {
	rec, err := NewWithValidation(
		Config{Name: "search", Description: "Search documents"},
		func(ctx context.Context, args searchArgs) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
		func(args searchArgs) error {
			if args.Query == "" {
				return fmt.Errorf("query must not be empty")
			}
			return nil
		},
	)
	require.NoError(t, err)

	_, err = rec.Call(context.Background(), map[string]any{"query": ""})
	assert.ErrorContains(t, err, "validation failed for search")

	out, err := rec.Call(context.Background(), map[string]any{"query": "go"})
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
}

func TestNew_EmptyArgs(t *testing.T) {
	rec, err := New(
		Config{Name: "ping", Description: "Liveness check"},
		func(ctx context.Context, args struct{}) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	)
	require.NoError(t, err)
	assert.Empty(t, rec.Definition.Parameters)

	out, err := rec.Call(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, true, out["ok"])
}

func TestNew_InlineStructArgs(t *testing.T) {
	rec, err := New(
		Config{Name: "echo", Description: "Echo content"},
		func(ctx context.Context, args struct {
			Content string `json:"content" jsonschema:"required"`
		}) (map[string]any, error) {
			return map[string]any{"content": args.Content}, nil
		},
	)
	require.NoError(t, err)
	require.Len(t, rec.Definition.Parameters, 1)
	assert.Equal(t, "content", rec.Definition.Parameters[0].Name)
	assert.True(t, rec.Definition.Parameters[0].Required)

	out, err := rec.Call(context.Background(), map[string]any{"content": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out["content"])
}

func TestNew_NonStructArgs(t *testing.T) {
	_, err := New(
		Config{Name: "bad", Description: "Bad args"},
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, nil
		},
	)
	assert.ErrorContains(t, err, "must be a struct")
}

type nestedArgs struct {
	Filter struct {
		Language string `json:"language" jsonschema:"required,description=Filter language"`
	} `json:"filter" jsonschema:"required"`
}

func TestNew_NestedObjects(t *testing.T) {
	rec, err := New(
		Config{Name: "filtered", Description: "Filtered lookup"},
		func(ctx context.Context, args nestedArgs) (map[string]any, error) {
			return nil, nil
		},
	)
	require.NoError(t, err)
	require.Len(t, rec.Definition.Parameters, 1)

	filter := rec.Definition.Parameters[0]
	assert.Equal(t, tool.TypeObject, filter.Type)
	require.Len(t, filter.Children, 1)
	assert.Equal(t, "language", filter.Children[0].Name)
	assert.True(t, filter.Children[0].Required)
}

func TestNew_RegistersCleanly(t *testing.T) {
	rec, err := New(
		Config{
			Name:        "reply_text",
			Description: "Send a plain text reply",
			Category:    tool.CategoryReply,
			DirectReply: true,
		},
		func(ctx context.Context, args struct{}) (map[string]any, error) {
			return nil, nil
		},
	)
	require.NoError(t, err)

	r := tool.NewRegistry()
	require.NoError(t, r.Register(rec))

	got, err := r.Tool("reply_text")
	require.NoError(t, err)
	assert.True(t, got.Definition.DirectReply)
}
