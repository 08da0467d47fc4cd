package codeact

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// fakeExecutor records registrations and returns scripted results.
type fakeExecutor struct {
	registered  map[string]string
	result      *ExecResult
	registerErr error
	invokeErr   error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		registered: make(map[string]string),
		result:     &ExecResult{Output: "42"},
	}
}

func (f *fakeExecutor) RegisterFunction(ctx context.Context, lang tool.Language, name, code string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered[name] = code
	return nil
}

func (f *fakeExecutor) Invoke(ctx context.Context, lang tool.Language, name string, args []any) (*ExecResult, error) {
	if f.invokeErr != nil {
		return nil, f.invokeErr
	}
	return f.result, nil
}

func TestFunctionName(t *testing.T) {
	tests := []struct {
		name    string
		lang    tool.Language
		code    string
		want    string
		wantErr bool
	}{
		{"python def", tool.LangPython, "def fetch_user(uid):\n    pass", "fetch_user", false},
		{"python async def", tool.LangPython, "async def fetch(uid):\n    pass", "fetch", false},
		{"js function", tool.LangJavaScript, "function fetchUser(uid) {}", "fetchUser", false},
		{"js arrow const", tool.LangJavaScript, "const fetchUser = (uid) => {};", "fetchUser", false},
		{"python no def", tool.LangPython, "x = 1", "", true},
		{"js no function", tool.LangJavaScript, "x = 1", "", true},
		{"unsupported", tool.Language("ruby"), "def x: end", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FunctionName(tt.lang, tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractImports(t *testing.T) {
	code := "import json\nfrom math import sqrt\nimport json\n\ndef f():\n    pass"
	got := ExtractImports(tool.LangPython, code)
	assert.Equal(t, []string{"import json", "from math import sqrt"}, got)

	js := "const fs = require('fs');\nimport axios from 'axios';\nfunction f() {}"
	got = ExtractImports(tool.LangJavaScript, js)
	assert.Len(t, got, 2)
}

func TestBridge_RegisterLifecycle(t *testing.T) {
	exec := newFakeExecutor()
	b, err := NewBridge(exec, state.New())
	require.NoError(t, err)

	s, err := b.Register(context.Background(), tool.LangPython, "import json\ndef compute():\n    return 42")
	require.NoError(t, err)

	assert.Equal(t, StatusRegistered, s.Status)
	assert.Equal(t, "compute", s.FunctionName)
	assert.Equal(t, []string{"import json"}, s.Imports)
	assert.Contains(t, exec.registered, "compute")

	got, ok := b.Table().Lookup(tool.LangPython, "compute")
	require.True(t, ok)
	assert.Equal(t, s, got)
}

func TestBridge_RegisterParseFailureIsHard(t *testing.T) {
	b, err := NewBridge(newFakeExecutor(), state.New())
	require.NoError(t, err)

	s, err := b.Register(context.Background(), tool.LangPython, "x = 1")
	require.Error(t, err)
	assert.Equal(t, StatusReceived, s.Status)
}

func TestBridge_RegisterRuntimeFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.registerErr = fmt.Errorf("syntax error")
	b, err := NewBridge(exec, state.New())
	require.NoError(t, err)

	s, err := b.Register(context.Background(), tool.LangPython, "def f():\n    pass")
	require.Error(t, err)
	assert.Equal(t, StatusParsed, s.Status)
}

func TestBridge_RunRecordsRegistrationFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.registerErr = fmt.Errorf("syntax error")
	st := state.New()
	b, err := NewBridge(exec, st)
	require.NoError(t, err)

	rec, err := b.Run(context.Background(), tool.LangPython, "def broken():\n    pass", nil)
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Success)
	assert.Contains(t, rec.Error, "syntax error")

	history := st.ExecutionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "broken", history[0].FunctionName)
	assert.False(t, history[0].Success)
}

func TestBridge_RunRecordsUnparseableCode(t *testing.T) {
	st := state.New()
	b, err := NewBridge(newFakeExecutor(), st)
	require.NoError(t, err)

	_, err = b.Run(context.Background(), tool.LangPython, "x = 1", nil)
	require.Error(t, err)

	history := st.ExecutionHistory()
	require.Len(t, history, 1)
	assert.Empty(t, history[0].FunctionName)
	assert.NotEmpty(t, history[0].Error)
}

func TestBridge_InvokeSuccess(t *testing.T) {
	exec := newFakeExecutor()
	st := state.New()
	b, err := NewBridge(exec, st)
	require.NoError(t, err)

	rec, err := b.Run(context.Background(), tool.LangPython, "def compute():\n    return 42", nil)
	require.NoError(t, err)

	assert.True(t, rec.Success)
	assert.Equal(t, "42", rec.Result)
	assert.Equal(t, "compute", rec.FunctionName)

	history := st.ExecutionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, rec, history[0])
}

func TestBridge_InvokeFailureRecordedNotRaised(t *testing.T) {
	exec := newFakeExecutor()
	exec.result = &ExecResult{Error: "NameError: undefined", Stack: "line 1, in compute"}
	st := state.New()
	b, err := NewBridge(exec, st)
	require.NoError(t, err)

	s, err := b.Register(context.Background(), tool.LangPython, "def compute():\n    return nope")
	require.NoError(t, err)

	rec := b.Invoke(context.Background(), s, nil)
	assert.Equal(t, StatusFailed, s.Status)
	assert.False(t, rec.Success)
	assert.Equal(t, "NameError: undefined", rec.Error)
	assert.Equal(t, "line 1, in compute", rec.Stack)

	// the failure lands in state so the loop can continue with context
	history := st.ExecutionHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "NameError: undefined", history[0].Error)
}

func TestBridge_InvokeTransportFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.invokeErr = fmt.Errorf("runtime unreachable")
	b, err := NewBridge(exec, state.New())
	require.NoError(t, err)

	s, err := b.Register(context.Background(), tool.LangPython, "def f():\n    pass")
	require.NoError(t, err)

	rec := b.Invoke(context.Background(), s, nil)
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, "runtime unreachable", rec.Error)
}

func TestFunctionTable_Imports(t *testing.T) {
	table := NewFunctionTable()
	table.put(&Snippet{Language: tool.LangPython, FunctionName: "a", Imports: []string{"import json"}})
	table.put(&Snippet{Language: tool.LangPython, FunctionName: "b", Imports: []string{"import json", "import re"}})

	assert.Equal(t, []string{"import json", "import re"}, table.Imports(tool.LangPython))
	assert.Equal(t, []string{"a", "b"}, table.Names(tool.LangPython))
}
