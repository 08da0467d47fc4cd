package codeact

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// Status is the lifecycle stage of a snippet.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusParsed     Status = "PARSED"
	StatusRegistered Status = "REGISTERED"
	StatusInvoked    Status = "INVOKED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Snippet is one unit of generated code moving through the lifecycle
// RECEIVED → PARSED → REGISTERED → INVOKED → {COMPLETED, FAILED}.
type Snippet struct {
	Code         string
	Language     tool.Language
	FunctionName string
	Imports      []string
	Status       Status
	ReceivedAt   time.Time
}

// ExecResult is what the interpreter reports back for one invocation.
type ExecResult struct {
	Output string
	Error  string
	Stack  string
}

// Executor runs registered snippets. The embedded interpreter implements
// this; the bridge drives it and never assumes which runtime is behind it.
type Executor interface {
	// RegisterFunction loads a snippet into the runtime under its
	// extracted function name.
	RegisterFunction(ctx context.Context, lang tool.Language, name, code string) error

	// Invoke calls a previously registered function with positional args.
	Invoke(ctx context.Context, lang tool.Language, name string, args []any) (*ExecResult, error)
}

var (
	pyImportRe = regexp.MustCompile(`(?m)^\s*(?:import\s+[\w.]+(?:\s+as\s+\w+)?|from\s+[\w.]+\s+import\s+.+)$`)
	jsImportRe = regexp.MustCompile(`(?m)^\s*(?:import\s+.+\s+from\s+['"].+['"];?|const\s+.+=\s*require\(['"].+['"]\);?)$`)
)

// ExtractImports collects the snippet's own import lines so the table can
// replay them before re-registering functions in a fresh runtime.
func ExtractImports(lang tool.Language, code string) []string {
	var re *regexp.Regexp
	switch lang {
	case tool.LangPython:
		re = pyImportRe
	case tool.LangJavaScript:
		re = jsImportRe
	default:
		return nil
	}
	matches := re.FindAllString(code, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		line := strings.TrimSpace(m)
		if !seen[line] {
			seen[line] = true
			out = append(out, line)
		}
	}
	return out
}

// FunctionTable tracks the snippets registered in the runtime, keyed by
// extracted function name per language.
type FunctionTable struct {
	mu      sync.RWMutex
	entries map[tool.Language]map[string]*Snippet
}

func NewFunctionTable() *FunctionTable {
	return &FunctionTable{entries: make(map[tool.Language]map[string]*Snippet)}
}

func (t *FunctionTable) put(s *Snippet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.entries[s.Language] == nil {
		t.entries[s.Language] = make(map[string]*Snippet)
	}
	t.entries[s.Language][s.FunctionName] = s
}

// Lookup returns the registered snippet for a function name.
func (t *FunctionTable) Lookup(lang tool.Language, name string) (*Snippet, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.entries[lang][name]
	return s, ok
}

// Names returns the registered function names for lang, sorted.
func (t *FunctionTable) Names(lang tool.Language) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.entries[lang]))
	for name := range t.entries[lang] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Imports returns the union of import lines across registered snippets
// for lang, in first-seen-per-snippet sorted order.
func (t *FunctionTable) Imports(lang tool.Language) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range t.entries[lang] {
		for _, imp := range s.Imports {
			if !seen[imp] {
				seen[imp] = true
				out = append(out, imp)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Bridge drives snippets through their lifecycle against an executor,
// recording every invocation into the turn state's execution history.
type Bridge struct {
	executor Executor
	table    *FunctionTable
	state    *state.State
}

func NewBridge(executor Executor, st *state.State) (*Bridge, error) {
	if executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if st == nil {
		return nil, fmt.Errorf("state is required")
	}
	return &Bridge{executor: executor, table: NewFunctionTable(), state: st}, nil
}

// Table exposes the function table for prompt assembly.
func (b *Bridge) Table() *FunctionTable {
	return b.table
}

// Register parses a snippet, extracts its entry function, and loads it
// into the runtime. The snippet is returned in REGISTERED state.
func (b *Bridge) Register(ctx context.Context, lang tool.Language, code string) (*Snippet, error) {
	s := &Snippet{
		Code:       code,
		Language:   lang,
		Status:     StatusReceived,
		ReceivedAt: time.Now(),
	}

	name, err := FunctionName(lang, code)
	if err != nil {
		return s, err
	}
	s.FunctionName = name
	s.Imports = ExtractImports(lang, code)
	s.Status = StatusParsed

	if err := b.executor.RegisterFunction(ctx, lang, name, code); err != nil {
		return s, fmt.Errorf("failed to register function '%s': %w", name, err)
	}
	s.Status = StatusRegistered
	b.table.put(s)
	return s, nil
}

// Invoke runs a registered snippet. A runtime failure moves the snippet
// to FAILED and records the error, but does not return a Go error: the
// agent loop continues and the model sees the failure in the history.
func (b *Bridge) Invoke(ctx context.Context, s *Snippet, args []any) *protocol.ExecutionRecord {
	rec := &protocol.ExecutionRecord{
		Code:         s.Code,
		FunctionName: s.FunctionName,
		Language:     string(s.Language),
		StartedAt:    time.Now(),
	}
	s.Status = StatusInvoked

	result, err := b.executor.Invoke(ctx, s.Language, s.FunctionName, args)
	rec.Duration = time.Since(rec.StartedAt)

	switch {
	case err != nil:
		s.Status = StatusFailed
		rec.Error = err.Error()
	case result.Error != "":
		s.Status = StatusFailed
		rec.Error = result.Error
		rec.Stack = result.Stack
	default:
		s.Status = StatusCompleted
		rec.Success = true
		rec.Result = result.Output
	}

	b.state.AppendExecutionRecord(rec)
	return rec
}

// Run is the full path: register the snippet, then invoke it once. A
// snippet that fails before invocation still lands in the execution
// history as a FAILED record.
func (b *Bridge) Run(ctx context.Context, lang tool.Language, code string, args []any) (*protocol.ExecutionRecord, error) {
	s, err := b.Register(ctx, lang, code)
	if err != nil {
		s.Status = StatusFailed
		rec := &protocol.ExecutionRecord{
			Code:         code,
			FunctionName: s.FunctionName,
			Language:     string(lang),
			StartedAt:    time.Now(),
			Error:        err.Error(),
		}
		b.state.AppendExecutionRecord(rec)
		return rec, err
	}
	return b.Invoke(ctx, s, args), nil
}
