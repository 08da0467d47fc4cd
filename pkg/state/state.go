// Package state provides the turn-scoped state map shared by hooks, the
// code-acting bridge, and the learning subsystem.
//
// The map is single-writer per pipeline stage: stages run in order and each
// observes the writes of all prior stages. Concurrent evaluation fan-out
// never writes here; it owns suite-local state instead.
package state

import (
	"reflect"
	"sync"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
)

// Well-known state keys used by the core runtime.
const (
	KeyMessages         = "messages"
	KeyGeneratedCode    = "generated_code"
	KeyExecutionHistory = "execution_history"
	KeyLanguage         = "language"
	KeyUserID           = "user_id"
	KeyUserInput        = "user_input"
)

// State is a turn-scoped mapping from string key to opaque value.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// New returns an empty State.
func New() *State {
	return &State{values: make(map[string]any)}
}

// NewFrom returns a State seeded with the given values.
func NewFrom(values map[string]any) *State {
	s := New()
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key, replacing any previous value.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Has reports whether key is present.
func (s *State) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Delete removes key from the map.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// CompareAndSwap replaces the value under key with next only if the current
// value deep-equals expected. A nil expected matches an absent key.
func (s *State) CompareAndSwap(key string, expected, next any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.values[key]
	if expected == nil {
		if ok {
			return false
		}
	} else if !ok || !reflect.DeepEqual(current, expected) {
		return false
	}

	s.values[key] = next
	return true
}

// Apply stores every entry of updates. Used by the hook pipeline to fold a
// hook's returned updates into the turn state.
func (s *State) Apply(updates map[string]any) {
	if len(updates) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range updates {
		s.values[k] = v
	}
}

// Snapshot returns a shallow copy of the current contents.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Len returns the number of stored keys.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Messages returns the conversation under KeyMessages, or nil.
func (s *State) Messages() []*protocol.Message {
	v, ok := s.Get(KeyMessages)
	if !ok {
		return nil
	}
	msgs, _ := v.([]*protocol.Message)
	return msgs
}

// AppendMessage appends msg to the conversation under KeyMessages.
func (s *State) AppendMessage(msg *protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, _ := s.values[KeyMessages].([]*protocol.Message)
	s.values[KeyMessages] = append(msgs, msg)
}

// GeneratedCode returns the list of code snippets produced this turn.
func (s *State) GeneratedCode() []string {
	v, ok := s.Get(KeyGeneratedCode)
	if !ok {
		return nil
	}
	code, _ := v.([]string)
	return code
}

// AppendGeneratedCode appends a snippet under KeyGeneratedCode.
func (s *State) AppendGeneratedCode(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snippets, _ := s.values[KeyGeneratedCode].([]string)
	s.values[KeyGeneratedCode] = append(snippets, code)
}

// ExecutionHistory returns the execution records collected this turn.
func (s *State) ExecutionHistory() []*protocol.ExecutionRecord {
	v, ok := s.Get(KeyExecutionHistory)
	if !ok {
		return nil
	}
	records, _ := v.([]*protocol.ExecutionRecord)
	return records
}

// AppendExecutionRecord appends rec under KeyExecutionHistory.
func (s *State) AppendExecutionRecord(rec *protocol.ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, _ := s.values[KeyExecutionHistory].([]*protocol.ExecutionRecord)
	s.values[KeyExecutionHistory] = append(records, rec)
}

// Language returns the current target language, or the empty string.
func (s *State) Language() string {
	v, _ := s.Get(KeyLanguage)
	lang, _ := v.(string)
	return lang
}

// UserID returns the current user id, or the empty string.
func (s *State) UserID() string {
	v, _ := s.Get(KeyUserID)
	id, _ := v.(string)
	return id
}
