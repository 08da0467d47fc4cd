package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/pkoukk/tiktoken-go"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/experience"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/llm"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/protocol"
	"github.com/zk279444107/AssistantAgent-sub002/pkg/state"
)

const (
	// digest limits: how much of the turn feeds the judge prompt
	maxCodeEntries = 2
	maxCodeTokens  = 400
	maxRecentTurns = 4

	digestEncoding  = "cl100k_base"
	llmGeneratedTag = "llm_generated"
)

const extractorSystemPrompt = `You distill reusable experiences from completed agent turns.
Categories:
- CODE: a reusable code pattern or snippet.
- REACT: a reusable tool-call plan.
- COMMON: a general lesson about the task domain.

Respond with a JSON array only. Each element:
{"type": "CODE|REACT|COMMON", "title": "...", "content": "...", "language": "...", "tags": ["..."]}
Return [] when the turn has nothing worth keeping.`

// Extractor distills a turn into experience records via an LLM judge.
type Extractor struct {
	provider llm.Provider
	encoder  *tiktoken.Tiktoken
}

func NewExtractor(provider llm.Provider) (*Extractor, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	// the encoder fetches its vocabulary on first use; without it we fall
	// back to character truncation
	encoder, err := tiktoken.GetEncoding(digestEncoding)
	if err != nil {
		slog.Warn("Token encoder unavailable, truncating by characters", "error", err)
		encoder = nil
	}
	return &Extractor{provider: provider, encoder: encoder}, nil
}

// Extract builds the turn digest, asks the judge, and promotes each
// returned element to an Experience.
func (e *Extractor) Extract(ctx context.Context, tc *TriggerContext) ([]*experience.Experience, error) {
	digest := e.buildDigest(tc)
	if digest == "" {
		return nil, nil
	}

	messages := []*protocol.Message{
		protocol.NewSystemMessage(extractorSystemPrompt),
		protocol.NewUserMessage(digest),
	}
	resp, err := e.provider.Generate(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("extraction judge call failed: %w", err)
	}

	return e.promote(resp.Text, tc)
}

// buildDigest summarizes the turn: user request, generated code (first
// entries, token-truncated), recent conversation, and tool usage.
func (e *Extractor) buildDigest(tc *TriggerContext) string {
	if tc == nil {
		return ""
	}
	var b strings.Builder

	if tc.State != nil {
		if input, ok := tc.State.Get(state.KeyUserInput); ok {
			fmt.Fprintf(&b, "User request:\n%v\n\n", input)
		}

		code := tc.State.GeneratedCode()
		if len(code) > maxCodeEntries {
			code = code[:maxCodeEntries]
		}
		for i, snippet := range code {
			fmt.Fprintf(&b, "Generated code %d:\n%s\n\n", i+1, e.truncate(snippet, maxCodeTokens))
		}
	}

	turns := tc.Conversation
	if len(turns) > maxRecentTurns {
		turns = turns[len(turns)-maxRecentTurns:]
	}
	if len(turns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range turns {
			fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	if len(tc.ToolCalls) > 0 {
		b.WriteString("Tool usage:\n")
		for _, trace := range tc.ToolCalls {
			fmt.Fprintf(&b, "- %s success=%t\n", trace.Tool, trace.Success)
		}
	}
	return strings.TrimSpace(b.String())
}

// truncate cuts text to at most n tokens, or 4n characters when no
// encoder is available.
func (e *Extractor) truncate(text string, n int) string {
	if e.encoder == nil {
		limit := n * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit] + "\n# ...truncated"
	}
	tokens := e.encoder.Encode(text, nil, nil)
	if len(tokens) <= n {
		return text
	}
	return e.encoder.Decode(tokens[:n]) + "\n# ...truncated"
}

type extractedRecord struct {
	Type     string   `json:"type"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Language string   `json:"language,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// promote parses the judge output and converts each element into an
// Experience with scope GLOBAL and the llm_generated tag.
func (e *Extractor) promote(text string, tc *TriggerContext) ([]*experience.Experience, error) {
	records, err := parseRecords(text)
	if err != nil {
		return nil, err
	}

	out := make([]*experience.Experience, 0, len(records))
	for _, rec := range records {
		typ, ok := recordType(rec.Type)
		if !ok || rec.Title == "" {
			continue
		}
		exp := experience.New(typ, rec.Title)
		exp.Content = rec.Content
		exp.Language = rec.Language
		if exp.Language == "" && typ == experience.TypeCode {
			exp.Language = string(languageOf(tc.State))
		}
		exp.Tags = appendUnique(rec.Tags, llmGeneratedTag)
		exp.Metadata.Source = "learning"
		out = append(out, exp)
	}
	return out, nil
}

func parseRecords(text string) ([]extractedRecord, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var records []extractedRecord
	if err := json.Unmarshal([]byte(trimmed), &records); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(trimmed)
		if repairErr != nil {
			return nil, fmt.Errorf("extractor output is not JSON: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &records); err != nil {
			return nil, fmt.Errorf("extractor output is not JSON after repair: %w", err)
		}
	}
	return records, nil
}

func recordType(s string) (experience.Type, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CODE":
		return experience.TypeCode, true
	case "REACT":
		return experience.TypeReact, true
	case "COMMON":
		return experience.TypeCommon, true
	}
	return "", false
}

func appendUnique(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	return append(tags, tag)
}
