// Package experience persists reusable agent experiences with scoped
// retrieval. The default store is in-memory; Repository is the seam for a
// persistent replacement.
package experience

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies what kind of turn an experience was extracted from.
type Type string

const (
	TypeCode   Type = "CODE"
	TypeReact  Type = "REACT"
	TypeCommon Type = "COMMON"
)

// Scope is the visibility rule of an experience.
type Scope string

const (
	ScopeGlobal  Scope = "GLOBAL"
	ScopeTeam    Scope = "TEAM"
	ScopeUser    Scope = "USER"
	ScopeProject Scope = "PROJECT"
)

// ArtifactKind distinguishes structured artifacts.
type ArtifactKind string

const (
	ArtifactCode     ArtifactKind = "code"
	ArtifactToolPlan ArtifactKind = "tool_plan"
)

// PlanStep references a tool by name only; holding the tool record here
// would create an object cycle back into the registry.
type PlanStep struct {
	Tool     string `json:"tool"`
	ArgsJSON string `json:"args_json,omitempty"`
	Note     string `json:"note,omitempty"`
}

// Artifact is a value object attached to an experience: either a code
// snippet or a planned tool sequence.
type Artifact struct {
	Kind        ArtifactKind `json:"kind"`
	Language    string       `json:"language,omitempty"`
	Description string       `json:"description,omitempty"`
	Body        string       `json:"body,omitempty"`
	Plan        []PlanStep   `json:"plan,omitempty"`
}

// FastIntent is a cheap pre-LLM match rule. Only metadata_equals and
// message_prefix conditions are honored; unknown types never match.
type FastIntent struct {
	Condition string `json:"condition"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value"`
}

const (
	FastIntentMetadataEquals = "metadata_equals"
	FastIntentMessagePrefix  = "message_prefix"
)

// Matches evaluates the rule against a message and request metadata.
func (f *FastIntent) Matches(message string, metadata map[string]string) bool {
	if f == nil {
		return false
	}
	switch f.Condition {
	case FastIntentMetadataEquals:
		return metadata != nil && metadata[f.Key] == f.Value
	case FastIntentMessagePrefix:
		return strings.HasPrefix(message, f.Value)
	default:
		return false
	}
}

// Metadata carries provenance for an experience.
type Metadata struct {
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Experience is one persisted unit of reusable signal.
type Experience struct {
	ID         string      `json:"id"`
	Type       Type        `json:"type"`
	Title      string      `json:"title"`
	Content    string      `json:"content,omitempty"`
	Artifact   *Artifact   `json:"artifact,omitempty"`
	FastIntent *FastIntent `json:"fast_intent,omitempty"`
	Scope      Scope       `json:"scope"`
	Owner      string      `json:"owner,omitempty"`
	Project    string      `json:"project,omitempty"`
	Repo       string      `json:"repo,omitempty"`
	Language   string      `json:"language,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// New returns an experience with a generated ID and timestamps set to now.
func New(typ Type, title string) *Experience {
	now := time.Now()
	return &Experience{
		ID:    uuid.New().String(),
		Type:  typ,
		Title: title,
		Scope: ScopeGlobal,
		Metadata: Metadata{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// Validate checks the invariants required before persisting.
func (e *Experience) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("experience id cannot be blank")
	}
	switch e.Type {
	case TypeCode, TypeReact, TypeCommon:
	default:
		return fmt.Errorf("unknown experience type: %q", e.Type)
	}
	switch e.Scope {
	case ScopeGlobal, ScopeTeam, ScopeUser, ScopeProject:
	default:
		return fmt.Errorf("unknown experience scope: %q", e.Scope)
	}
	return nil
}

// HasTag reports whether tag is present in the tag set.
func (e *Experience) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EffectiveContent returns Content verbatim when non-blank; otherwise, if a
// code artifact exists, it synthesizes the content from the artifact:
// optional description lines followed by a fenced code block.
func (e *Experience) EffectiveContent() string {
	if strings.TrimSpace(e.Content) != "" {
		return e.Content
	}
	if e.Artifact == nil || e.Artifact.Kind != ArtifactCode || e.Artifact.Body == "" {
		return e.Content
	}

	var sb strings.Builder
	if e.Artifact.Description != "" {
		sb.WriteString(e.Artifact.Description)
		sb.WriteString("\n\n")
	}
	sb.WriteString("```")
	sb.WriteString(e.Artifact.Language)
	sb.WriteString("\n")
	sb.WriteString(e.Artifact.Body)
	if !strings.HasSuffix(e.Artifact.Body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```")
	return sb.String()
}
