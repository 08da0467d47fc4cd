package experience

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New(TypeCode, "title")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeCode, e.Type)
	assert.Equal(t, ScopeGlobal, e.Scope)
	assert.False(t, e.Metadata.CreatedAt.IsZero())
	assert.NoError(t, e.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Experience)
		wantErr bool
	}{
		{"valid", func(e *Experience) {}, false},
		{"blank id", func(e *Experience) { e.ID = "" }, true},
		{"unknown type", func(e *Experience) { e.Type = "WEIRD" }, true},
		{"unknown scope", func(e *Experience) { e.Scope = "EVERYONE" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(TypeCommon, "t")
			tt.mutate(e)
			err := e.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEffectiveContent_Verbatim(t *testing.T) {
	e := New(TypeCommon, "t")
	e.Content = "explicit content"
	e.Artifact = &Artifact{Kind: ArtifactCode, Language: "python", Body: "x = 1"}

	assert.Equal(t, "explicit content", e.EffectiveContent())
}

func TestEffectiveContent_SynthesizedFromArtifact(t *testing.T) {
	e := New(TypeCode, "t")
	e.Artifact = &Artifact{
		Kind:        ArtifactCode,
		Language:    "python",
		Description: "Adds two numbers.",
		Body:        "def add(a, b):\n    return a + b",
	}

	got := e.EffectiveContent()
	assert.Equal(t, "Adds two numbers.\n\n```python\ndef add(a, b):\n    return a + b\n```", got)
}

func TestEffectiveContent_NoArtifact(t *testing.T) {
	e := New(TypeCommon, "t")
	assert.Equal(t, "", e.EffectiveContent())

	e.Artifact = &Artifact{Kind: ArtifactToolPlan, Plan: []PlanStep{{Tool: "search"}}}
	assert.Equal(t, "", e.EffectiveContent())
}

func TestFastIntent_Matches(t *testing.T) {
	meta := map[string]string{"channel": "web"}

	tests := []struct {
		name    string
		rule    *FastIntent
		message string
		want    bool
	}{
		{
			name: "metadata equals hit",
			rule: &FastIntent{Condition: FastIntentMetadataEquals, Key: "channel", Value: "web"},
			want: true,
		},
		{
			name: "metadata equals miss",
			rule: &FastIntent{Condition: FastIntentMetadataEquals, Key: "channel", Value: "cli"},
			want: false,
		},
		{
			name:    "message prefix hit",
			rule:    &FastIntent{Condition: FastIntentMessagePrefix, Value: "deploy"},
			message: "deploy the service",
			want:    true,
		},
		{
			name:    "message prefix miss",
			rule:    &FastIntent{Condition: FastIntentMessagePrefix, Value: "deploy"},
			message: "please deploy",
			want:    false,
		},
		{
			name: "unknown condition never matches",
			rule: &FastIntent{Condition: "regex", Value: ".*"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(tt.message, meta))
		})
	}

	var nilRule *FastIntent
	require.False(t, nilRule.Matches("anything", meta))
}
