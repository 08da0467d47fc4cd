// Package tool owns the authoritative set of tools the agent can call:
// structured definitions, per-language stub rendering for generated code,
// and runtime schema inference from observed return values.
package tool

import (
	"context"
	"fmt"
)

// Language is a stub-rendering target.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
)

// ParamType is the scalar type of a parameter or shape node.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeObject  ParamType = "object"
	TypeArray   ParamType = "array"
	TypeNull    ParamType = "null"
	TypeUnknown ParamType = "unknown"
)

// Category tags a tool family. A single record with a category tag replaces
// a marker-interface hierarchy.
type Category string

const (
	CategoryGeneral    Category = "general"
	CategoryReply      Category = "reply"
	CategorySearch     Category = "search"
	CategoryTrigger    Category = "trigger"
	CategoryLearning   Category = "learning"
	CategoryExperience Category = "experience"
)

// Parameter is one node of a tool's parameter tree. Object nodes carry an
// ordered list of children.
type Parameter struct {
	Name        string       `json:"name"`
	Type        ParamType    `json:"type"`
	Required    bool         `json:"required"`
	Default     any          `json:"default,omitempty"`
	Enum        []any        `json:"enum,omitempty"`
	Description string       `json:"description,omitempty"`
	Children    []*Parameter `json:"children,omitempty"`
}

// Example is a few-shot usage sample rendered into the stub docstring.
type Example struct {
	Description string `json:"description,omitempty"`
	Call        string `json:"call"`
	Result      string `json:"result,omitempty"`
}

// Definition describes a tool. Immutable once registered.
type Definition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	DisplayName string     `json:"display_name,omitempty"`
	Category    Category   `json:"category,omitempty"`
	Parameters  []*Parameter `json:"parameters,omitempty"`

	// Returns is the declared return schema; nil when the tool declares none.
	Returns *ReturnSchema `json:"returns,omitempty"`

	// Languages restricts which stub targets include the tool.
	// Empty means every language.
	Languages []Language `json:"languages,omitempty"`

	Examples []Example `json:"examples,omitempty"`

	// DirectReply marks tools whose output terminates the turn.
	DirectReply bool `json:"direct_reply,omitempty"`

	// TargetClass groups tools rendered together as methods of a
	// synthesized class in generated stubs.
	TargetClass string `json:"target_class,omitempty"`

	Aliases []string `json:"aliases,omitempty"`
}

// SupportsLanguage reports whether the tool is available for lang.
func (d *Definition) SupportsLanguage(lang Language) bool {
	if len(d.Languages) == 0 {
		return true
	}
	for _, l := range d.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Validate checks registration-time invariants.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if d.Description == "" {
		return fmt.Errorf("tool '%s' has no description", d.Name)
	}
	return validateParameters(d.Name, d.Parameters)
}

func validateParameters(tool string, params []*Parameter) error {
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if p.Name == "" {
			return fmt.Errorf("tool '%s' has a parameter with no name", tool)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool '%s' declares parameter '%s' twice", tool, p.Name)
		}
		seen[p.Name] = true
		if p.Type == TypeObject {
			if err := validateParameters(tool, p.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// Handler executes a tool call with decoded arguments.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Record pairs a definition with its call implementation. The registry
// holds exactly one record per name.
type Record struct {
	Definition *Definition
	Call       Handler
}

// ToJSONSchema renders the parameter tree as a JSON-Schema object, suitable
// for the model's native tool-call interface.
func ToJSONSchema(params []*Parameter) map[string]any {
	properties := make(map[string]any, len(params))
	var required []string
	for _, p := range params {
		properties[p.Name] = parameterSchema(p)
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func parameterSchema(p *Parameter) map[string]any {
	out := map[string]any{}
	if p.Type != "" && p.Type != TypeUnknown {
		out["type"] = string(p.Type)
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if p.Default != nil {
		out["default"] = p.Default
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Type == TypeObject && len(p.Children) > 0 {
		children := ToJSONSchema(p.Children)
		out["properties"] = children["properties"]
		if req, ok := children["required"]; ok {
			out["required"] = req
		}
	}
	return out
}
