// Package functiontool builds tool records from typed Go functions. The
// parameter tree is generated from the Args struct's json and jsonschema
// tags, so handlers get compile-time type safety without hand-written
// schemas.
//
// Example:
//
//	type SearchArgs struct {
//	    Query string `json:"query" jsonschema:"required,description=Search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=Max results,default=10"`
//	}
//
//	rec, err := functiontool.New(
//	    functiontool.Config{Name: "search", Description: "Search documents"},
//	    func(ctx context.Context, args SearchArgs) (map[string]any, error) {
//	        ...
//	    },
//	)
package functiontool

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// Config carries the declarative parts of a function tool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string

	// Description explains what the tool does (required).
	Description string

	DisplayName string
	Category    tool.Category
	Languages   []tool.Language
	Examples    []tool.Example
	DirectReply bool
	TargetClass string
	Aliases     []string

	// Returns declares the success shape; nil leaves it to observation.
	Returns *tool.ReturnSchema
}

// New builds a registry record from a typed function.
//
// The function signature must be:
//
//	func(context.Context, Args) (map[string]any, error)
//
// where Args is a struct with json and jsonschema tags.
func New[Args any](cfg Config, fn func(context.Context, Args) (map[string]any, error)) (*tool.Record, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("function tool name is required")
	}
	if cfg.Description == "" {
		return nil, fmt.Errorf("function tool '%s' has no description", cfg.Name)
	}
	if fn == nil {
		return nil, fmt.Errorf("function tool '%s' has no function", cfg.Name)
	}

	params, err := parametersOf[Args]()
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema for %s: %w", cfg.Name, err)
	}

	def := &tool.Definition{
		Name:        cfg.Name,
		Description: cfg.Description,
		DisplayName: cfg.DisplayName,
		Category:    cfg.Category,
		Parameters:  params,
		Returns:     cfg.Returns,
		Languages:   cfg.Languages,
		Examples:    cfg.Examples,
		DirectReply: cfg.DirectReply,
		TargetClass: cfg.TargetClass,
		Aliases:     cfg.Aliases,
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	handler := func(ctx context.Context, args map[string]any) (map[string]any, error) {
		var typed Args
		if err := mapToStruct(args, &typed); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", cfg.Name, err)
		}
		return fn(ctx, typed)
	}

	return &tool.Record{Definition: def, Call: handler}, nil
}

// NewWithValidation adds a custom argument check that runs before fn.
func NewWithValidation[Args any](
	cfg Config,
	fn func(context.Context, Args) (map[string]any, error),
	validate func(Args) error,
) (*tool.Record, error) {
	if validate == nil {
		return nil, fmt.Errorf("function tool '%s' has a nil validator", cfg.Name)
	}
	return New(cfg, func(ctx context.Context, args Args) (map[string]any, error) {
		if err := validate(args); err != nil {
			return nil, fmt.Errorf("validation failed for %s: %w", cfg.Name, err)
		}
		return fn(ctx, args)
	})
}

// mapToStruct converts decoded arguments to the typed Args struct. Weak
// typing coerces the float64 numbers JSON decoding produces into the
// struct's integer fields.
func mapToStruct(m map[string]any, target any) error {
	if m == nil {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("failed to build args decoder: %w", err)
	}
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("failed to decode args: %w", err)
	}
	return nil
}
