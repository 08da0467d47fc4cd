package codeact

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

// RenderCall renders an invocation of fn with positional args as a
// statement in the target language. Argument values convert recursively
// to native literals.
func RenderCall(lang tool.Language, fn string, args []any) (string, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		lit, err := Literal(lang, a)
		if err != nil {
			return "", fmt.Errorf("argument %d: %w", i, err)
		}
		parts[i] = lit
	}
	switch lang {
	case tool.LangPython:
		return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", ")), nil
	case tool.LangJavaScript:
		return fmt.Sprintf("%s(%s);", fn, strings.Join(parts, ", ")), nil
	}
	return "", fmt.Errorf("unsupported language: %s", lang)
}

// Literal converts a Go value to a source literal in the target language.
// Maps render with sorted keys so output is deterministic.
func Literal(lang tool.Language, v any) (string, error) {
	switch val := v.(type) {
	case nil:
		if lang == tool.LangPython {
			return "None", nil
		}
		return "null", nil
	case bool:
		if lang == tool.LangPython {
			if val {
				return "True", nil
			}
			return "False", nil
		}
		return strconv.FormatBool(val), nil
	case string:
		return strconv.Quote(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10), nil
		}
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			lit, err := Literal(lang, elem)
			if err != nil {
				return "", err
			}
			parts[i] = lit
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			lit, err := Literal(lang, val[k])
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s: %s", strconv.Quote(k), lit))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	default:
		return "", fmt.Errorf("cannot render %T as a %s literal", v, lang)
	}
}
