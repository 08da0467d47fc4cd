package codeact

import (
	"fmt"
	"regexp"

	"github.com/zk279444107/AssistantAgent-sub002/pkg/tool"
)

var (
	pyDefRe      = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	jsFunctionRe = regexp.MustCompile(`(?m)^\s*(?:async\s+)?function\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	jsArrowRe    = regexp.MustCompile(`(?m)^\s*(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s*)?\(`)
)

// FunctionName extracts the entry function name from a snippet. The first
// top-level definition wins. A snippet without an extractable name cannot
// be registered or invoked, so failure here is a hard error.
func FunctionName(lang tool.Language, code string) (string, error) {
	switch lang {
	case tool.LangPython:
		if m := pyDefRe.FindStringSubmatch(code); m != nil {
			return m[1], nil
		}
	case tool.LangJavaScript:
		if m := jsFunctionRe.FindStringSubmatch(code); m != nil {
			return m[1], nil
		}
		if m := jsArrowRe.FindStringSubmatch(code); m != nil {
			return m[1], nil
		}
	default:
		return "", fmt.Errorf("unsupported language: %s", lang)
	}
	return "", fmt.Errorf("no function definition found in %s snippet", lang)
}
