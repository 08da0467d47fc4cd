package config

import (
	"os"
	"regexp"
	"strings"
)

var (
	envWithDefault = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`)
	envBraced      = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`)
	envSimple      = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)
)

// expandEnvVars substitutes ${VAR}, ${VAR:-default}, and $VAR references.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}

	s = envWithDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envWithDefault.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})

	s = envBraced.ReplaceAllStringFunc(s, func(match string) string {
		parts := envBraced.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})

	s = envSimple.ReplaceAllStringFunc(s, func(match string) string {
		parts := envSimple.FindStringSubmatch(match)
		return os.Getenv(parts[1])
	})

	return s
}
