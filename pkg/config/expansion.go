package config

import (
	"os"
	"regexp"
)

// envVarPattern matches both ${VAR} and ${VAR:default} forms (spec §6
// "Environment substitution in YAML: ${VAR}, ${VAR:default}"),
// generalized from the teacher's bash-style "${VAR:-default}" into the
// single-colon form the specification actually uses.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		name, def := parts[1], parts[2]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

// expandEnvVarsInData walks a koanf raw map/slice tree, substituting
// ${VAR}/${VAR:default} in every string leaf (spec §6, grounded on the
// teacher's ExpandEnvVarsInData recursion shape).
func expandEnvVarsInData(data any) any {
	switch v := data.(type) {
	case string:
		return expandEnvVars(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = expandEnvVarsInData(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = expandEnvVarsInData(val)
		}
		return out
	default:
		return v
	}
}
