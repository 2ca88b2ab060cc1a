// Package agents implements the five concrete agents (spec §4.F):
// Context, Retrieval, Security, Compliance, and Coding. Each is a thin
// policy over the collaborators defined in pkg/llmprovider,
// pkg/vectorstore, pkg/sharedcontext, and the scanner/rules/
// fileanalyzer/report external contracts (spec §6).
package agents

import (
	"regexp"

	"github.com/omnicore/agentrt/pkg/logger"
)

// namedPattern is a pre-compiled regex tagged with the category and
// severity it signals, grounded on the masking service's
// CompiledPattern shape: a name, a compiled regex, and metadata carried
// alongside it rather than re-derived from the name at match time.
type namedPattern struct {
	name     string
	category string
	severity string
	re       *regexp.Regexp
}

// compilePatterns compiles every (name, category, severity, source)
// tuple, logging and skipping any pattern whose source fails to
// compile rather than failing the whole set.
func compilePatterns(specs []patternSpec) []namedPattern {
	out := make([]namedPattern, 0, len(specs))
	for _, spec := range specs {
		re, err := regexp.Compile(spec.source)
		if err != nil {
			logger.GetLogger().Error("agents: skipping invalid pattern", "name", spec.name, "error", err)
			continue
		}
		out = append(out, namedPattern{name: spec.name, category: spec.category, severity: spec.severity, re: re})
	}
	return out
}

type patternSpec struct {
	name     string
	category string
	severity string
	source   string
}

// lineOf returns the 1-based line number containing byte offset idx.
func lineOf(content string, idx int) int {
	line := 1
	for i := 0; i < idx && i < len(content); i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}

// evidenceSnippet bounds a matched substring to a readable length.
func evidenceSnippet(s string) string {
	const maxLen = 120
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}
