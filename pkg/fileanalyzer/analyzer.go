// Package fileanalyzer implements the file analyzer collaborator (spec
// §6 "File analyzer"): turning (path, content) into the structured
// agents.FileAnalysis used to populate a FileSummary. Structural facts
// (language, LOC, declared names, imports) come from per-language
// regex extraction in the style of pkg/agents' pattern tables; purpose
// and responsibilities are asked of an optional llmprovider.Provider,
// falling back to a heuristic summary when none is configured, the way
// C360Studio-semspec's source/analyzer.go treats its LLM client as
// optional enrichment over structural extraction.
package fileanalyzer

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/omnicore/agentrt/pkg/agents"
	"github.com/omnicore/agentrt/pkg/llmprovider"
)

// languageByExt maps file extensions to the language names used
// throughout FileSummary/ProjectStructure.
var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
	".java": "java",
	".rb":   "ruby",
	".rs":   "rust",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".php":  "php",
}

type langPatterns struct {
	class    *regexp.Regexp
	function *regexp.Regexp
	imports  *regexp.Regexp
}

// declarationPatterns holds the per-language extraction regexes, a
// compiled table like pkg/agents.patternSpec's; each regex captures the
// declared or imported name in a numbered group.
var declarationPatterns = map[string]langPatterns{
	"go": {
		class:    regexp.MustCompile(`(?m)^type\s+(\w+)\s+struct\b`),
		function: regexp.MustCompile(`(?m)^func\s+(?:\([^)]*\)\s*)?(\w+)\s*\(`),
		imports:  regexp.MustCompile(`(?m)^\s*(?:_ |[\w.]+ )?"([^"]+)"`),
	},
	"python": {
		class:    regexp.MustCompile(`(?m)^class\s+(\w+)`),
		function: regexp.MustCompile(`(?m)^def\s+(\w+)\s*\(`),
		imports:  regexp.MustCompile(`(?m)^(?:from\s+(\S+)\s+import|import\s+(\S+))`),
	},
	"javascript": {
		class:    regexp.MustCompile(`(?m)^(?:export\s+)?class\s+(\w+)`),
		function: regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`),
		imports:  regexp.MustCompile(`(?m)^import\s+.*?from\s+["']([^"']+)["']`),
	},
	"typescript": {
		class:    regexp.MustCompile(`(?m)^(?:export\s+)?class\s+(\w+)`),
		function: regexp.MustCompile(`(?m)^(?:export\s+)?(?:async\s+)?function\s+(\w+)\s*\(`),
		imports:  regexp.MustCompile(`(?m)^import\s+.*?from\s+["']([^"']+)["']`),
	},
	"java": {
		class:    regexp.MustCompile(`(?m)\b(?:public|private)?\s*class\s+(\w+)`),
		function: regexp.MustCompile(`(?m)\b(?:public|private|protected)\s+[\w<>\[\]]+\s+(\w+)\s*\(`),
		imports:  regexp.MustCompile(`(?m)^import\s+([\w.]+);`),
	},
}

// Analyzer implements agents.FileAnalyzer.
type Analyzer struct {
	llm llmprovider.Provider
}

// New returns an Analyzer. llm is optional; a nil provider falls back
// to purely structural heuristics for Purpose/Responsibilities.
func New(llm llmprovider.Provider) *Analyzer {
	return &Analyzer{llm: llm}
}

// Analyze implements agents.FileAnalyzer.
func (a *Analyzer) Analyze(ctx context.Context, path, content string) (agents.FileAnalysis, error) {
	lang := detectLanguage(path)
	loc := countNonBlankLines(content)

	var classes, functions, internalImports, externalImports []string
	if pat, ok := declarationPatterns[lang]; ok {
		classes = matchAll(pat.class, content, 1)
		functions = matchAll(pat.function, content, 1)
		internalImports, externalImports = splitImports(pat.imports.FindAllStringSubmatch(content, -1))
	}

	purpose, responsibilities := a.describe(ctx, path, lang, classes, functions)

	return agents.FileAnalysis{
		Language:         lang,
		LOC:              loc,
		Classes:          classes,
		Functions:        functions,
		InternalImports:  internalImports,
		ExternalImports:  externalImports,
		Purpose:          purpose,
		Responsibilities: responsibilities,
	}, nil
}

func detectLanguage(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return "unknown"
}

func countNonBlankLines(content string) int {
	n := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}

func matchAll(re *regexp.Regexp, content string, group int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		if group >= len(m) || m[group] == "" || seen[m[group]] {
			continue
		}
		seen[m[group]] = true
		out = append(out, m[group])
	}
	return out
}

// splitImports classifies each matched import as internal or external.
// Since the analyzer has no workspace module path to compare against,
// only a relative import (one starting with ".", such as "./x" or
// "../y") is classified internal; everything else, including a
// module path inside the same repository, is external.
func splitImports(matches [][]string) (internal, external []string) {
	seen := make(map[string]bool)
	for _, m := range matches {
		var raw string
		for _, g := range m[1:] {
			if g != "" {
				raw = g
				break
			}
		}
		if raw == "" || seen[raw] {
			continue
		}
		seen[raw] = true
		if strings.HasPrefix(raw, ".") {
			internal = append(internal, raw)
		} else {
			external = append(external, raw)
		}
	}
	return internal, external
}

func (a *Analyzer) describe(ctx context.Context, path, lang string, classes, functions []string) (string, []string) {
	responsibilities := make([]string, 0, len(classes)+len(functions))
	for _, c := range classes {
		responsibilities = append(responsibilities, fmt.Sprintf("defines %s", c))
	}
	for _, f := range functions {
		responsibilities = append(responsibilities, fmt.Sprintf("implements %s", f))
	}

	purpose := fmt.Sprintf("%s source file at %s", lang, path)
	if a.llm == nil {
		return purpose, responsibilities
	}

	prompt := fmt.Sprintf("In one sentence, state the purpose of this %s file %s given its declared names: %s",
		lang, path, strings.Join(append(append([]string{}, classes...), functions...), ", "))
	result, err := a.llm.Complete(ctx, []llmprovider.Message{
		{Role: llmprovider.RoleUser, Content: prompt},
	}, llmprovider.CompletionConfig{Temperature: 0.2, MaxTokens: 128})
	if err != nil || strings.TrimSpace(result.Content) == "" {
		return purpose, responsibilities
	}
	return strings.TrimSpace(result.Content), responsibilities
}

var _ agents.FileAnalyzer = (*Analyzer)(nil)
