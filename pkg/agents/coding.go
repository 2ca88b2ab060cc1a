package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/omnicore/agentrt/pkg/agent"
)

// restrictedFileGlobs names targets the Coding agent refuses to patch
// regardless of intent (spec §4.F "restricted-file glob set").
var restrictedFileGlobs = []string{
	".git/**",
	".omni/**",
	"**/go.sum",
	"**/*.pem",
	"**/*.key",
	"**/secrets/**",
	"**/.env",
	"**/.env.*",
}

// restrictedDiffPatterns reject a generated diff outright when its
// content matches one of these, independent of the target path (spec
// §4.F "restricted-pattern set").
var restrictedDiffPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9_\-/+=]{3,}["']`),
	regexp.MustCompile(`\brm\s+-rf\s+/`),
}

// CodeRequest is the parsed form of either a `patch <path>: <intent>`
// command line or an equivalent JSON object.
type CodeRequest struct {
	Path    string `json:"path"`
	Intent  string `json:"intent"`
	Content string `json:"content,omitempty"`
}

var patchCommandPattern = regexp.MustCompile(`^patch\s+(\S+)\s*:\s*(.+)$`)

// parseCodeRequest accepts either the `patch <path>: <intent>` command
// form or a JSON object carrying the same fields (spec §4.F "Parses
// `patch <path>: <intent>` or a JSON object").
func parseCodeRequest(raw string) (CodeRequest, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var req CodeRequest
		if err := json.Unmarshal([]byte(trimmed), &req); err != nil {
			return CodeRequest{}, fmt.Errorf("coding: invalid request JSON: %w", err)
		}
		return req, nil
	}
	m := patchCommandPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return CodeRequest{}, fmt.Errorf("coding: request must be `patch <path>: <intent>` or a JSON object")
	}
	return CodeRequest{Path: m[1], Intent: m[2]}, nil
}

// Generator produces the proposed new file content for a request; the
// Coding agent itself only diffs, validates, and reports the result
// (spec §4.F "produces a unified-diff patch").
type Generator interface {
	Generate(ctx context.Context, req CodeRequest, original string) (newContent string, err error)
}

// CodingAgentConfig tunes the restriction and size-limit checks.
type CodingAgentConfig struct {
	MaxDiffLines  int
	SyntaxCheckPy bool
}

// CodingAgent turns a patch request into a reviewed unified diff,
// never touching the filesystem itself (spec §4.F Coding agent).
type CodingAgent struct {
	cfg       CodingAgentConfig
	generator Generator
	status    agent.Status

	contextAgent   agent.Agent
	retrievalAgent agent.Agent
}

func NewCodingAgent(cfg CodingAgentConfig, generator Generator) *CodingAgent {
	if cfg.MaxDiffLines <= 0 {
		cfg.MaxDiffLines = 500
	}
	return &CodingAgent{cfg: cfg, generator: generator, status: agent.StatusIdle}
}

func (a *CodingAgent) Metadata() agent.Metadata {
	return agent.Metadata{
		ID:           "coding",
		Name:         "Coding",
		Description:  "Generates reviewed unified diffs without writing to the filesystem",
		Capabilities: []string{"generate-patch"},
		Provides:     []string{"patches"},
		Tags:         []string{"coding"},
	}
}

func (a *CodingAgent) Status() agent.Status { return a.status }

func (a *CodingAgent) SetContextAgent(ag agent.Agent)   { a.contextAgent = ag }
func (a *CodingAgent) SetRetrievalAgent(ag agent.Agent) { a.retrievalAgent = ag }

func (a *CodingAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	a.status = agent.StatusExecuting
	defer func() { a.status = agent.StatusIdle }()

	original, _ := msg.Metadata["original"].(string)
	patch, newContent, err := a.GeneratePatch(ctx, msg.Content, original)
	if err != nil {
		a.status = agent.StatusError
		return agent.Message{Kind: agent.MessageError, Sender: "coding", Content: err.Error()}, err
	}

	a.publish(ctx, patch.Path, newContent)

	return agent.Message{
		Kind:    agent.MessageToolResult,
		Sender:  "coding",
		Content: "patch generated",
		Metadata: map[string]any{
			"path":  patch.Path,
			"diff":  patch.Diff,
			"lines": patch.Lines,
		},
	}, nil
}

// Patch is a reviewed, accepted unified diff.
type Patch struct {
	Path  string
	Diff  string
	Lines int
}

// GeneratePatch parses the request, asks the generator for the
// proposed content, diffs it against the original, and rejects the
// result against every guard spec §4.F names before returning it.
func (a *CodingAgent) GeneratePatch(ctx context.Context, raw, original string) (Patch, string, error) {
	req, err := parseCodeRequest(raw)
	if err != nil {
		return Patch{}, "", err
	}

	if isRestrictedPath(req.Path) {
		return Patch{}, "", fmt.Errorf("coding: refusing to patch restricted path %q", req.Path)
	}
	if a.generator == nil {
		return Patch{}, "", fmt.Errorf("coding: no code generator configured")
	}

	newContent, err := a.generator.Generate(ctx, req, original)
	if err != nil {
		return Patch{}, "", err
	}

	diffText, err := unifiedDiff(req.Path, original, newContent)
	if err != nil {
		return Patch{}, "", err
	}
	if diffText == "" {
		return Patch{}, "", fmt.Errorf("coding: generated content is identical to the original")
	}

	for _, re := range restrictedDiffPatterns {
		if re.MatchString(diffText) {
			return Patch{}, "", fmt.Errorf("coding: refusing to emit a diff matching a restricted pattern")
		}
	}

	lines := strings.Count(diffText, "\n")
	if lines > a.cfg.MaxDiffLines {
		return Patch{}, "", fmt.Errorf("coding: diff has %d lines, exceeds maxDiffLines=%d", lines, a.cfg.MaxDiffLines)
	}

	if a.cfg.SyntaxCheckPy && strings.HasSuffix(req.Path, ".py") {
		if err := lightPythonSyntaxCheck(newContent); err != nil {
			return Patch{}, "", fmt.Errorf("coding: generated Python fails syntax check: %w", err)
		}
	}
	if strings.HasSuffix(req.Path, ".go") {
		if err := lightGoSyntaxCheck(newContent); err != nil {
			return Patch{}, "", fmt.Errorf("coding: generated Go fails syntax check: %w", err)
		}
	}

	return Patch{Path: req.Path, Diff: diffText, Lines: lines}, newContent, nil
}

func isRestrictedPath(path string) bool {
	clean := filepath.ToSlash(path)
	for _, glob := range restrictedFileGlobs {
		if ok, _ := filepath.Match(glob, clean); ok {
			return true
		}
		if matchesDoubleStarGlob(glob, clean) {
			return true
		}
	}
	return false
}

// matchesDoubleStarGlob handles the "**/" prefix, "/**" suffix, and
// "**/dir/**" wrapped forms used in restrictedFileGlobs, since
// filepath.Match has no "**" semantics.
func matchesDoubleStarGlob(glob, path string) bool {
	switch {
	case strings.HasPrefix(glob, "**/") && strings.HasSuffix(glob, "/**"):
		dir := strings.TrimSuffix(strings.TrimPrefix(glob, "**/"), "/**")
		return path == dir || strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/")
	case strings.HasSuffix(glob, "/**"):
		prefix := strings.TrimSuffix(glob, "/**")
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	case strings.HasPrefix(glob, "**/"):
		suffix := strings.TrimPrefix(glob, "**/")
		if ok, _ := filepath.Match(suffix, filepath.Base(path)); ok {
			return true
		}
		return strings.HasSuffix(path, "/"+suffix)
	default:
		return false
	}
}

func unifiedDiff(path, original, updated string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(updated),
		FromFile: path,
		ToFile:   path,
		Context:  3,
	}
	return difflib.GetUnifiedDiffString(diff)
}

func lightGoSyntaxCheck(content string) error {
	_, err := parser.ParseFile(token.NewFileSet(), "", content, parser.AllErrors)
	return err
}

// lightPythonSyntaxCheck is a shallow balance check, not a real parser:
// it rejects mismatched brackets/quotes but cannot catch most Python
// syntax errors (spec §4.F "Optional light syntax check for .py files").
func lightPythonSyntaxCheck(content string) error {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	inString := false
	var quote rune
	for _, r := range content {
		if inString {
			if r == quote {
				inString = false
			}
			continue
		}
		switch r {
		case '\'', '"':
			inString, quote = true, r
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return fmt.Errorf("unbalanced %q", r)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

// publish hands the new content to the Context and Retrieval agents
// for indexing, swallowing errors the same way the orchestrator's
// registerFile fan-out does (spec §4.F "Publishes ... back to the
// Context and Retrieval agents for indexing").
func (a *CodingAgent) publish(ctx context.Context, path, content string) {
	notify := agent.Message{
		Kind:     agent.MessageToolResult,
		Sender:   "coding",
		Content:  content,
		Metadata: map[string]any{"path": path},
	}
	if a.contextAgent != nil {
		_, _ = a.contextAgent.Process(ctx, notify, nil)
	}
	if a.retrievalAgent != nil {
		_, _ = a.retrievalAgent.Process(ctx, notify, nil)
	}
}

var (
	_ agent.Agent               = (*CodingAgent)(nil)
	_ agent.AcceptsContextAgent = (*CodingAgent)(nil)
	_ agent.AcceptsRetrievalAgent = (*CodingAgent)(nil)
)
