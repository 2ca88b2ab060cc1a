package agents

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

// FileAnalyzer is the external collaborator that turns (path, content)
// into a structured analysis used to populate a FileSummary (spec §6
// File analyzer).
type FileAnalyzer interface {
	Analyze(ctx context.Context, path, content string) (FileAnalysis, error)
}

// FileAnalysis is the File analyzer's output shape.
type FileAnalysis struct {
	Language         string
	LOC              int
	Classes          []string
	Functions        []string
	InternalImports  []string
	ExternalImports  []string
	Purpose          string
	Responsibilities []string
}

// extractedFacts is what the Context agent pulls out of a single
// message (spec §4.F Context agent, point 1).
type extractedFacts struct {
	Filenames           []string
	ErrorMentions       []string
	SecurityKeywords    []string
	ComplianceKeywords  []string
	TaskIntent          string
}

var (
	filenamePattern = regexp.MustCompile(`\b[\w\-./]+\.(go|py|js|ts|tsx|jsx|java|rb|php|rs)\b`)
	errorPattern    = regexp.MustCompile(`(?i)\b(error|exception|traceback|panic|failed)\b[^.\n]{0,80}`)

	securityKeywordPattern   = regexp.MustCompile(`(?i)\b(auth|token|password|secret|vulnerab\w*|inject\w*|xss|csrf)\b`)
	complianceKeywordPattern = regexp.MustCompile(`(?i)\b(gdpr|hipaa|pci|regulation|privacy|consent)\b`)

	// taskIntentPatterns is the "small closed set" spec §4.F calls for,
	// matched in order; the first hit wins.
	taskIntentPatterns = []struct {
		intent  string
		pattern *regexp.Regexp
	}{
		{"fix-bug", regexp.MustCompile(`(?i)\b(fix|bug|broken|error)\b`)},
		{"add-feature", regexp.MustCompile(`(?i)\b(add|implement|create|build)\b`)},
		{"refactor", regexp.MustCompile(`(?i)\b(refactor|clean\s?up|simplify)\b`)},
		{"review", regexp.MustCompile(`(?i)\b(review|check|audit|validate)\b`)},
		{"explain", regexp.MustCompile(`(?i)\b(explain|what does|how does|why)\b`)},
	}
)

func extractFacts(content string) extractedFacts {
	var facts extractedFacts
	facts.Filenames = dedupe(filenamePattern.FindAllString(content, -1))
	facts.ErrorMentions = dedupe(errorPattern.FindAllString(content, -1))
	facts.SecurityKeywords = dedupe(securityKeywordPattern.FindAllString(content, -1))
	facts.ComplianceKeywords = dedupe(complianceKeywordPattern.FindAllString(content, -1))
	for _, tip := range taskIntentPatterns {
		if tip.pattern.MatchString(content) {
			facts.TaskIntent = tip.intent
			break
		}
	}
	return facts
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(item)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

// ContextAgentConfig tunes when conversation history is summarized.
type ContextAgentConfig struct {
	// SummarizeAfter is the message-history length that triggers
	// summarization (spec §4.F point 3).
	SummarizeAfter int
}

// ContextAgent extracts facts, tracks the current task, and summarizes
// history (spec §4.F Context agent).
type ContextAgent struct {
	cfg      ContextAgentConfig
	analyzer FileAnalyzer
	llm      llmprovider.Provider
	status   agent.Status

	currentTask string
	history     []agent.Message
	summary     string
	findings    map[string][]string
}

// SetLLM wires an optional summarizer; history truncation still works
// without one (spec §4.F point 3 does not require an LLM, only a
// configured length threshold).
func (a *ContextAgent) SetLLM(p llmprovider.Provider) { a.llm = p }

func NewContextAgent(cfg ContextAgentConfig, analyzer FileAnalyzer) *ContextAgent {
	if cfg.SummarizeAfter <= 0 {
		cfg.SummarizeAfter = 50
	}
	return &ContextAgent{
		cfg:      cfg,
		analyzer: analyzer,
		status:   agent.StatusIdle,
		findings: make(map[string][]string),
	}
}

func (a *ContextAgent) Metadata() agent.Metadata {
	return agent.Metadata{
		ID:           "context",
		Name:         "Context",
		Description:  "Extracts facts, tracks task state, and indexes generated files",
		Capabilities: []string{"extract-facts", "register-file"},
		Provides:     []string{"project-context"},
		Tags:         []string{"context"},
	}
}

func (a *ContextAgent) Status() agent.Status { return a.status }

func (a *ContextAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	a.status = agent.StatusExecuting
	defer func() { a.status = agent.StatusIdle }()

	facts := extractFacts(msg.Content)
	if msg.Kind == agent.MessageText && msg.Sender == "user" && facts.TaskIntent != "" {
		a.currentTask = facts.TaskIntent
	}
	if msg.Kind == agent.MessageToolResult {
		a.recordFindings(msg)
	}

	a.history = append(a.history, msg)
	if len(a.history) > a.cfg.SummarizeAfter {
		if a.llm != nil {
			if summary, err := a.summarizeHistory(ctx); err == nil {
				a.summary = summary
			}
		}
		a.history = a.history[len(a.history)-a.cfg.SummarizeAfter:]
	}

	return agent.Message{
		Kind:    agent.MessageToolResult,
		Sender:  "context",
		Content: "facts extracted",
		Metadata: map[string]any{
			"facts":       facts,
			"currentTask": a.currentTask,
		},
	}, nil
}

func (a *ContextAgent) recordFindings(msg agent.Message) {
	if findings, ok := msg.Metadata["findings"]; ok {
		a.findings[msg.Sender] = append(a.findings[msg.Sender], summarizeFindings(findings)...)
	}
}

func summarizeFindings(findings any) []string {
	switch v := findings.(type) {
	case []string:
		return v
	default:
		return nil
	}
}

func (a *ContextAgent) summarizeHistory(ctx context.Context) (string, error) {
	var transcript strings.Builder
	for _, m := range a.history {
		transcript.WriteString(string(m.Sender))
		transcript.WriteString(": ")
		transcript.WriteString(m.Content)
		transcript.WriteString("\n")
	}
	result, err := a.llm.Complete(ctx, []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: "Summarize this conversation in two sentences."},
		{Role: llmprovider.RoleUser, Content: transcript.String()},
	}, llmprovider.CompletionConfig{})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

// CurrentTask returns the task detected from the most recent user
// message, if any.
func (a *ContextAgent) CurrentTask() string { return a.currentTask }

// Summary returns the most recent history summary, if one has been
// produced yet.
func (a *ContextAgent) Summary() string { return a.summary }

// RegisterGeneratedFile calls the external file analyzer and stores the
// resulting summary into shared, incrementing the project version
// (spec §4.F "registerGeneratedFile"). Write-only toward the
// persistence file: the agent never re-reads what it just wrote.
func (a *ContextAgent) RegisterGeneratedFile(ctx context.Context, shared *sharedcontext.SharedContext, relPath, content, modifier string) (sharedcontext.ProjectStructure, error) {
	analysis, err := a.analyzer.Analyze(ctx, relPath, content)
	if err != nil {
		return sharedcontext.ProjectStructure{}, err
	}

	summary := sharedcontext.FileSummary{
		Path:             relPath,
		RelPath:          relPath,
		Language:         analysis.Language,
		LOC:              analysis.LOC,
		Classes:          analysis.Classes,
		Functions:        analysis.Functions,
		Imports:          sharedcontext.Imports{Internal: analysis.InternalImports, External: analysis.ExternalImports},
		Purpose:          analysis.Purpose,
		Responsibilities: analysis.Responsibilities,
		LastAnalyzed:     time.Now(),
	}
	return shared.RegisterFile(summary, content, modifier), nil
}

var (
	_ agent.Agent      = (*ContextAgent)(nil)
	_ agent.AcceptsLLM = (*ContextAgent)(nil)
)
