package agents

import (
	"context"
	"time"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

// Scanner is the external static-analysis scanner collaborator (spec
// §6): given a path and a rule list, it returns machine-readable
// findings with line ranges and severities.
type Scanner interface {
	Scan(ctx context.Context, path string, rules []string) ([]ScanFinding, error)
}

// ScanFinding is one result from the external scanner, before severity
// normalization (spec §4.F Security agent: "scanner-error -> high,
// warning -> medium, info -> low").
type ScanFinding struct {
	Level     string // "error", "warning", "info"
	Category  string
	Message   string
	LineStart int
	LineEnd   int
}

// securityPatterns are spec §4.F's fixed set of high-severity, fast
// regex checks: hardcoded secrets, eval/exec, shell-true subprocess,
// SQL string formatting, and innerHTML/dangerouslySetInnerHTML.
var securityPatterns = compilePatterns([]patternSpec{
	{
		name:     "hardcoded-secret",
		category: "secrets",
		severity: "critical",
		source:   `(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*["'][A-Za-z0-9_\-/+=]{3,}["']`,
	},
	{
		name:     "eval-exec",
		category: "code-injection",
		severity: "critical",
		source:   `\b(eval|exec)\s*\(`,
	},
	{
		name:     "shell-true-subprocess",
		category: "command-injection",
		severity: "high",
		source:   `shell\s*=\s*True`,
	},
	{
		name:     "sql-string-format",
		category: "sql-injection",
		severity: "high",
		source:   `(?i)(SELECT|INSERT|UPDATE|DELETE)[^"'\n]{0,80}["'][^"'\n]*%s`,
	},
	{
		name:     "unsafe-dom-write",
		category: "xss",
		severity: "high",
		source:   `\b(innerHTML\s*=|dangerouslySetInnerHTML)\b`,
	},
})

// SecurityAgentConfig tunes whether the agent delegates to the external
// scanner in addition to its fast pattern checks.
type SecurityAgentConfig struct {
	ScannerEnabled bool
	Rules          []string
}

// SecurityAgent runs fast regex checks and, optionally, the external
// scanner (spec §4.F Security agent).
type SecurityAgent struct {
	cfg     SecurityAgentConfig
	scanner Scanner
	status  agent.Status

	contextAgent   agent.Agent
	retrievalAgent agent.Agent
}

func NewSecurityAgent(cfg SecurityAgentConfig, scanner Scanner) *SecurityAgent {
	return &SecurityAgent{cfg: cfg, scanner: scanner, status: agent.StatusIdle}
}

func (a *SecurityAgent) Metadata() agent.Metadata {
	return agent.Metadata{
		ID:           "security",
		Name:         "Security",
		Description:  "Fast pattern and scanner-backed security validation",
		Capabilities: []string{"validate-code", "analyze"},
		Dependencies: []string{"context", "rag"},
		Provides:     []string{"security-findings"},
		Tags:         []string{"security"},
	}
}

func (a *SecurityAgent) Status() agent.Status { return a.status }

func (a *SecurityAgent) SetContextAgent(ag agent.Agent)   { a.contextAgent = ag }
func (a *SecurityAgent) SetRetrievalAgent(ag agent.Agent) { a.retrievalAgent = ag }

func (a *SecurityAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	a.status = agent.StatusExecuting
	defer func() { a.status = agent.StatusIdle }()

	path, _ := msg.Metadata["path"].(string)
	findings, err := a.ValidateCode(ctx, msg.Content, path)
	if err != nil {
		a.status = agent.StatusError
		return agent.Message{Kind: agent.MessageError, Sender: "security", Content: err.Error()}, err
	}
	return agent.Message{
		Kind:     agent.MessageToolResult,
		Sender:   "security",
		Content:  "security validation complete",
		Metadata: map[string]any{"findings": findings},
	}, nil
}

// ValidateCode runs the fixed pattern set against content and, if
// enabled, the external scanner, normalizing both into
// sharedcontext.SecurityFinding values (spec §4.F, §8 scenario 3).
func (a *SecurityAgent) ValidateCode(ctx context.Context, content, path string) ([]sharedcontext.SecurityFinding, error) {
	var findings []sharedcontext.SecurityFinding

	for _, p := range securityPatterns {
		loc := p.re.FindStringIndex(content)
		if loc == nil {
			continue
		}
		findings = append(findings, sharedcontext.SecurityFinding{
			Severity:  p.severity,
			Category:  p.category,
			Message:   "matched pattern " + p.name,
			Path:      path,
			LineStart: lineOf(content, loc[0]),
			LineEnd:   lineOf(content, loc[1]),
			Evidence:  evidenceSnippet(content[loc[0]:loc[1]]),
			Found:     time.Now(),
		})
	}

	if a.cfg.ScannerEnabled && a.scanner != nil {
		scanFindings, err := a.scanner.Scan(ctx, path, a.cfg.Rules)
		if err != nil {
			return findings, err
		}
		for _, f := range scanFindings {
			findings = append(findings, sharedcontext.SecurityFinding{
				Severity:  normalizeScannerSeverity(f.Level),
				Category:  f.Category,
				Message:   f.Message,
				Path:      path,
				LineStart: f.LineStart,
				LineEnd:   f.LineEnd,
				Found:     time.Now(),
			})
		}
	}

	return findings, nil
}

// Analyze runs ValidateCode against every entry of files (path to
// content) and returns the findings keyed by path. It does not walk a
// directory and reads nothing from the filesystem; the caller supplies
// every file's content.
func (a *SecurityAgent) Analyze(ctx context.Context, files map[string]string) (map[string][]sharedcontext.SecurityFinding, error) {
	out := make(map[string][]sharedcontext.SecurityFinding, len(files))
	for path, content := range files {
		findings, err := a.ValidateCode(ctx, content, path)
		if err != nil {
			return out, err
		}
		if len(findings) > 0 {
			out[path] = findings
		}
	}
	return out, nil
}

func normalizeScannerSeverity(level string) string {
	switch level {
	case "error":
		return "high"
	case "warning":
		return "medium"
	case "info":
		return "low"
	default:
		return "low"
	}
}

var (
	_ agent.Agent               = (*SecurityAgent)(nil)
	_ agent.AcceptsContextAgent = (*SecurityAgent)(nil)
	_ agent.AcceptsRetrievalAgent = (*SecurityAgent)(nil)
)
