package orchestrator

import (
	"context"
	"sync"

	"github.com/omnicore/agentrt/pkg/agent"
	omniErrors "github.com/omnicore/agentrt/pkg/errors"
	"github.com/omnicore/agentrt/pkg/logger"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

// ValidationBranch is one side (security or compliance) of a
// validateCode result.
type ValidationBranch struct {
	Valid         bool
	Issues        []any
	IssueCount    int
	CriticalCount int
	HighCount     int
	Err           string
	TimedOut      bool
}

// ValidationResult is the shape spec §4.G's "validateCode" names:
// {approved, security, compliance, projectContext, summary}.
type ValidationResult struct {
	Approved       bool
	Security       ValidationBranch
	Compliance     ValidationBranch
	ProjectContext string
	Summary        string
}

// ValidateCode fans out to the Security and Compliance agents in
// parallel, each bounded by the agent timeout. A non-recoverable
// failure in either validator sets Approved=false and records the
// error in the matching branch; a timeout records the timeout but
// does not mask the other branch's result (spec §4.G "validateCode").
func (o *Orchestrator) ValidateCode(ctx context.Context, code, filePath string) ValidationResult {
	msg := agent.Message{
		Kind:     agent.MessageText,
		Sender:   "orchestrator",
		Content:  code,
		Metadata: map[string]any{"path": filePath},
	}

	var wg sync.WaitGroup
	var security, compliance ValidationBranch

	wg.Add(2)
	go func() {
		defer wg.Done()
		security = o.runValidationBranch(ctx, "security", msg, "findings")
	}()
	go func() {
		defer wg.Done()
		compliance = o.runValidationBranch(ctx, "compliance", msg, "findings")
	}()
	wg.Wait()

	approved := security.Valid && compliance.Valid
	result := ValidationResult{
		Approved:   approved,
		Security:   security,
		Compliance: compliance,
	}

	if o.shared != nil {
		result.ProjectContext = o.shared.WorkspacePath()
	}
	if approved {
		result.Summary = "no blocking findings"
	} else {
		result.Summary = "blocking findings present"
	}
	return result
}

func (o *Orchestrator) runValidationBranch(ctx context.Context, agentID string, msg agent.Message, findingsKey string) ValidationBranch {
	if _, ok := o.get(agentID); !ok {
		return ValidationBranch{Valid: true}
	}

	resp, err := o.SendToAgent(ctx, agentID, msg)
	branch := ValidationBranch{Valid: true}

	if err != nil {
		if kind, ok := omniErrors.KindOf(err); ok && kind == omniErrors.KindAgentTimeout {
			branch.TimedOut = true
			branch.Valid = false
			branch.Err = err.Error()
			return branch
		}
		branch.Valid = false
		branch.Err = err.Error()
		return branch
	}

	issues, _ := resp.Metadata[findingsKey].([]any)
	if issues == nil {
		issues = findingsToAny(resp.Metadata[findingsKey])
	}
	branch.Issues = issues
	branch.IssueCount = len(issues)
	branch.CriticalCount, branch.HighCount = countSeverities(resp.Metadata[findingsKey])
	branch.Valid = branch.CriticalCount == 0

	return branch
}

func findingsToAny(v any) []any {
	switch typed := v.(type) {
	case []sharedcontext.SecurityFinding:
		out := make([]any, len(typed))
		for i, f := range typed {
			out[i] = f
		}
		return out
	case []sharedcontext.ComplianceFinding:
		out := make([]any, len(typed))
		for i, f := range typed {
			out[i] = f
		}
		return out
	default:
		return nil
	}
}

func countSeverities(v any) (critical, high int) {
	count := func(sev string) {
		switch sev {
		case "critical":
			critical++
		case "high":
			high++
		}
	}
	switch typed := v.(type) {
	case []sharedcontext.SecurityFinding:
		for _, f := range typed {
			count(f.Severity)
		}
	case []sharedcontext.ComplianceFinding:
		for _, f := range typed {
			count(f.Severity)
		}
	}
	return
}

// RegisterFile fans out to the Context agent (updates project
// structure) and the Retrieval agent (updates the summaries index);
// failures are logged and do not propagate (spec §4.G "registerFile").
func (o *Orchestrator) RegisterFile(ctx context.Context, path, content string) {
	msg := agent.Message{
		Kind:     agent.MessageToolResult,
		Sender:   "orchestrator",
		Content:  content,
		Metadata: map[string]any{"path": path},
	}

	var wg sync.WaitGroup
	for _, id := range []string{"context", "rag"} {
		id := id
		if _, ok := o.get(id); !ok {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.SendToAgent(ctx, id, msg); err != nil {
				logger.GetLogger().Warn("registerFile fan-out failed", "agent", id, "path", path, "error", err)
			}
		}()
	}
	wg.Wait()
}
