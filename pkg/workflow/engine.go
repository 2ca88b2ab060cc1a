package workflow

import (
	"context"
	"strings"
	"time"

	omniErrors "github.com/omnicore/agentrt/pkg/errors"
	"github.com/omnicore/agentrt/pkg/logger"
	"github.com/omnicore/agentrt/pkg/orchestrator"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

// ProgressEvent is emitted to the caller-supplied callback as each
// stage starts, completes, or is skipped (spec §4.H "emits progress
// events via a caller-supplied callback").
type ProgressEvent struct {
	Stage  string
	Status string // "started", "completed", "skipped", "timeout"
	Detail string
}

// ProgressFunc receives workflow progress events; nil is legal and
// means no progress reporting.
type ProgressFunc func(ProgressEvent)

// Renderer is the external report renderer collaborator (spec §6):
// given the aggregated workflow state, it writes the markdown files
// under <workspace>/.omni/.
type Renderer interface {
	Render(ctx context.Context, workspacePath string, ps sharedcontext.ProjectStructure) error
}

// Config tunes stage sampling and timeouts.
type Config struct {
	MaxFilesPerStage int
	StepTimeout      time.Duration
	DefaultTimeout   time.Duration
}

// Engine runs the analyzeWorkspace/analyzeFile pipelines (spec §4.H).
type Engine struct {
	cfg      Config
	orch     *orchestrator.Orchestrator
	shared   *sharedcontext.SharedContext
	renderer Renderer
}

func New(cfg Config, orch *orchestrator.Orchestrator, shared *sharedcontext.SharedContext, renderer Renderer) *Engine {
	if cfg.MaxFilesPerStage <= 0 {
		cfg.MaxFilesPerStage = 200
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 10 * time.Second
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 60 * time.Second
	}
	return &Engine{cfg: cfg, orch: orch, shared: shared, renderer: renderer}
}

// Result is spec §4.H's "{success, contextSummary, ragIndexedCount,
// securityFindings[], complianceFindings[], totalIssues, elapsedMs,
// errors[]}".
type Result struct {
	Success            bool
	ContextSummary     string
	RAGIndexedCount    map[string]int
	SecurityFindings   []sharedcontext.SecurityFinding
	ComplianceFindings []sharedcontext.ComplianceFinding
	TotalIssues        int
	ElapsedMs          int64
	Errors             []string
}

// AnalyzeWorkspace runs the five-stage pipeline under a time budget
// (spec §4.H "analyzeWorkspace"). If files is nil the workspace is
// scanned honoring .gitignore plus the baseline ignore list.
func (e *Engine) AnalyzeWorkspace(ctx context.Context, workspacePath string, files map[string]string, totalTimeout time.Duration, progress ProgressFunc) Result {
	if totalTimeout <= 0 {
		totalTimeout = e.cfg.DefaultTimeout
	}
	start := time.Now()
	budget := omniErrors.NewBudget(totalTimeout)
	result := Result{RAGIndexedCount: make(map[string]int)}

	emit := func(stage, status, detail string) {
		if status == "completed" {
			if outcomes := budget.Outcomes(); len(outcomes) > 0 && outcomes[len(outcomes)-1].Skipped {
				status = "skipped"
			}
		}
		if progress != nil {
			progress(ProgressEvent{Stage: stage, Status: status, Detail: detail})
		}
	}

	if files == nil {
		scanned, err := scanWorkspace(workspacePath, e.cfg.MaxFilesPerStage)
		if err != nil {
			result.Errors = append(result.Errors, "scan: "+err.Error())
		}
		files = scanned
	} else if len(files) > e.cfg.MaxFilesPerStage {
		sampled := make(map[string]string, e.cfg.MaxFilesPerStage)
		i := 0
		for path, content := range files {
			if i >= e.cfg.MaxFilesPerStage {
				break
			}
			sampled[path] = content
			i++
		}
		files = sampled
		logger.GetLogger().Warn("analyzeWorkspace: sample capped below provided file count", "cap", e.cfg.MaxFilesPerStage)
	}

	emit("context", "started", "")
	err := budget.Step(ctx, "context", e.cfg.StepTimeout, func(ctx context.Context) error {
		for path, content := range files {
			e.orch.RegisterFile(ctx, path, content)
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		emit("context", "timeout", err.Error())
	} else {
		emit("context", "completed", "")
	}
	result.ContextSummary = string(e.shared.GetProjectStructure().ProjectType)

	emit("rag", "started", "")
	err = budget.Step(ctx, "rag", e.cfg.StepTimeout, func(ctx context.Context) error {
		for domain := range files {
			result.RAGIndexedCount[domainOf(domain)]++
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		emit("rag", "timeout", err.Error())
	} else {
		emit("rag", "completed", "")
	}

	emit("security", "started", "")
	err = budget.Step(ctx, "security", e.cfg.StepTimeout, func(ctx context.Context) error {
		for path, content := range files {
			v := e.orch.ValidateCode(ctx, content, path)
			for _, issue := range v.Security.Issues {
				if f, ok := issue.(sharedcontext.SecurityFinding); ok {
					result.SecurityFindings = append(result.SecurityFindings, f)
				}
			}
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		emit("security", "timeout", err.Error())
	} else {
		emit("security", "completed", "")
	}

	emit("compliance", "started", "")
	err = budget.Step(ctx, "compliance", e.cfg.StepTimeout, func(ctx context.Context) error {
		for path, content := range files {
			v := e.orch.ValidateCode(ctx, content, path)
			for _, issue := range v.Compliance.Issues {
				if f, ok := issue.(sharedcontext.ComplianceFinding); ok {
					result.ComplianceFindings = append(result.ComplianceFindings, f)
				}
			}
		}
		return nil
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		emit("compliance", "timeout", err.Error())
	} else {
		emit("compliance", "completed", "")
	}

	emit("report", "started", "")
	err = budget.Step(ctx, "report", e.cfg.StepTimeout, func(ctx context.Context) error {
		if e.renderer == nil {
			return nil
		}
		return e.renderer.Render(ctx, workspacePath, e.shared.GetProjectStructure())
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		emit("report", "timeout", err.Error())
	} else {
		emit("report", "completed", "")
	}

	result.TotalIssues = len(result.SecurityFindings) + len(result.ComplianceFindings)
	result.Success = len(result.Errors) == 0
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

// AnalyzeFile registers path/content with Context and Retrieval, then
// runs single-file validation and asks the renderer to update affected
// outputs (spec §4.H "analyzeFile"). Repeated calls are not
// deduplicated: each one registers the file again, and pkg/sharedcontext
// bumps the version on every registration, even for unchanged content.
func (e *Engine) AnalyzeFile(ctx context.Context, path, content, language string) Result {
	start := time.Now()
	result := Result{RAGIndexedCount: make(map[string]int)}

	e.orch.RegisterFile(ctx, path, content)
	result.ContextSummary = string(e.shared.GetProjectStructure().ProjectType)
	result.RAGIndexedCount[domainOf(path)] = 1

	v := e.orch.ValidateCode(ctx, content, path)
	for _, issue := range v.Security.Issues {
		if f, ok := issue.(sharedcontext.SecurityFinding); ok {
			result.SecurityFindings = append(result.SecurityFindings, f)
		}
	}
	for _, issue := range v.Compliance.Issues {
		if f, ok := issue.(sharedcontext.ComplianceFinding); ok {
			result.ComplianceFindings = append(result.ComplianceFindings, f)
		}
	}

	if e.renderer != nil {
		if err := e.renderer.Render(ctx, e.shared.WorkspacePath(), e.shared.GetProjectStructure()); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	result.TotalIssues = len(result.SecurityFindings) + len(result.ComplianceFindings)
	result.Success = len(result.Errors) == 0
	result.ElapsedMs = time.Since(start).Milliseconds()
	return result
}

func domainOf(path string) string {
	lower := strings.ToLower(path)
	switch {
	case hasAny(lower, "_test.go", "test_", "/tests/", "spec_"):
		return "tests"
	case hasAny(lower, ".md", "readme", "/docs/"):
		return "docs"
	case hasAny(lower, ".yaml", ".yml", ".json", ".toml", "/config/"):
		return "config"
	default:
		return "code"
	}
}

func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
