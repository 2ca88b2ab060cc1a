// Package sharedcontext implements the versioned, per-field-locked
// project-structure store the agents communicate through (spec §4.D):
// a shared project model, security/compliance findings, and optional
// on-disk persistence.
package sharedcontext

import "time"

// ProjectType classifies a workspace from its registered file set.
type ProjectType string

const (
	ProjectFullstack ProjectType = "fullstack"
	ProjectBackend   ProjectType = "backend"
	ProjectFrontend  ProjectType = "frontend"
	ProjectLibrary   ProjectType = "library"
	ProjectCLI       ProjectType = "cli"
	ProjectUnknown   ProjectType = "unknown"
)

// Imports splits a file's dependencies into internal (same-workspace)
// and external references.
type Imports struct {
	Internal []string `json:"internal"`
	External []string `json:"external"`
}

// FileSummary is the structured analysis result for one registered
// file. A summary is always replaced atomically, never partially
// populated (spec §3 invariant 4).
type FileSummary struct {
	Path             string    `json:"path"`
	RelPath          string    `json:"relPath"`
	Language         string    `json:"language"`
	LOC              int       `json:"loc"`
	Classes          []string  `json:"classes"`
	Functions        []string  `json:"functions"`
	Imports          Imports   `json:"imports"`
	Purpose          string    `json:"purpose"`
	Responsibilities []string  `json:"responsibilities"`
	SecurityFlags    []string  `json:"securityFlags"`
	ComplianceFlags  []string  `json:"complianceFlags"`
	LastAnalyzed     time.Time `json:"lastAnalyzed"`
}

// StateChange is one entry in ProjectStructure's bounded change
// history, grounded on the teacher's SharedState.StateChange shape.
type StateChange struct {
	Version     int       `json:"version"`
	Modifier    string    `json:"modifier"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// maxChangeHistory bounds ProjectStructure.ChangeHistory (spec §3
// invariant: |changeHistory| <= 50, most recent retained).
const maxChangeHistory = 50

// ProjectStructure is the versioned project model shared across agents.
type ProjectStructure struct {
	ProjectType       ProjectType            `json:"projectType"`
	BackendFramework  string                 `json:"backendFramework,omitempty"`
	FrontendFramework string                 `json:"frontendFramework,omitempty"`
	Database          string                 `json:"database,omitempty"`
	Files             map[string]FileSummary `json:"files"`
	APIPatterns       []string               `json:"apiPatterns"`
	Conventions       map[string]string      `json:"conventions"`
	CompletedFeatures []string               `json:"completedFeatures"`
	Version           int                    `json:"version"`
	LastUpdated       time.Time              `json:"lastUpdated"`
	LastModifier      string                 `json:"lastModifier"`
	ChangeHistory     []StateChange          `json:"changeHistory"`
}

func newProjectStructure() ProjectStructure {
	return ProjectStructure{
		ProjectType: ProjectUnknown,
		Files:       make(map[string]FileSummary),
		Conventions: make(map[string]string),
	}
}

// clone returns a deep-enough copy safe to hand to a reader without
// aliasing the store's internal maps/slices (spec §9 arena-like
// ownership: readers get snapshots by value).
func (ps ProjectStructure) clone() ProjectStructure {
	out := ps
	out.Files = make(map[string]FileSummary, len(ps.Files))
	for k, v := range ps.Files {
		out.Files[k] = v
	}
	out.APIPatterns = append([]string(nil), ps.APIPatterns...)
	out.CompletedFeatures = append([]string(nil), ps.CompletedFeatures...)
	out.ChangeHistory = append([]StateChange(nil), ps.ChangeHistory...)
	out.Conventions = make(map[string]string, len(ps.Conventions))
	for k, v := range ps.Conventions {
		out.Conventions[k] = v
	}
	return out
}

func (ps *ProjectStructure) appendHistory(change StateChange) {
	ps.ChangeHistory = append(ps.ChangeHistory, change)
	if len(ps.ChangeHistory) > maxChangeHistory {
		ps.ChangeHistory = ps.ChangeHistory[len(ps.ChangeHistory)-maxChangeHistory:]
	}
}

// SecurityFinding is one result from the Security agent's validation
// pipeline.
type SecurityFinding struct {
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
	LineStart int       `json:"lineStart"`
	LineEnd   int       `json:"lineEnd"`
	Evidence  string    `json:"evidence,omitempty"`
	Found     time.Time `json:"found"`
}

// ComplianceFinding is one result from the Compliance agent's rule
// evaluation.
type ComplianceFinding struct {
	Regulation string    `json:"regulation"`
	RuleID     string    `json:"ruleId"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Path       string    `json:"path"`
	LineStart  int       `json:"lineStart"`
	LineEnd    int       `json:"lineEnd"`
	Evidence   string    `json:"evidence,omitempty"`
	Found      time.Time `json:"found"`
}
