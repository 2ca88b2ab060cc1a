package sharedcontext

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFileIncrementsVersionOnce(t *testing.T) {
	sc := New()

	ps := sc.RegisterFile(FileSummary{Path: "a.go", RelPath: "backend/a.go", Language: "go"}, "package backend", "tester")
	assert.Equal(t, 1, ps.Version)
	assert.Contains(t, ps.Files, "backend/a.go")
	assert.Equal(t, ProjectBackend, ps.ProjectType)
}

func TestProjectTypeDerivesFullstack(t *testing.T) {
	sc := New()
	sc.RegisterFile(FileSummary{RelPath: "backend/api.go"}, "", "tester")
	ps := sc.RegisterFile(FileSummary{RelPath: "frontend/src/App.tsx"}, "", "tester")

	assert.Equal(t, ProjectFullstack, ps.ProjectType)
	assert.Equal(t, 2, ps.Version)
}

func TestChangeHistoryBoundedAt50(t *testing.T) {
	sc := New()
	for i := 0; i < 60; i++ {
		sc.RegisterFile(FileSummary{RelPath: "backend/f.go"}, "", "tester")
	}
	ps := sc.GetProjectStructure()
	require.LessOrEqual(t, len(ps.ChangeHistory), 50)
	assert.Equal(t, 60, ps.Version)
}

func TestOptimisticUpdateRejectsStaleVersion(t *testing.T) {
	sc := New()
	sc.RegisterFile(FileSummary{RelPath: "backend/a.go"}, "", "tester")

	_, ok := sc.UpdateProjectStructureIfVersion(0, "tester", "stale", func(ps *ProjectStructure) {
		ps.APIPatterns = append(ps.APIPatterns, "/v1")
	})
	assert.False(t, ok)

	ps, ok := sc.UpdateProjectStructureIfVersion(1, "tester", "fresh", func(ps *ProjectStructure) {
		ps.APIPatterns = append(ps.APIPatterns, "/v1")
	})
	assert.True(t, ok)
	assert.Equal(t, []string{"/v1"}, ps.APIPatterns)
	assert.Equal(t, 2, ps.Version)
}

func TestChangeCallbackInvokedAndFailureSwallowed(t *testing.T) {
	sc := New()
	var seen []int
	sc.OnChange(func(ps ProjectStructure) error {
		seen = append(seen, ps.Version)
		return assert.AnError
	})

	sc.RegisterFile(FileSummary{RelPath: "backend/a.go"}, "", "tester")
	sc.RegisterFile(FileSummary{RelPath: "backend/b.go"}, "", "tester")

	assert.Equal(t, []int{1, 2}, seen)
}

func TestSecurityAndComplianceFindings(t *testing.T) {
	sc := New()
	sc.AddSecurityFinding(SecurityFinding{Severity: "critical", Category: "secrets"})
	sc.AddComplianceFinding(ComplianceFinding{Regulation: "GDPR", RuleID: "GDPR-LOGGING"})

	assert.Len(t, sc.GetSecurityFindings(), 1)
	assert.Len(t, sc.GetComplianceFindings(), 1)

	sc.ClearSecurityFindings()
	assert.Empty(t, sc.GetSecurityFindings())
}

func TestPersistenceRoundTrips(t *testing.T) {
	dir := t.TempDir()
	sc := New()
	sc.SetWorkspacePath(dir, true, false)
	sc.RegisterFile(FileSummary{RelPath: "backend/a.go", Language: "go"}, "", "tester")

	persistedPath := filepath.Join(dir, ".omni", "context", "project-structure.json")
	require.FileExists(t, persistedPath)

	sc2 := New()
	sc2.SetWorkspacePath(dir, true, true)
	ps := sc2.GetProjectStructure()
	assert.Contains(t, ps.Files, "backend/a.go")
	assert.Equal(t, 1, ps.Version)
}

func TestLoadTreatsMalformedFileAsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".omni", "context"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".omni", "context", "project-structure.json"), []byte("{not json"), 0o644))

	sc := New()
	sc.SetWorkspacePath(dir, true, true)
	ps := sc.GetProjectStructure()
	assert.Equal(t, 0, ps.Version)
	assert.Empty(t, ps.Files)
}
