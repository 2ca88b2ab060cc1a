package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

type fakeFindingSource struct {
	security   []sharedcontext.SecurityFinding
	compliance []sharedcontext.ComplianceFinding
}

func (f fakeFindingSource) GetSecurityFindings() []sharedcontext.SecurityFinding { return f.security }
func (f fakeFindingSource) GetComplianceFindings() []sharedcontext.ComplianceFinding {
	return f.compliance
}

func samplePS() sharedcontext.ProjectStructure {
	return sharedcontext.ProjectStructure{
		ProjectType: sharedcontext.ProjectBackend,
		Files: map[string]sharedcontext.FileSummary{
			"main.go": {RelPath: "main.go", Language: "go", LOC: 42, Purpose: "entrypoint"},
		},
		Conventions: map[string]string{"style": "gofmt"},
		LastUpdated: time.Now(),
		Version:     3,
	}
}

func TestRenderWritesEveryListedFile(t *testing.T) {
	dir := t.TempDir()
	w := New(fakeFindingSource{
		security:   []sharedcontext.SecurityFinding{{Severity: "high", Message: "hardcoded secret", Path: "main.go"}},
		compliance: []sharedcontext.ComplianceFinding{{Regulation: "GDPR", RuleID: "GDPR-LOGGING", Severity: "critical", Message: "pii in logs", Path: "main.go"}},
	})

	require.NoError(t, w.Render(context.Background(), dir, samplePS()))

	expected := []string{
		".omni/context/project-structure.json",
		".omni/context/project-overview.md",
		".omni/context/file-summaries.md",
		".omni/context/component-map.md",
		".omni/context/interfaces-and-apis.md",
		".omni/context/data-model.md",
		".omni/context/domain-patterns.md",
		".omni/context/hotspots.md",
		".omni/context/quick-reference.md",
		".omni/insights/security.md",
		".omni/insights/compliance.md",
		".github/copilot-instructions.md",
	}
	for _, rel := range expected {
		full := filepath.Join(dir, rel)
		info, err := os.Stat(full)
		require.NoError(t, err, "expected %s to exist", rel)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestRenderProjectStructureJSONRoundTrips(t *testing.T) {
	dir := t.TempDir()
	w := New(fakeFindingSource{})
	ps := samplePS()
	require.NoError(t, w.Render(context.Background(), dir, ps))

	data, err := os.ReadFile(filepath.Join(dir, ".omni/context/project-structure.json"))
	require.NoError(t, err)

	var decoded sharedcontext.ProjectStructure
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ps.ProjectType, decoded.ProjectType)
	assert.Equal(t, ps.Version, decoded.Version)
}

func TestRenderSecurityInsightsListsFindings(t *testing.T) {
	dir := t.TempDir()
	w := New(fakeFindingSource{security: []sharedcontext.SecurityFinding{{Severity: "high", Message: "eval used", Path: "app.py", LineStart: 5, LineEnd: 5}}})
	require.NoError(t, w.Render(context.Background(), dir, samplePS()))

	data, err := os.ReadFile(filepath.Join(dir, ".omni/insights/security.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "eval used")
	assert.Contains(t, string(data), "app.py")
}

func TestRenderComplianceInsightsReportsNoFindings(t *testing.T) {
	dir := t.TempDir()
	w := New(fakeFindingSource{})
	require.NoError(t, w.Render(context.Background(), dir, samplePS()))

	data, err := os.ReadFile(filepath.Join(dir, ".omni/insights/compliance.md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "No findings.")
}
