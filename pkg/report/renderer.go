// Package report implements the report renderer collaborator (spec §6
// "Report renderer"): given the aggregated workflow state, it writes
// the markdown and JSON files under <workspace>/.omni/ and
// <workspace>/.github/copilot-instructions.md. Grounded on the
// teacher's tools/file_writer.go for the MkdirAll-then-WriteFile
// convention, generalized from an agent-invoked write tool into a
// fixed-contract renderer that owns its own output paths.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

// findingSource supplies the security/compliance findings the
// ProjectStructure snapshot handed to Render does not itself carry
// (spec §4.D keeps those in SharedContext's own slices, not in
// ProjectStructure).
type findingSource interface {
	GetSecurityFindings() []sharedcontext.SecurityFinding
	GetComplianceFindings() []sharedcontext.ComplianceFinding
}

// Writer implements workflow.Renderer.
type Writer struct {
	shared findingSource
}

func New(shared findingSource) *Writer {
	return &Writer{shared: shared}
}

const (
	contextDir = ".omni/context"
	insightDir = ".omni/insights"
)

// Render implements workflow.Renderer, writing every file spec §6's
// filesystem layout lists. project-structure.json is authoritative;
// the markdown files are derived views regenerated on every call.
func (w *Writer) Render(ctx context.Context, workspacePath string, ps sharedcontext.ProjectStructure) error {
	if err := os.MkdirAll(filepath.Join(workspacePath, contextDir), 0755); err != nil {
		return fmt.Errorf("report: mkdir context: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(workspacePath, insightDir), 0755); err != nil {
		return fmt.Errorf("report: mkdir insights: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(workspacePath, ".github"), 0755); err != nil {
		return fmt.Errorf("report: mkdir .github: %w", err)
	}

	files := map[string]func() ([]byte, error){
		filepath.Join(contextDir, "project-structure.json"): func() ([]byte, error) { return json.MarshalIndent(ps, "", "  ") },
		filepath.Join(contextDir, "project-overview.md"):    func() ([]byte, error) { return []byte(renderProjectOverview(ps)), nil },
		filepath.Join(contextDir, "file-summaries.md"):      func() ([]byte, error) { return []byte(renderFileSummaries(ps)), nil },
		filepath.Join(contextDir, "component-map.md"):       func() ([]byte, error) { return []byte(renderComponentMap(ps)), nil },
		filepath.Join(contextDir, "interfaces-and-apis.md"): func() ([]byte, error) { return []byte(renderInterfaces(ps)), nil },
		filepath.Join(contextDir, "data-model.md"):          func() ([]byte, error) { return []byte(renderDataModel(ps)), nil },
		filepath.Join(contextDir, "domain-patterns.md"):     func() ([]byte, error) { return []byte(renderDomainPatterns(ps)), nil },
		filepath.Join(contextDir, "hotspots.md"):            func() ([]byte, error) { return []byte(renderHotspots(ps)), nil },
		filepath.Join(contextDir, "quick-reference.md"):     func() ([]byte, error) { return []byte(renderQuickReference(ps)), nil },
		filepath.Join(insightDir, "security.md"):            func() ([]byte, error) { return []byte(w.renderSecurity()), nil },
		filepath.Join(insightDir, "compliance.md"):          func() ([]byte, error) { return []byte(w.renderCompliance()), nil },
		filepath.Join(".github", "copilot-instructions.md"): func() ([]byte, error) { return []byte(renderCopilotInstructions(ps)), nil },
	}

	paths := make([]string, 0, len(files))
	for rel := range files {
		paths = append(paths, rel)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		data, err := files[rel]()
		if err != nil {
			return fmt.Errorf("report: render %s: %w", rel, err)
		}
		full := filepath.Join(workspacePath, rel)
		if err := os.WriteFile(full, data, 0644); err != nil {
			return fmt.Errorf("report: write %s: %w", rel, err)
		}
	}
	return nil
}

func sortedFiles(ps sharedcontext.ProjectStructure) []sharedcontext.FileSummary {
	out := make([]sharedcontext.FileSummary, 0, len(ps.Files))
	for _, f := range ps.Files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}

func renderProjectOverview(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Project overview\n\n")
	fmt.Fprintf(&b, "- Type: %s\n", ps.ProjectType)
	if ps.BackendFramework != "" {
		fmt.Fprintf(&b, "- Backend framework: %s\n", ps.BackendFramework)
	}
	if ps.FrontendFramework != "" {
		fmt.Fprintf(&b, "- Frontend framework: %s\n", ps.FrontendFramework)
	}
	if ps.Database != "" {
		fmt.Fprintf(&b, "- Database: %s\n", ps.Database)
	}
	fmt.Fprintf(&b, "- Files tracked: %d\n", len(ps.Files))
	fmt.Fprintf(&b, "- Version: %d\n", ps.Version)
	return b.String()
}

func renderFileSummaries(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# File summaries\n\n")
	for _, f := range sortedFiles(ps) {
		fmt.Fprintf(&b, "## %s\n\n", f.RelPath)
		fmt.Fprintf(&b, "- Language: %s\n- LOC: %d\n", f.Language, f.LOC)
		if f.Purpose != "" {
			fmt.Fprintf(&b, "- Purpose: %s\n", f.Purpose)
		}
		for _, r := range f.Responsibilities {
			fmt.Fprintf(&b, "  - %s\n", r)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderComponentMap(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Component map\n\n")
	byDir := map[string][]string{}
	for _, f := range sortedFiles(ps) {
		dir := filepath.Dir(f.RelPath)
		byDir[dir] = append(byDir[dir], filepath.Base(f.RelPath))
	}
	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		fmt.Fprintf(&b, "- `%s/`: %s\n", d, strings.Join(byDir[d], ", "))
	}
	return b.String()
}

func renderInterfaces(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Interfaces and APIs\n\n")
	if len(ps.APIPatterns) == 0 {
		b.WriteString("No API patterns detected yet.\n")
		return b.String()
	}
	for _, p := range ps.APIPatterns {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	return b.String()
}

func renderDataModel(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Data model\n\n")
	if ps.Database != "" {
		fmt.Fprintf(&b, "Primary database: %s\n", ps.Database)
	} else {
		b.WriteString("No database detected yet.\n")
	}
	return b.String()
}

func renderDomainPatterns(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Domain patterns and conventions\n\n")
	keys := make([]string, 0, len(ps.Conventions))
	for k := range ps.Conventions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, ps.Conventions[k])
	}
	return b.String()
}

func renderHotspots(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Hotspots\n\n")
	files := sortedFiles(ps)
	sort.Slice(files, func(i, j int) bool { return files[i].LOC > files[j].LOC })
	limit := 10
	if len(files) < limit {
		limit = len(files)
	}
	for _, f := range files[:limit] {
		fmt.Fprintf(&b, "- %s (%d LOC)\n", f.RelPath, f.LOC)
	}
	return b.String()
}

func renderQuickReference(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Quick reference\n\n- Project type: %s\n- Last updated: %s\n- Last modifier: %s\n",
		ps.ProjectType, ps.LastUpdated.Format("2006-01-02T15:04:05Z07:00"), ps.LastModifier)
	return b.String()
}

func (w *Writer) renderSecurity() string {
	var b strings.Builder
	b.WriteString("# Security insights\n\n")
	findings := w.shared.GetSecurityFindings()
	if len(findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s] %s (%s:%d-%d)\n", f.Severity, f.Message, f.Path, f.LineStart, f.LineEnd)
	}
	return b.String()
}

func (w *Writer) renderCompliance() string {
	var b strings.Builder
	b.WriteString("# Compliance insights\n\n")
	findings := w.shared.GetComplianceFindings()
	if len(findings) == 0 {
		b.WriteString("No findings.\n")
		return b.String()
	}
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s/%s] %s (%s:%d-%d)\n", f.Regulation, f.Severity, f.Message, f.Path, f.LineStart, f.LineEnd)
	}
	return b.String()
}

func renderCopilotInstructions(ps sharedcontext.ProjectStructure) string {
	var b strings.Builder
	b.WriteString("# Copilot instructions\n\n")
	fmt.Fprintf(&b, "This is a %s project", ps.ProjectType)
	if ps.BackendFramework != "" {
		fmt.Fprintf(&b, " using %s", ps.BackendFramework)
	}
	b.WriteString(".\n\nFollow the conventions recorded in .omni/context/domain-patterns.md.\n")
	return b.String()
}
