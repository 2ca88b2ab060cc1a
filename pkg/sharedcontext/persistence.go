package sharedcontext

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// persister owns the on-disk JSON snapshot of ProjectStructure at
// <workspace>/.omni/context/project-structure.json (spec §4.D
// Persistence, §6 filesystem layout).
type persister struct {
	workspacePath string
}

func (p *persister) path() string {
	return filepath.Join(p.workspacePath, ".omni", "context", "project-structure.json")
}

func (p *persister) save(ps ProjectStructure) error {
	if err := os.MkdirAll(filepath.Dir(p.path()), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p.path(), data, 0o644)
}

// legacyProjectStructure mirrors an older on-disk shape where each
// file entry was a bare one-line summary string instead of a
// structured FileSummary.
type legacyProjectStructure struct {
	ProjectType       ProjectType       `json:"projectType"`
	BackendFramework  string            `json:"backendFramework"`
	FrontendFramework string            `json:"frontendFramework"`
	Database          string            `json:"database"`
	Files             map[string]string `json:"files"`
	APIPatterns       []string          `json:"apiPatterns"`
	CompletedFeatures []string          `json:"completedFeatures"`
	Version           int               `json:"version"`
}

// load reads the persisted snapshot, returning (zero, false, nil) if
// no file exists yet. A malformed file is logged by the caller and
// treated as "no persisted state" rather than propagated.
func (p *persister) load() (ProjectStructure, bool, error) {
	data, err := os.ReadFile(p.path())
	if os.IsNotExist(err) {
		return ProjectStructure{}, false, nil
	}
	if err != nil {
		return ProjectStructure{}, false, err
	}

	var ps ProjectStructure
	if err := json.Unmarshal(data, &ps); err == nil && ps.Files != nil {
		return ps, true, nil
	}

	var legacy legacyProjectStructure
	if err := json.Unmarshal(data, &legacy); err != nil {
		return ProjectStructure{}, false, err
	}

	upgraded := newProjectStructure()
	upgraded.ProjectType = legacy.ProjectType
	upgraded.BackendFramework = legacy.BackendFramework
	upgraded.FrontendFramework = legacy.FrontendFramework
	upgraded.Database = legacy.Database
	upgraded.APIPatterns = legacy.APIPatterns
	upgraded.CompletedFeatures = legacy.CompletedFeatures
	upgraded.Version = legacy.Version
	for relPath, summary := range legacy.Files {
		upgraded.Files[relPath] = FileSummary{
			Path:    relPath,
			RelPath: relPath,
			Purpose: summary,
		}
	}
	return upgraded, true, nil
}

// SetWorkspacePath records the workspace root, optionally enabling
// persistence to it and optionally loading any previously persisted
// snapshot (spec §4.D Persistence).
func (sc *SharedContext) SetWorkspacePath(path string, enablePersistence, autoLoad bool) {
	sc.metaMu.Lock()
	sc.workspacePath = path
	sc.metaMu.Unlock()

	sc.persistMu.Lock()
	if enablePersistence {
		sc.persistence = &persister{workspacePath: path}
	} else {
		sc.persistence = nil
	}
	sc.persistMu.Unlock()

	if autoLoad {
		sc.load()
	}
}

func (sc *SharedContext) load() {
	sc.persistMu.Lock()
	p := sc.persistence
	sc.persistMu.Unlock()
	if p == nil {
		return
	}

	ps, ok, err := p.load()
	if err != nil {
		sc.log.Warn("failed to load persisted project structure, treating as absent", "error", err)
		return
	}
	if !ok {
		return
	}

	sc.psMu.Lock()
	sc.ps = ps
	sc.psMu.Unlock()
}

func (sc *SharedContext) persistLocked(ps ProjectStructure) {
	sc.persistMu.Lock()
	p := sc.persistence
	sc.persistMu.Unlock()
	if p == nil {
		return
	}
	if err := p.save(ps); err != nil {
		sc.log.Warn("failed to persist project structure", "error", err)
	}
}
