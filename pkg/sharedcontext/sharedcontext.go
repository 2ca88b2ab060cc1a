package sharedcontext

import (
	"log/slog"
	"sync"
	"time"

	"github.com/omnicore/agentrt/pkg/logger"
)

// ChangeCallback is notified after every successful mutation of
// ProjectStructure. A returned error is logged and swallowed (spec
// §4.D): callback failures never fail the mutation that triggered them.
type ChangeCallback func(ProjectStructure) error

// SharedContext is the thread-safe, per-field-locked store the agents
// communicate through. Independent fields are guarded by independent
// mutexes so a slow reader of one field never blocks a writer of
// another (spec §4.D, §5 shared-resource policy).
type SharedContext struct {
	log *slog.Logger

	psMu sync.RWMutex
	ps   ProjectStructure

	findingsMu         sync.RWMutex
	securityFindings   []SecurityFinding
	complianceFindings []ComplianceFinding

	summariesMu       sync.RWMutex
	relevantSummaries []string

	metaMu         sync.RWMutex
	workspacePath  string
	sessionStarted time.Time

	persistMu   sync.Mutex
	persistence *persister

	callbacksMu sync.Mutex
	callbacks   []ChangeCallback
}

// Option customizes a SharedContext at construction.
type Option func(*SharedContext)

// WithLogger overrides the default package logger.
func WithLogger(l *slog.Logger) Option {
	return func(sc *SharedContext) { sc.log = l }
}

// New builds an empty SharedContext with sessionStarted set to now.
func New(opts ...Option) *SharedContext {
	sc := &SharedContext{
		log:            logger.GetLogger(),
		ps:             newProjectStructure(),
		sessionStarted: time.Now(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// OnChange registers a callback invoked after every successful
// ProjectStructure mutation.
func (sc *SharedContext) OnChange(cb ChangeCallback) {
	sc.callbacksMu.Lock()
	defer sc.callbacksMu.Unlock()
	sc.callbacks = append(sc.callbacks, cb)
}

func (sc *SharedContext) notify(snapshot ProjectStructure) {
	sc.callbacksMu.Lock()
	callbacks := append([]ChangeCallback(nil), sc.callbacks...)
	sc.callbacksMu.Unlock()

	for _, cb := range callbacks {
		if err := sc.safeInvoke(cb, snapshot); err != nil {
			sc.log.Warn("shared context change callback failed", "error", err)
		}
	}
}

func (sc *SharedContext) safeInvoke(cb ChangeCallback, snapshot ProjectStructure) (err error) {
	defer func() {
		if r := recover(); r != nil {
			sc.log.Error("shared context change callback panicked", "panic", r)
		}
	}()
	return cb(snapshot)
}

// GetProjectStructure returns a value snapshot of the current project
// structure.
func (sc *SharedContext) GetProjectStructure() ProjectStructure {
	sc.psMu.RLock()
	defer sc.psMu.RUnlock()
	return sc.ps.clone()
}

// SetProjectStructure replaces the entire project structure, bumping
// version and appending a change-history entry.
func (sc *SharedContext) SetProjectStructure(ps ProjectStructure, modifier, description string) ProjectStructure {
	sc.psMu.Lock()
	ps.Version = sc.ps.Version + 1
	ps.LastUpdated = time.Now()
	ps.LastModifier = modifier
	ps.ChangeHistory = append([]StateChange(nil), sc.ps.ChangeHistory...)
	ps.appendHistory(StateChange{
		Version:     ps.Version,
		Modifier:    modifier,
		Description: description,
		Timestamp:   ps.LastUpdated,
	})
	sc.ps = ps
	snapshot := sc.ps.clone()
	sc.psMu.Unlock()

	sc.persistLocked(snapshot)
	sc.notify(snapshot)
	return snapshot
}

// UpdateProjectStructureIfVersion applies mutate only if the store's
// current version equals expectedVersion (spec §4.D optimistic update).
// A mismatch is logged and leaves the store untouched.
func (sc *SharedContext) UpdateProjectStructureIfVersion(expectedVersion int, modifier, description string, mutate func(*ProjectStructure)) (ProjectStructure, bool) {
	sc.psMu.Lock()
	if sc.ps.Version != expectedVersion {
		sc.log.Warn("optimistic update version mismatch",
			"expected", expectedVersion, "actual", sc.ps.Version)
		snapshot := sc.ps.clone()
		sc.psMu.Unlock()
		return snapshot, false
	}

	next := sc.ps.clone()
	mutate(&next)
	next.Version = sc.ps.Version + 1
	next.LastUpdated = time.Now()
	next.LastModifier = modifier
	next.appendHistory(StateChange{
		Version:     next.Version,
		Modifier:    modifier,
		Description: description,
		Timestamp:   next.LastUpdated,
	})
	sc.ps = next
	snapshot := sc.ps.clone()
	sc.psMu.Unlock()

	sc.persistLocked(snapshot)
	sc.notify(snapshot)
	return snapshot, true
}

// RegisterFile atomically replaces the FileSummary for summary.RelPath,
// recomputes the derived project type, and bumps version once (spec
// §4.D File registration). content is used only to latch framework and
// database detections; it is never stored.
func (sc *SharedContext) RegisterFile(summary FileSummary, content, modifier string) ProjectStructure {
	sc.psMu.Lock()
	next := sc.ps.clone()
	next.Files[summary.RelPath] = summary
	next.ProjectType = deriveProjectType(next.Files)
	detectFrameworks(&next, content)

	next.Version = sc.ps.Version + 1
	next.LastUpdated = time.Now()
	next.LastModifier = modifier
	next.appendHistory(StateChange{
		Version:     next.Version,
		Modifier:    modifier,
		Description: "registered " + summary.RelPath,
		Timestamp:   next.LastUpdated,
	})
	sc.ps = next
	snapshot := sc.ps.clone()
	sc.psMu.Unlock()

	sc.persistLocked(snapshot)
	sc.notify(snapshot)
	return snapshot
}

// AddSecurityFinding appends f to the findings list.
func (sc *SharedContext) AddSecurityFinding(f SecurityFinding) {
	if f.Found.IsZero() {
		f.Found = time.Now()
	}
	sc.findingsMu.Lock()
	sc.securityFindings = append(sc.securityFindings, f)
	sc.findingsMu.Unlock()
}

// GetSecurityFindings returns a copy of the accumulated security
// findings.
func (sc *SharedContext) GetSecurityFindings() []SecurityFinding {
	sc.findingsMu.RLock()
	defer sc.findingsMu.RUnlock()
	return append([]SecurityFinding(nil), sc.securityFindings...)
}

// ClearSecurityFindings discards all accumulated security findings.
func (sc *SharedContext) ClearSecurityFindings() {
	sc.findingsMu.Lock()
	sc.securityFindings = nil
	sc.findingsMu.Unlock()
}

// AddComplianceFinding appends f to the findings list.
func (sc *SharedContext) AddComplianceFinding(f ComplianceFinding) {
	if f.Found.IsZero() {
		f.Found = time.Now()
	}
	sc.findingsMu.Lock()
	sc.complianceFindings = append(sc.complianceFindings, f)
	sc.findingsMu.Unlock()
}

// GetComplianceFindings returns a copy of the accumulated compliance
// findings.
func (sc *SharedContext) GetComplianceFindings() []ComplianceFinding {
	sc.findingsMu.RLock()
	defer sc.findingsMu.RUnlock()
	return append([]ComplianceFinding(nil), sc.complianceFindings...)
}

// ClearComplianceFindings discards all accumulated compliance findings.
func (sc *SharedContext) ClearComplianceFindings() {
	sc.findingsMu.Lock()
	sc.complianceFindings = nil
	sc.findingsMu.Unlock()
}

// SetRelevantSummaries replaces the cached set of relevant file
// summaries (populated by the Retrieval agent).
func (sc *SharedContext) SetRelevantSummaries(summaries []string) {
	sc.summariesMu.Lock()
	sc.relevantSummaries = append([]string(nil), summaries...)
	sc.summariesMu.Unlock()
}

// GetRelevantSummaries returns the cached relevant summaries.
func (sc *SharedContext) GetRelevantSummaries() []string {
	sc.summariesMu.RLock()
	defer sc.summariesMu.RUnlock()
	return append([]string(nil), sc.relevantSummaries...)
}

// WorkspacePath returns the workspace path set by SetWorkspacePath, if
// any.
func (sc *SharedContext) WorkspacePath() string {
	sc.metaMu.RLock()
	defer sc.metaMu.RUnlock()
	return sc.workspacePath
}

// SessionStarted reports when this SharedContext was created.
func (sc *SharedContext) SessionStarted() time.Time {
	sc.metaMu.RLock()
	defer sc.metaMu.RUnlock()
	return sc.sessionStarted
}

// ToDict renders the store as a generic, JSON-serializable map
// mirroring spec §4.D's logical `toDict` operation.
func (sc *SharedContext) ToDict() map[string]any {
	ps := sc.GetProjectStructure()
	return map[string]any{
		"projectStructure":   ps,
		"securityFindings":   sc.GetSecurityFindings(),
		"complianceFindings": sc.GetComplianceFindings(),
		"relevantSummaries":  sc.GetRelevantSummaries(),
		"workspacePath":      sc.WorkspacePath(),
		"sessionStarted":     sc.SessionStarted(),
		"_version":           ps.Version,
	}
}
