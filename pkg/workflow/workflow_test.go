package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/orchestrator"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

func TestIgnoreSetAppliesBaselineAndGitignore(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.tmp\nvendor/\n"), 0o644))

	set := newIgnoreSet(dir)
	assert.True(t, set.ignored("node_modules/pkg/index.js"))
	assert.True(t, set.ignored("notes.tmp"))
	assert.True(t, set.ignored("vendor/lib.go"))
	assert.False(t, set.ignored("main.go"))
}

func TestScanWorkspaceRespectsMaxFiles(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "f"+string(rune('a'+i))+".go"), []byte("package x\n"), 0o644))
	}
	files, err := scanWorkspace(dir, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(files), 3)
}

func TestDomainOfClassifiesPaths(t *testing.T) {
	assert.Equal(t, "tests", domainOf("pkg/foo_test.go"))
	assert.Equal(t, "docs", domainOf("README.md"))
	assert.Equal(t, "config", domainOf("config/app.yaml"))
	assert.Equal(t, "code", domainOf("pkg/foo.go"))
}

type registeringContextAgent struct {
	shared *sharedcontext.SharedContext
}

func (a *registeringContextAgent) Metadata() agent.Metadata {
	return agent.Metadata{ID: "context", Capabilities: []string{"extract-facts"}}
}
func (a *registeringContextAgent) Status() agent.Status { return agent.StatusIdle }
func (a *registeringContextAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	path, _ := msg.Metadata["path"].(string)
	if path != "" {
		a.shared.RegisterFile(sharedcontext.FileSummary{Path: path, RelPath: path}, msg.Content, "context")
	}
	return agent.Message{Kind: agent.MessageToolResult, Sender: "context"}, nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := agent.NewRegistry()
	shared := sharedcontext.New()
	require.NoError(t, reg.Register(agent.Metadata{ID: "context"}, func() agent.Agent {
		return &registeringContextAgent{shared: shared}
	}))
	orch := orchestrator.New(orchestrator.Config{}, reg, shared)
	_, err := orch.AddAgent("context")
	require.NoError(t, err)
	return New(Config{StepTimeout: time.Second, DefaultTimeout: 5 * time.Second}, orch, shared, nil)
}

func TestAnalyzeWorkspaceSucceedsWithOnlyContextRegistered(t *testing.T) {
	e := newTestEngine(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	result := e.AnalyzeWorkspace(context.Background(), dir, nil, time.Second, nil)
	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
}

func TestAnalyzeWorkspaceBudgetExhaustionSkipsLaterStages(t *testing.T) {
	e := newTestEngine(t)
	var events []ProgressEvent
	result := e.AnalyzeWorkspace(context.Background(), t.TempDir(), map[string]string{}, time.Nanosecond, func(ev ProgressEvent) {
		events = append(events, ev)
	})
	assert.NotEmpty(t, events)
	assert.Contains(t, events, ProgressEvent{Stage: "report", Status: "skipped"})
	_ = result
}

func TestAnalyzeFileBumpsVersionOnEveryCall(t *testing.T) {
	e := newTestEngine(t)
	e.AnalyzeFile(context.Background(), "pkg/a.go", "package a\n", "go")
	v1 := e.shared.GetProjectStructure().Version
	e.AnalyzeFile(context.Background(), "pkg/a.go", "package a\n", "go")
	v2 := e.shared.GetProjectStructure().Version
	assert.Equal(t, v1+1, v2)
}
