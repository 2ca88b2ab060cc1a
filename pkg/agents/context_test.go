package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
)

type fakeFileAnalyzer struct{}

func (fakeFileAnalyzer) Analyze(ctx context.Context, path, content string) (FileAnalysis, error) {
	return FileAnalysis{Language: "go", LOC: 1, Purpose: "test fixture"}, nil
}

func TestExtractFactsDetectsTaskIntentAndFilenames(t *testing.T) {
	facts := extractFacts("please fix the bug in handler.go, it throws a panic")
	assert.Equal(t, "fix-bug", facts.TaskIntent)
	assert.Contains(t, facts.Filenames, "handler.go")
	assert.NotEmpty(t, facts.ErrorMentions)
}

func TestExtractFactsFirstIntentWins(t *testing.T) {
	facts := extractFacts("refactor and review this function")
	assert.Equal(t, "refactor", facts.TaskIntent)
}

func TestProcessSetsCurrentTaskOnlyFromUserText(t *testing.T) {
	a := NewContextAgent(ContextAgentConfig{}, fakeFileAnalyzer{})
	_, err := a.Process(context.Background(), agent.Message{
		Kind: agent.MessageText, Sender: "user", Content: "add a new feature for login",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "add-feature", a.CurrentTask())

	_, err = a.Process(context.Background(), agent.Message{
		Kind: agent.MessageText, Sender: "security", Content: "fix the bug here",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "add-feature", a.CurrentTask())
}

func TestProcessTruncatesHistoryAfterThreshold(t *testing.T) {
	a := NewContextAgent(ContextAgentConfig{SummarizeAfter: 2}, fakeFileAnalyzer{})
	for i := 0; i < 5; i++ {
		_, err := a.Process(context.Background(), agent.Message{Kind: agent.MessageText, Sender: "user", Content: "hi"}, nil)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(a.history), 2)
}

func TestRegisterGeneratedFileUsesAnalyzer(t *testing.T) {
	a := NewContextAgent(ContextAgentConfig{}, fakeFileAnalyzer{})
	shared := sharedcontext.New()

	ps, err := a.RegisterGeneratedFile(context.Background(), shared, "pkg/new.go", "package pkg\n", "coding")
	require.NoError(t, err)
	require.Contains(t, ps.Files, "pkg/new.go")
	assert.Equal(t, "test fixture", ps.Files["pkg/new.go"].Purpose)
}
