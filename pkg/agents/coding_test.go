package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	content string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, req CodeRequest, original string) (string, error) {
	return g.content, g.err
}

func TestParseCodeRequestCommandForm(t *testing.T) {
	req, err := parseCodeRequest("patch pkg/foo.go: add a Bar method")
	require.NoError(t, err)
	assert.Equal(t, "pkg/foo.go", req.Path)
	assert.Equal(t, "add a Bar method", req.Intent)
}

func TestParseCodeRequestJSONForm(t *testing.T) {
	req, err := parseCodeRequest(`{"path": "pkg/foo.go", "intent": "add a Bar method"}`)
	require.NoError(t, err)
	assert.Equal(t, "pkg/foo.go", req.Path)
}

func TestParseCodeRequestRejectsGarbage(t *testing.T) {
	_, err := parseCodeRequest("please do something")
	assert.Error(t, err)
}

func TestGeneratePatchProducesUnifiedDiff(t *testing.T) {
	gen := &fakeGenerator{content: "package pkg\n\nfunc Bar() {}\n"}
	a := NewCodingAgent(CodingAgentConfig{}, gen)
	patch, newContent, err := a.GeneratePatch(context.Background(), "patch pkg/foo.go: add Bar", "package pkg\n")
	require.NoError(t, err)
	assert.Contains(t, patch.Diff, "+func Bar() {}")
	assert.Equal(t, "package pkg\n\nfunc Bar() {}\n", newContent)
}

func TestGeneratePatchRejectsRestrictedPath(t *testing.T) {
	gen := &fakeGenerator{content: "whatever"}
	a := NewCodingAgent(CodingAgentConfig{}, gen)
	_, _, err := a.GeneratePatch(context.Background(), "patch .env: leak it", "")
	assert.Error(t, err)
}

func TestGeneratePatchRejectsRestrictedDiffPattern(t *testing.T) {
	gen := &fakeGenerator{content: `api_key = "sk-abcdefg"`}
	a := NewCodingAgent(CodingAgentConfig{}, gen)
	_, _, err := a.GeneratePatch(context.Background(), "patch pkg/foo.go: add key", "")
	assert.Error(t, err)
}

func TestGeneratePatchRejectsOversizedDiff(t *testing.T) {
	var big string
	for i := 0; i < 20; i++ {
		big += "line\n"
	}
	gen := &fakeGenerator{content: big}
	a := NewCodingAgent(CodingAgentConfig{MaxDiffLines: 5}, gen)
	_, _, err := a.GeneratePatch(context.Background(), "patch pkg/foo.go: grow", "")
	assert.Error(t, err)
}

func TestGeneratePatchRejectsInvalidGoSyntax(t *testing.T) {
	gen := &fakeGenerator{content: "package pkg\n\nfunc Bar( {}\n"}
	a := NewCodingAgent(CodingAgentConfig{}, gen)
	_, _, err := a.GeneratePatch(context.Background(), "patch pkg/foo.go: add Bar", "package pkg\n")
	assert.Error(t, err)
}

func TestIsRestrictedPathMatchesDoubleStarGlobs(t *testing.T) {
	assert.True(t, isRestrictedPath("backend/secrets/db.yaml"))
	assert.True(t, isRestrictedPath("go.sum"))
	assert.False(t, isRestrictedPath("pkg/foo.go"))
}
