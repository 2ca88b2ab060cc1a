package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCodeFindsHardcodedSecret(t *testing.T) {
	a := NewSecurityAgent(SecurityAgentConfig{}, nil)
	findings, err := a.ValidateCode(context.Background(), `api_key = "sk-xxx"`, "app.py")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "critical", findings[0].Severity)
	assert.Equal(t, "secrets", findings[0].Category)
	assert.Equal(t, 1, findings[0].LineStart)
}

func TestValidateCodeFindsEvalExec(t *testing.T) {
	a := NewSecurityAgent(SecurityAgentConfig{}, nil)
	findings, err := a.ValidateCode(context.Background(), "result = eval(user_input)", "app.py")
	require.NoError(t, err)
	require.NotEmpty(t, findings)
	assert.Equal(t, "code-injection", findings[0].Category)
}

func TestValidateCodeCleanInputHasNoFindings(t *testing.T) {
	a := NewSecurityAgent(SecurityAgentConfig{}, nil)
	findings, err := a.ValidateCode(context.Background(), "def add(a, b):\n    return a + b\n", "math.py")
	require.NoError(t, err)
	assert.Empty(t, findings)
}

type fakeScanner struct {
	findings []ScanFinding
}

func (s *fakeScanner) Scan(ctx context.Context, path string, rules []string) ([]ScanFinding, error) {
	return s.findings, nil
}

func TestValidateCodeDelegatesToScannerWhenEnabled(t *testing.T) {
	scanner := &fakeScanner{findings: []ScanFinding{{Level: "warning", Category: "style", Message: "line too long", LineStart: 10, LineEnd: 10}}}
	a := NewSecurityAgent(SecurityAgentConfig{ScannerEnabled: true}, scanner)
	findings, err := a.ValidateCode(context.Background(), "x = 1\n", "clean.py")
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "medium", findings[0].Severity)
}

func TestAnalyzeOnlyReturnsFilesWithFindings(t *testing.T) {
	a := NewSecurityAgent(SecurityAgentConfig{}, nil)
	results, err := a.Analyze(context.Background(), map[string]string{
		"clean.py":  "x = 1\n",
		"secret.py": `token = "abcdefgh"`,
	})
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Contains(t, results, "secret.py")
}
