package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCodeFindsGDPRLogging(t *testing.T) {
	a := NewComplianceAgent(ComplianceAgentConfig{}, nil)
	findings := a.ValidateCode("print('user', email, password)", "app.py")
	require.Len(t, findings, 1)
	assert.Equal(t, "GDPR", findings[0].Regulation)
	assert.Equal(t, "GDPR-LOGGING", findings[0].RuleID)
	assert.Equal(t, "critical", findings[0].Severity)
}

func TestValidateCodeHardcodedSecretHasNoComplianceIssues(t *testing.T) {
	a := NewComplianceAgent(ComplianceAgentConfig{}, nil)
	findings := a.ValidateCode(`api_key = "sk-xxx"`, "app.py")
	assert.Empty(t, findings)
}

func TestValidateCodeSkipsRuleEvaluationWithoutSensitiveCategory(t *testing.T) {
	a := NewComplianceAgent(ComplianceAgentConfig{}, nil)
	findings := a.ValidateCode("def add(a, b):\n    return a + b\n", "math.py")
	assert.Empty(t, findings)
}

func TestValidateCodeFindsCardStorage(t *testing.T) {
	a := NewComplianceAgent(ComplianceAgentConfig{}, nil)
	findings := a.ValidateCode(`card_number = "4111111111111111"`, "billing.py")
	require.NotEmpty(t, findings)
	assert.Equal(t, "PCI", findings[0].Regulation)
}

type fakeRuleLoader struct {
	rules []Rule
}

func (f *fakeRuleLoader) LoadRules(ctx context.Context, dirs []string) ([]Rule, error) {
	return f.rules, nil
}

func TestInitializeLoadsCustomRules(t *testing.T) {
	loader := &fakeRuleLoader{rules: []Rule{
		{ID: "CUSTOM-1", Regulation: "INTERNAL", Severity: "medium", Patterns: []string{`(?i)internal_secret`}},
	}}
	a := NewComplianceAgent(ComplianceAgentConfig{RuleDirs: []string{"rules/"}}, loader)
	require.NoError(t, a.Initialize(context.Background()))
	findings := a.ValidateCode(`password = "hunter2"; internal_secret = 1`, "app.py")
	var found bool
	for _, f := range findings {
		if f.RuleID == "CUSTOM-1" {
			found = true
		}
	}
	assert.True(t, found)
}
