package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRulesParsesYAMLList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(`
- id: CUSTOM-001
  name: Custom secret pattern
  category: secrets
  severity: high
  regulation: INTERNAL
  patterns:
    - "internal_token\\s*="
`), 0644))

	l := New()
	result, err := l.LoadRules(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "CUSTOM-001", result[0].ID)
	assert.Equal(t, "INTERNAL", result[0].Regulation)
}

func TestLoadRulesParsesJSONWrappedDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.json"), []byte(`{
  "rules": [
    {"id": "CUSTOM-002", "name": "JSON rule", "category": "misc", "severity": "low", "patterns": ["foo"]}
  ]
}`), 0644))

	l := New()
	result, err := l.LoadRules(context.Background(), []string{dir})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "CUSTOM-002", result[0].ID)
}

func TestLoadRulesMissingDirIsLegal(t *testing.T) {
	l := New()
	result, err := l.LoadRules(context.Background(), []string{"/nonexistent/path/xyz"})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestLoadRulesIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a rule file"), 0644))

	l := New()
	result, err := l.LoadRules(context.Background(), []string{dir})
	require.NoError(t, err)
	assert.Empty(t, result)
}
