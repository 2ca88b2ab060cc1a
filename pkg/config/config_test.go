package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaultsWhenPathEmpty(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "chroma", cfg.VectorDB.Provider)
	assert.Equal(t, 60*time.Second, cfg.Workflows.DefaultTimeout)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
  host: 127.0.0.1
llm:
  provider: anthropic
workflows:
  defaultTimeout: 30s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.Workflows.DefaultTimeout)
	// untouched keys keep their defaults
	assert.Equal(t, "chroma", cfg.VectorDB.Provider)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 9090
`)

	t.Setenv("OMNI_SERVER__PORT", "7070")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadExpandsEnvVarReferences(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
llm:
  provider: openai
  openai:
    apiKey: ${TEST_OMNI_API_KEY}
    host: ${TEST_OMNI_HOST:https://api.openai.com}
`)

	t.Setenv("TEST_OMNI_API_KEY", "sk-test-123")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test-123", cfg.LLM.OpenAI.APIKey)
	assert.Equal(t, "https://api.openai.com", cfg.LLM.OpenAI.Host)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
server:
  port: 0
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsUnknownLLMProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
llm:
  provider: made-up
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsFaissVectorDB(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
vectordb:
  provider: faiss
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "faiss")
}

func TestExpandEnvVarsDefaultFallback(t *testing.T) {
	os.Unsetenv("TEST_OMNI_UNSET_VAR")
	assert.Equal(t, "fallback", expandEnvVars("${TEST_OMNI_UNSET_VAR:fallback}"))
}

func TestExpandEnvVarsNoDefaultMissingYieldsEmpty(t *testing.T) {
	os.Unsetenv("TEST_OMNI_UNSET_VAR")
	assert.Equal(t, "", expandEnvVars("${TEST_OMNI_UNSET_VAR}"))
}
