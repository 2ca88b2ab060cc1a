package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/config"
)

func TestRedactedConfigMasksAPIKeys(t *testing.T) {
	cfg := config.Config{}
	cfg.Security.APIKey = "sk-secret"
	cfg.LLM.OpenAI.APIKey = "openai-secret"
	cfg.LLM.Anthropic.APIKey = "anthropic-secret"
	cfg.VectorDB.Qdrant.APIKey = "qdrant-secret"

	redacted := redactedConfig(cfg)

	assert.Equal(t, "***", redacted.Security.APIKey)
	assert.Equal(t, "***", redacted.LLM.OpenAI.APIKey)
	assert.Equal(t, "***", redacted.LLM.Anthropic.APIKey)
	assert.Equal(t, "***", redacted.VectorDB.Qdrant.APIKey)
}

func TestRedactedConfigLeavesEmptyKeysEmpty(t *testing.T) {
	redacted := redactedConfig(config.Config{})
	assert.Empty(t, redacted.Security.APIKey)
	assert.Empty(t, redacted.LLM.OpenAI.APIKey)
}

func TestValidateDependencyGraphAcceptsResolvedDependencies(t *testing.T) {
	reg := agent.NewRegistry()
	require := func(err error) {
		if err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	require(reg.Register(agent.Metadata{ID: "context"}, func() agent.Agent { return nil }))
	require(reg.Register(agent.Metadata{ID: "security", Dependencies: []string{"context"}}, func() agent.Agent { return nil }))

	assert.NoError(t, validateDependencyGraph(reg))
}

func TestValidateDependencyGraphRejectsMissingDependency(t *testing.T) {
	reg := agent.NewRegistry()
	if err := reg.Register(agent.Metadata{ID: "security", Dependencies: []string{"context"}}, func() agent.Agent { return nil }); err != nil {
		t.Fatalf("register: %v", err)
	}

	assert.Error(t, validateDependencyGraph(reg))
}
