package main

import (
	"context"
	"fmt"

	"github.com/omnicore/agentrt/pkg/agents"
	"github.com/omnicore/agentrt/pkg/llmprovider"
)

// llmGenerator implements agents.Generator by asking the configured LLM
// provider for a full rewrite of the target file, grounded on the
// request/response shape llmprovider.Provider already exposes; the
// Coding agent itself only diffs and validates what comes back.
type llmGenerator struct {
	llm llmprovider.Provider
}

func newLLMGenerator(llm llmprovider.Provider) *llmGenerator {
	return &llmGenerator{llm: llm}
}

func (g *llmGenerator) Generate(ctx context.Context, req agents.CodeRequest, original string) (string, error) {
	if g.llm == nil {
		return "", fmt.Errorf("coding: no LLM provider configured")
	}
	messages := []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: "You rewrite source files to satisfy a stated intent. Respond with the complete new file content only, no commentary, no markdown fences."},
		{Role: llmprovider.RoleUser, Content: fmt.Sprintf("File: %s\nIntent: %s\n\nCurrent content:\n%s", req.Path, req.Intent, original)},
	}
	result, err := g.llm.Complete(ctx, messages, llmprovider.CompletionConfig{Temperature: 0.1})
	if err != nil {
		return "", err
	}
	return result.Content, nil
}

var _ agents.Generator = (*llmGenerator)(nil)
