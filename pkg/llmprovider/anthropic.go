package llmprovider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicConfig configures a Claude-backed Provider.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
}

// AnthropicProvider adapts the official Anthropic SDK to the Provider
// contract. Embed is unsupported: Anthropic does not publish an
// embeddings endpoint, so callers needing embeddings should pair this
// provider with an OpenAIProvider for that one operation.
type AnthropicProvider struct {
	cfg    AnthropicConfig
	client anthropic.Client
}

func NewAnthropicProvider(cfg AnthropicConfig) *AnthropicProvider {
	return &AnthropicProvider{
		cfg:    cfg,
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
	}
}

func (p *AnthropicProvider) model(cfg CompletionConfig) anthropic.Model {
	if cfg.Model != "" {
		return anthropic.Model(cfg.Model)
	}
	if p.cfg.DefaultModel != "" {
		return anthropic.Model(p.cfg.DefaultModel)
	}
	return anthropic.ModelClaude3_7SonnetLatest
}

func toAnthropicParams(messages []Message, cfg CompletionConfig, model anthropic.Model) anthropic.MessageNewParams {
	var system string
	var turns []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens == 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  turns,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	return params
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message, cfg CompletionConfig) (CompletionResult, error) {
	model := p.model(cfg)
	msg, err := p.client.Messages.New(ctx, toAnthropicParams(messages, cfg, model))
	if err != nil {
		return CompletionResult{}, err
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return CompletionResult{
		Content:      content,
		Model:        string(msg.Model),
		FinishReason: string(msg.StopReason),
		Usage: Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message, cfg CompletionConfig) (<-chan StreamChunk, error) {
	model := p.model(cfg)
	stream := p.client.Messages.NewStreaming(ctx, toAnthropicParams(messages, cfg, model))

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		for stream.Next() {
			event := stream.Current()
			if delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta); ok && delta.Text != "" {
				select {
				case out <- StreamChunk{Content: delta.Text}:
				case <-ctx.Done():
					return
				}
			}
		}
		done := StreamChunk{Done: true}
		if err := stream.Err(); err != nil {
			done.Content = ""
		}
		out <- done
	}()
	return out, nil
}

func (p *AnthropicProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic: embeddings are not supported by this provider")
}

func (p *AnthropicProvider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model(CompletionConfig{}),
		MaxTokens: 1,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("ping"))},
	})
	return err
}
