package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kobyzev-yuri/lse/internal/llm"
	"github.com/kobyzev-yuri/lse/internal/retry"
	"github.com/sashabaranov/go-openai"
)

// Provider implements the LLM interface for OpenAI and OpenAI-compatible
// endpoints (llm_base_url points proxies and local servers here).
type Provider struct {
	client *openai.Client
	model  string
}

// New creates a new OpenAI provider. baseURL may be empty for the default
// endpoint; timeout bounds one request (0 means 60 s).
func New(apiKey, model, baseURL string, timeout time.Duration) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	if model == "" {
		model = "gpt-4o"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Provider{client: openai.NewClientWithConfig(cfg), model: model}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "openai"
}

// Chat sends a chat request to the OpenAI API.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}

	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}

	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var resp openai.ChatCompletionResponse
	err := retry.Do(ctx, func() error {
		var err error
		resp, err = p.client.CreateChatCompletion(ctx, chatReq)
		return classifyError(err)
	})
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	content := ""
	finishReason := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &llm.ChatResponse{
		Content: content,
		Model:   resp.Model,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		FinishReason: finishReason,
	}, nil
}

// classifyError maps SDK errors onto the provider taxonomy so the retry
// layer can tell a 429/5xx from a permanent failure.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return retry.StatusError(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return retry.StatusError(reqErr.HTTPStatusCode, err)
	}
	return err
}
