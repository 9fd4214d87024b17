package llm

import (
	"context"
	"regexp"
	"strings"
)

// Provider defines the interface for LLM providers
type Provider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest holds the request parameters
type ChatRequest struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64
	JSONMode     bool
}

// Message represents a chat message
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// ChatResponse holds the response from the LLM
type ChatResponse struct {
	Content      string
	Model        string
	Usage        Usage
	FinishReason string
}

// Usage tracks token consumption
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Generate is the single-turn convenience wrapper used by the enrichment and
// analysis prompts: one system prompt, one user message, strict JSON expected.
func Generate(ctx context.Context, p Provider, system, user string, maxTokens int, temperature float64) (*ChatResponse, error) {
	return p.Chat(ctx, ChatRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
		MaxTokens:    maxTokens,
		Temperature:  temperature,
		JSONMode:     true,
	})
}

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// ExtractJSON pulls the first JSON object out of a model reply, tolerating
// markdown fences and surrounding prose. Returns "" when none is found.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return jsonObject.FindString(text)
}
