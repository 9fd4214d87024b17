package factory

import (
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/config"
	"github.com/kobyzev-yuri/lse/internal/llm"
	"github.com/kobyzev-yuri/lse/internal/llm/claude"
	"github.com/kobyzev-yuri/lse/internal/llm/openai"
)

// New creates an LLM provider by name. "openai" also serves any
// OpenAI-compatible endpoint selected via baseURL.
func New(provider, apiKey, model, baseURL string, timeout time.Duration) (llm.Provider, error) {
	switch provider {
	case "", "openai", "google":
		// Google models are reached through the OpenAI-compatible proxy path.
		return openai.New(apiKey, model, baseURL, timeout)
	case "anthropic", "claude":
		return claude.New(apiKey, model, baseURL, timeout)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}

// FromConfig builds the primary provider plus the comparison set from
// llm_compare_models. The primary is always first-class; comparison providers
// that fail to construct are skipped.
func FromConfig(cfg *config.Config) (llm.Provider, []llm.Provider, error) {
	if !cfg.UseLLM {
		return nil, nil, nil
	}

	primary, err := New("openai", cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL, cfg.LLMTimeout())
	if err != nil {
		return nil, nil, err
	}

	var others []llm.Provider
	for _, cm := range cfg.CompareModels() {
		if cm.Provider == "openai" && cm.Model == cfg.LLMModel {
			continue // the primary itself
		}
		p, err := New(cm.Provider, cfg.LLMAPIKey, cm.Model, cfg.LLMBaseURL, cfg.LLMTimeout())
		if err != nil {
			continue
		}
		others = append(others, p)
	}
	return primary, others, nil
}
