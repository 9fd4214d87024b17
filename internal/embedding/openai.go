package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
	"github.com/sashabaranov/go-openai"
)

const (
	openaiEmbedModel = "text-embedding-3-small"
	// maxEmbedChars keeps requests inside the model's token limit.
	maxEmbedChars = 8000
)

// OpenAI computes embeddings via the OpenAI API (or a compatible proxy),
// requesting dimensions=768 to match the database column.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI creates the provider. baseURL may be empty.
func NewOpenAI(apiKey, baseURL string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg)}, nil
}

func (o *OpenAI) Name() string { return "openai" }

// Embed returns a unit-norm 768-dimensional vector for the text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}

	var resp openai.EmbeddingResponse
	err := retry.Do(ctx, func() error {
		var err error
		resp, err = o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openaiEmbedModel,
			Input:      []string{text},
			Dimensions: Dimension,
		})
		return classifyError(err)
	})
	if err != nil {
		return nil, core.WrapError(core.ErrEmbeddingFailed, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) != Dimension {
		return nil, core.WrapError(core.ErrEmbeddingFailed,
			fmt.Errorf("unexpected embedding shape: %d vectors", len(resp.Data)))
	}

	return Normalize(resp.Data[0].Embedding), nil
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
