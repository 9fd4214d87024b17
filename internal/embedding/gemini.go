package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
)

const (
	geminiEmbedModel = "text-embedding-004"
	geminiEmbedURL   = "https://generativelanguage.googleapis.com/v1beta/models/%s:embedContent"
	// maxGeminiChars bounds request size for the REST endpoint.
	maxGeminiChars = 20000
)

// Gemini computes embeddings via the Gemini REST API with
// outputDimensionality=768.
type Gemini struct {
	apiKey string
	client *http.Client
}

// NewGemini creates the provider.
func NewGemini(apiKey string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	return &Gemini{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// Embed returns a unit-norm 768-dimensional vector for the text.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > maxGeminiChars {
		text = text[:maxGeminiChars]
	}

	payload := map[string]any{
		"content":              map[string]any{"parts": []map[string]string{{"text": text}}},
		"outputDimensionality": Dimension,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var out struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	url := fmt.Sprintf(geminiEmbedURL, geminiEmbedModel) + "?key=" + g.apiKey
	err = retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return core.WrapError(core.ErrEmbeddingFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp.StatusCode,
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return core.WrapError(core.ErrEmbeddingFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out.Embedding.Values) != Dimension {
		return nil, core.WrapError(core.ErrEmbeddingFailed,
			fmt.Errorf("unexpected dimensionality %d", len(out.Embedding.Values)))
	}

	return Normalize(out.Embedding.Values), nil
}
