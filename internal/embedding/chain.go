package embedding

import (
	"context"

	"github.com/kobyzev-yuri/lse/internal/core"
	"go.uber.org/zap"
)

// Chain tries providers in order until one succeeds, giving automatic
// fallback from the preferred path to the configured alternatives.
type Chain struct {
	providers []Provider
	logger    *zap.Logger
}

// NewChain creates a fallback chain. At least one provider is required for a
// useful chain; an empty chain returns ErrEmbeddingFailed from Embed.
func NewChain(log *zap.Logger, providers ...Provider) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{providers: providers, logger: log}
}

func (c *Chain) Name() string { return "chain" }

// Available reports whether any provider is configured.
func (c *Chain) Available() bool { return len(c.providers) > 0 }

// Embed delegates to the first provider that succeeds.
func (c *Chain) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error = core.ErrEmbeddingFailed
	for i, p := range c.providers {
		vec, err := p.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		if i < len(c.providers)-1 {
			c.logger.Warn("embedding provider failed, falling back",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
		}
	}
	return nil, lastErr
}
