package enrich

import (
	"context"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/embedding"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// EmbeddingKB is the knowledge-base surface the backfill needs.
type EmbeddingKB interface {
	PendingEmbeddings(ctx context.Context, limit int) ([]core.KBEntry, error)
	UpdateEnrichment(ctx context.Context, id int64, u store.EnrichmentUpdate) error
	EnsureVectorIndex(ctx context.Context) error
}

// EmbeddingBackfiller fills NULL embedding columns. The selection only sees
// NULL rows, so the backfill is monotonic: an existing vector is never
// overwritten.
type EmbeddingBackfiller struct {
	kb       EmbeddingKB
	provider embedding.Provider
	logger   *zap.Logger
}

// NewEmbeddingBackfiller creates the backfiller.
func NewEmbeddingBackfiller(kb EmbeddingKB, provider embedding.Provider, log *zap.Logger) *EmbeddingBackfiller {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmbeddingBackfiller{kb: kb, provider: provider, logger: log}
}

// BackfillEmbeddings embeds up to limit rows, committing batch by batch, and
// makes sure the vector index exists once enough rows are embedded. A
// per-row provider failure skips the row.
func (b *EmbeddingBackfiller) BackfillEmbeddings(ctx context.Context, limit, batchSize int) (int, error) {
	if b.provider == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	var updated, failed int
	for updated+failed < limit {
		n := batchSize
		if remaining := limit - updated - failed; remaining < n {
			n = remaining
		}

		pending, err := b.kb.PendingEmbeddings(ctx, n+failed)
		if err != nil {
			return updated, err
		}
		// Skip rows that already failed this run to avoid re-selecting them.
		if len(pending) <= failed {
			break
		}
		pending = pending[failed:]

		for _, entry := range pending {
			if ctx.Err() != nil {
				return updated, ctx.Err()
			}

			vec, err := b.provider.Embed(ctx, entry.Content)
			if err != nil {
				failed++
				b.logger.Warn("embedding failed", zap.Int64("id", entry.ID), zap.Error(err))
				continue
			}
			if err := b.kb.UpdateEnrichment(ctx, entry.ID, store.EnrichmentUpdate{Embedding: vec}); err != nil {
				failed++
				b.logger.Warn("embedding update failed", zap.Int64("id", entry.ID), zap.Error(err))
				continue
			}
			updated++
		}
	}

	if updated > 0 {
		if err := b.kb.EnsureVectorIndex(ctx); err != nil {
			b.logger.Warn("vector index check failed", zap.Error(err))
		}
		b.logger.Info("embeddings backfilled", zap.Int("updated", updated), zap.Int("failed", failed))
	}
	return updated, nil
}
