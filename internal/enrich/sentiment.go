// Package enrich holds the three knowledge-base sweeps: LLM sentiment,
// embedding backfill and post-event outcome analysis. Each sweep updates only
// its own NULL fields, so their relative order never changes the result.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/llm"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// minSentimentContentLen skips fragments too short to score.
	minSentimentContentLen = 20
	// sentimentCallInterval throttles LLM calls.
	sentimentCallInterval = 500 * time.Millisecond
)

const sentimentSystemPrompt = `You are a financial analyst specializing in news sentiment.
Score the sentiment of the news item and extract its key financial fact.

Respond in JSON:
{
    "score": 0.0-1.0,
    "insight": "key financial fact"
}
where 0.0 is very negative, 0.5 neutral and 1.0 very positive. The insight must
be one short sentence with a concrete fact from the news (e.g. "revenue up 15%").`

// SentimentKB is the knowledge-base surface the enricher needs.
type SentimentKB interface {
	PendingSentiment(ctx context.Context, maxAgeDays, minContentLen, limit int) ([]core.KBEntry, error)
	UpdateEnrichment(ctx context.Context, id int64, u store.EnrichmentUpdate) error
}

// SentimentEnricher scores unsentimented entries with the LLM.
type SentimentEnricher struct {
	kb       SentimentKB
	provider llm.Provider
	logger   *zap.Logger
	limiter  *rate.Limiter
}

// NewSentimentEnricher creates the enricher.
func NewSentimentEnricher(kb SentimentKB, provider llm.Provider, log *zap.Logger) *SentimentEnricher {
	if log == nil {
		log = zap.NewNop()
	}
	return &SentimentEnricher{
		kb:       kb,
		provider: provider,
		logger:   log,
		limiter:  rate.NewLimiter(rate.Every(sentimentCallInterval), 1),
	}
}

// EnrichPending scores up to limit entries with a NULL sentiment whose
// content is long enough. A parse failure leaves the row untouched for the
// next sweep; a transport error stops the batch. Existing scores are never
// overwritten — the selection only sees NULL rows.
func (e *SentimentEnricher) EnrichPending(ctx context.Context, maxAgeDays, limit int) (int, error) {
	if e.provider == nil {
		return 0, nil
	}

	pending, err := e.kb.PendingSentiment(ctx, maxAgeDays, minSentimentContentLen, limit)
	if err != nil {
		return 0, err
	}

	var enriched int
	for _, entry := range pending {
		if err := e.limiter.Wait(ctx); err != nil {
			return enriched, err
		}

		score, insight, err := e.scoreOne(ctx, entry.Content)
		if err != nil {
			if errors.Is(err, core.ErrLLMFailed) {
				// Malformed reply: skip the row, keep going.
				e.logger.Warn("sentiment parse failed, row skipped",
					zap.Int64("id", entry.ID), zap.Error(err))
				continue
			}
			// Transport error: back off and stop the batch.
			e.logger.Warn("sentiment batch stopped", zap.Error(err))
			return enriched, err
		}

		update := store.EnrichmentUpdate{SentimentScore: &score}
		if insight != "" {
			update.Insight = &insight
		}
		if err := e.kb.UpdateEnrichment(ctx, entry.ID, update); err != nil {
			e.logger.Warn("sentiment update failed", zap.Int64("id", entry.ID), zap.Error(err))
			continue
		}
		enriched++
	}

	if enriched > 0 {
		e.logger.Info("sentiment enriched", zap.Int("rows", enriched), zap.Int("pending", len(pending)))
	}
	return enriched, nil
}

func (e *SentimentEnricher) scoreOne(ctx context.Context, content string) (float64, string, error) {
	resp, err := llm.Generate(ctx, e.provider, sentimentSystemPrompt,
		"Score the sentiment and extract the key fact of this news item:\n\n"+content,
		150, 0.1)
	if err != nil {
		return 0, "", err
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return 0, "", core.WrapError(core.ErrLLMFailed, fmt.Errorf("no JSON in reply"))
	}

	var parsed struct {
		Score   float64 `json:"score"`
		Insight string  `json:"insight"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return 0, "", core.WrapError(core.ErrLLMFailed, err)
	}

	return core.ClampSentiment(parsed.Score), parsed.Insight, nil
}
