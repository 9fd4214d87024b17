package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// Outcome classification thresholds in percent.
const (
	outcomePositiveThreshold = 2.0
	outcomeNegativeThreshold = -2.0
)

// OutcomeKB is the knowledge-base surface the analyzer needs.
type OutcomeKB interface {
	RipeEvents(ctx context.Context, daysAfter, limit int) ([]core.KBEntry, error)
	UpdateEnrichment(ctx context.Context, id int64, u store.EnrichmentUpdate) error
}

// OutcomeQuotes is the quote surface the analyzer needs.
type OutcomeQuotes interface {
	FirstQuoteOnOrAfter(ctx context.Context, ticker string, date time.Time) (*store.QuoteRow, error)
	QuotesBetween(ctx context.Context, ticker string, from, to time.Time) ([]store.QuoteRow, error)
}

// OutcomeAnalyzer writes the post-event outcome record for ripe events.
type OutcomeAnalyzer struct {
	kb     OutcomeKB
	quotes OutcomeQuotes
	logger *zap.Logger
}

// NewOutcomeAnalyzer creates the analyzer.
func NewOutcomeAnalyzer(kb OutcomeKB, quotes OutcomeQuotes, log *zap.Logger) *OutcomeAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutcomeAnalyzer{kb: kb, quotes: quotes, logger: log}
}

// AnalyzeRipeEvents computes outcomes for up to limit events old enough to
// have daysAfter of quotes. Events whose anchor quotes are missing are
// skipped and retried by the next scheduled sweep; macro events never ripen.
func (a *OutcomeAnalyzer) AnalyzeRipeEvents(ctx context.Context, daysAfter, limit int) (int, error) {
	events, err := a.kb.RipeEvents(ctx, daysAfter, limit)
	if err != nil {
		return 0, err
	}

	var analyzed int
	for _, event := range events {
		if ctx.Err() != nil {
			return analyzed, ctx.Err()
		}

		outcome, err := a.analyzeOne(ctx, event, daysAfter)
		if err != nil {
			if errors.Is(err, core.ErrNoData) {
				a.logger.Debug("event not ripe, quotes missing",
					zap.Int64("id", event.ID), zap.String("ticker", event.Ticker))
				continue
			}
			return analyzed, err
		}

		if err := a.kb.UpdateEnrichment(ctx, event.ID, store.EnrichmentUpdate{Outcome: outcome}); err != nil {
			a.logger.Warn("outcome update failed", zap.Int64("id", event.ID), zap.Error(err))
			continue
		}
		analyzed++
	}

	if analyzed > 0 {
		a.logger.Info("event outcomes analyzed", zap.Int("events", analyzed))
	}
	return analyzed, nil
}

func (a *OutcomeAnalyzer) analyzeOne(ctx context.Context, event core.KBEntry, daysAfter int) (*core.Outcome, error) {
	eventDate := event.TS.Truncate(24 * time.Hour)

	atEvent, err := a.quotes.FirstQuoteOnOrAfter(ctx, event.Ticker, eventDate)
	if err != nil {
		return nil, err
	}
	after, err := a.quotes.FirstQuoteOnOrAfter(ctx, event.Ticker, eventDate.AddDate(0, 0, daysAfter))
	if err != nil {
		return nil, err
	}

	window, err := a.quotes.QuotesBetween(ctx, event.Ticker, atEvent.Date, after.Date)
	if err != nil {
		return nil, err
	}

	return ComputeOutcome(atEvent, after, window, event.SentimentScore, daysAfter), nil
}

// ComputeOutcome derives the outcome record from the two anchor quotes and
// the window of bars between them.
func ComputeOutcome(atEvent, after *store.QuoteRow, window []store.QuoteRow,
	sentiment *float64, daysAfter int) *core.Outcome {

	changePct := percentChange(atEvent.Close, after.Close)

	maxUp, maxDown := changePct, changePct
	for _, q := range window {
		pct := percentChange(atEvent.Close, q.Close)
		if pct > maxUp {
			maxUp = pct
		}
		if pct < maxDown {
			maxDown = pct
		}
	}

	out := &core.Outcome{
		PriceAtEvent:   atEvent.Close,
		PriceAfter:     after.Close,
		PriceChangePct: changePct,
		MaxUpPct:       maxUp,
		MaxDownPct:     maxDown,
		DaysAfter:      daysAfter,
	}

	switch {
	case changePct >= outcomePositiveThreshold:
		out.Outcome = core.OutcomePositive
	case changePct <= outcomeNegativeThreshold:
		out.Outcome = core.OutcomeNegative
	default:
		out.Outcome = core.OutcomeNeutral
	}

	if atEvent.Volatility5 != nil && *atEvent.Volatility5 > 0 {
		var sum float64
		var n int
		for _, q := range window {
			if q.Volatility5 != nil {
				sum += *q.Volatility5
				n++
			}
		}
		if n > 0 {
			change := (sum/float64(n) - *atEvent.Volatility5) / *atEvent.Volatility5 * 100
			out.VolatilityChangePct = &change
		}
	}

	if sentiment != nil {
		match := (*sentiment > core.NeutralSentiment) == (changePct > 0)
		out.SentimentMatch = &match
	}

	return out
}

func percentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
