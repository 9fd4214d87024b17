package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/scheduler"
	"github.com/kobyzev-yuri/lse/internal/session"
	"go.uber.org/zap"
)

// Job names.
const (
	JobUpdatePrices       = "update_prices"
	JobUpdatePricesMarket = "update_prices_market"
	JobFetchNews          = "fetch_news"
	JobBackfillEmbeddings = "backfill_embeddings"
	JobSentimentEnrich    = "sentiment_enrich"
	JobOutcomeAnalyze     = "outcome_analyze"
	JobTradingCycle       = "trading_cycle"
	JobIntradaySignal     = "intraday_signal"
	JobPremarket          = "premarket_cron"
)

const (
	backfillLimit     = 500
	backfillBatchSize = 100
	sentimentLimit    = 50
	sentimentMaxAge   = 30 // days
	outcomeLimit      = 100
	barsLookbackDays  = 90
)

func (a *App) registerJobs() error {
	jobs := []scheduler.Job{
		{Name: JobUpdatePrices, Spec: "0 22 * * *", Run: a.jobUpdatePrices},
		{Name: JobUpdatePricesMarket, Spec: "0 9-17/2 * * 1-5", Run: a.jobUpdatePrices},
		{Name: JobFetchNews, Spec: "0 * * * *", Run: a.jobFetchNews},
		{Name: JobBackfillEmbeddings, Spec: "10 * * * *", Run: a.jobBackfillEmbeddings},
		{Name: JobOutcomeAnalyze, Spec: "0 4 * * *", Run: a.jobOutcomeAnalyze},
		{Name: JobTradingCycle, Spec: "0 9,13,17 * * 1-5", Run: a.jobTradingCycle},
		{Name: JobIntradaySignal, Spec: "*/5 * * * 1-5", Run: a.jobIntradaySignal},
		{Name: JobPremarket, Spec: "30 16 * * 1-5", Run: a.jobPremarket},
	}
	if a.cfg.UseLLM {
		jobs = append(jobs, scheduler.Job{
			Name: JobSentimentEnrich, Spec: "20 * * * *", Run: a.jobSentimentEnrich,
		})
	}

	for _, job := range jobs {
		if err := a.scheduler.Add(job); err != nil {
			return err
		}
	}
	return nil
}

// jobUpdatePrices ingests recent bars and recomputes indicators for every
// tracked ticker. A provider failure for one ticker never affects the rest.
func (a *App) jobUpdatePrices(ctx context.Context) error {
	now := a.clock.Now()
	from := now.AddDate(0, 0, -barsLookbackDays)

	var failed int
	for _, ticker := range a.cfg.AllTickers() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		bars, err := a.quotes.GetBars(ctx, ticker, from, now)
		if err != nil {
			failed++
			a.logger.Warn("bar fetch failed, ticker retried next cycle",
				zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		inserted, err := a.store.UpsertBars(ctx, ticker, bars)
		if err != nil {
			failed++
			a.logger.Warn("bar upsert failed", zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if inserted > 0 {
			if err := a.store.RecomputeIndicators(ctx, ticker, nil); err != nil {
				a.logger.Warn("indicator recompute failed",
					zap.String("ticker", ticker), zap.Error(err))
			}
		}

		// Imported RSI overwrites the local Wilder value when available.
		if a.rsi != nil {
			if value, err := a.rsi.GetRSI(ctx, ticker); err == nil {
				if err := a.store.ImportRSI(ctx, ticker, value); err != nil {
					a.logger.Debug("rsi import skipped",
						zap.String("ticker", ticker), zap.Error(err))
				}
			}
		}
	}

	if failed == len(a.cfg.AllTickers()) && failed > 0 {
		return core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("all %d tickers failed", failed))
	}
	return nil
}

func (a *App) jobFetchNews(ctx context.Context) error {
	summary := a.pipeline.Run(ctx)
	for source, count := range summary.Inserted {
		a.metrics.RecordNewsFetched(source, count)
	}
	return nil
}

func (a *App) jobBackfillEmbeddings(ctx context.Context) error {
	updated, err := a.backfill.BackfillEmbeddings(ctx, backfillLimit, backfillBatchSize)
	a.metrics.RecordEnriched("embedding", updated)
	return err
}

func (a *App) jobSentimentEnrich(ctx context.Context) error {
	enriched, err := a.sentiment.EnrichPending(ctx, sentimentMaxAge, sentimentLimit)
	a.metrics.RecordEnriched("sentiment", enriched)
	return err
}

func (a *App) jobOutcomeAnalyze(ctx context.Context) error {
	analyzed, err := a.outcomes.AnalyzeRipeEvents(ctx, a.cfg.EventOutcomeDaysAfter, outcomeLimit)
	a.metrics.RecordEnriched("outcome", analyzed)
	return err
}

// jobTradingCycle analyzes the cycle tickers, executes the decisions and
// applies the exit rules.
func (a *App) jobTradingCycle(ctx context.Context) error {
	for _, ticker := range a.cfg.CycleTickers() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.decideAndExecute(ctx, ticker, a.cfg.UseLLM)
	}

	if _, err := a.executor.ApplyExitRules(ctx); err != nil {
		a.logger.Warn("exit rules failed", zap.Error(err))
	}
	return nil
}

// jobIntradaySignal runs the 5-minute loop over the fast group with a
// per-ticker cooldown.
func (a *App) jobIntradaySignal(ctx context.Context) error {
	if a.oracle.Current().Phase != session.PhaseRegular {
		return nil
	}

	cooldown := time.Duration(a.cfg.Game5mCooldownMinutes) * time.Minute
	now := a.clock.Now()

	for _, ticker := range a.cfg.TickersFast() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.mu.Lock()
		last, seen := a.lastSignal[ticker]
		a.mu.Unlock()
		if seen && now.Sub(last) < cooldown {
			continue
		}

		if a.decideAndExecute(ctx, ticker, false) {
			a.mu.Lock()
			a.lastSignal[ticker] = now
			a.mu.Unlock()
		}
	}

	if _, err := a.executor.ApplyExitRules(ctx); err != nil {
		a.logger.Warn("exit rules failed", zap.Error(err))
	}
	return nil
}

// jobPremarket computes the pre-market gap for the fast and medium groups
// and records a knowledge-base note when the gap is material.
func (a *App) jobPremarket(ctx context.Context) error {
	if !a.cfg.PremarketAlert {
		return nil
	}
	if a.oracle.Current().Phase != session.PhasePreMarket {
		return nil
	}

	tickers := append(a.cfg.TickersFast(), a.cfg.TickersMedium()...)
	for _, ticker := range tickers {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		pc, err := a.oracle.Premarket(ctx, ticker)
		if err != nil {
			a.logger.Debug("premarket context unavailable",
				zap.String("ticker", ticker), zap.Error(err))
			continue
		}
		if pc.GapPct < 3 && pc.GapPct > -3 {
			continue
		}

		content := fmt.Sprintf("Pre-market gap %+.2f%% for %s: last %.2f vs prev close %.2f, %d minutes until open",
			pc.GapPct, ticker, pc.PremarketLast, pc.PrevClose, pc.MinutesUntilOpen)
		if _, _, err := a.store.InsertEntry(ctx, core.KBEntry{
			TS:         a.clock.Now(),
			Ticker:     ticker,
			Source:     JobPremarket,
			Content:    content,
			EventType:  core.EventTradeSignal,
			Importance: core.ImportanceHigh,
		}); err != nil {
			a.logger.Warn("premarket note insert failed",
				zap.String("ticker", ticker), zap.Error(err))
		}
	}
	return nil
}

// decideAndExecute runs one analyze+apply round. Reports whether a decision
// other than HOLD was produced.
func (a *App) decideAndExecute(ctx context.Context, ticker string, useLLM bool) bool {
	start := time.Now()
	result, err := a.analyst.AnalyzeWithOptions(ctx, ticker, useLLM)
	if err != nil {
		a.logger.Error("analysis failed", zap.String("ticker", ticker), zap.Error(err))
		return false
	}
	a.metrics.RecordDecision(result.Regime, string(result.Decision), time.Since(start).Seconds())

	trade, verdict, err := a.executor.Apply(ctx, result)
	if err != nil {
		a.logger.Error("execution failed", zap.String("ticker", ticker), zap.Error(err))
		return false
	}
	if verdict != nil && !verdict.Allowed {
		a.metrics.RecordRiskRejection()
	}
	if trade != nil {
		a.metrics.RecordTrade(trade.Side, trade.SignalType)
	}
	return result.Decision != core.DecisionHold
}
