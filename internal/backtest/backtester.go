// Package backtest replays the analyst over stored history. The only moving
// part is the replay clock: the analyst and its stores run unchanged, which
// is exactly what makes the replay trustworthy.
package backtest

import (
	"context"
	"errors"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
)

// Analyzer is the decision engine being replayed.
type Analyzer interface {
	AnalyzeWithOptions(ctx context.Context, ticker string, useLLM bool) (*analyst.Result, error)
}

// QuoteHistory supplies the trading days to step through. *store.Store
// satisfies this.
type QuoteHistory interface {
	QuotesBetween(ctx context.Context, ticker string, from, to time.Time) ([]store.QuoteRow, error)
}

// Backtester steps the replay clock across history and records the analyst's
// decisions as simulated trades.
type Backtester struct {
	quotes   QuoteHistory
	analyzer Analyzer
	clock    *ReplayClock
}

// New creates a backtester. The clock must be the same instance injected
// into the analyzer and its stores.
func New(quotes QuoteHistory, analyzer Analyzer, clock *ReplayClock) *Backtester {
	return &Backtester{quotes: quotes, analyzer: analyzer, clock: clock}
}

// Run replays each trading day in [start, end] for the ticker.
func (b *Backtester) Run(ctx context.Context, ticker string, start, end time.Time) (*Result, error) {
	bars, err := b.quotes.QuotesBetween(ctx, ticker, start.AddDate(0, 0, -1), end)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, errors.New("no historical data available")
	}

	var decisions []DatedDecision
	for _, bar := range bars {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Decide at the end of the bar's day; nothing later is visible.
		b.clock.Set(bar.Date.Add(21 * time.Hour))

		result, err := b.analyzer.AnalyzeWithOptions(ctx, ticker, false)
		if err != nil {
			continue // skip bars with analysis errors
		}
		decisions = append(decisions, DatedDecision{
			Date:     bar.Date,
			Decision: result.Decision,
			Regime:   result.Regime,
			Price:    bar.Close,
			Result:   result,
		})
	}

	trades := decisionsToTrades(decisions, bars)
	return &Result{
		Ticker:    ticker,
		StartDate: start,
		EndDate:   end,
		Decisions: decisions,
		Trades:    trades,
		Stats:     CalculateStats(trades),
	}, nil
}

// decisionsToTrades pairs buys with the following sell, one open position at
// a time.
func decisionsToTrades(decisions []DatedDecision, bars []store.QuoteRow) []Trade {
	var trades []Trade
	var open *Trade

	for _, d := range decisions {
		switch {
		case d.Decision.IsBuy():
			if open == nil {
				open = &Trade{Entry: d, EntryPrice: d.Price}
			}
		case d.Decision == core.DecisionSell:
			if open != nil {
				exit := d
				open.Exit = &exit
				open.ExitPrice = d.Price
				open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
				trades = append(trades, *open)
				open = nil
			}
		}
	}

	// Mark any open position to the last close.
	if open != nil {
		if len(bars) > 0 {
			open.ExitPrice = bars[len(bars)-1].Close
			open.Return = (open.ExitPrice - open.EntryPrice) / open.EntryPrice
		}
		trades = append(trades, *open)
	}

	return trades
}
