package executor

import (
	"context"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// exitParams are the per-regime stop/target percentages, mirroring the
// strategy definitions. Positions whose opening strategy is unknown fall back
// to the risk-file stop/target.
var exitParams = map[string]struct{ stopPct, targetPct float64 }{
	"Momentum":      {3, 8},
	"MeanReversion": {5, 4},
	"VolatileGap":   {7, 12},
}

// ExitCheck is the verdict for one open position.
type ExitCheck struct {
	Ticker     string
	Close      bool
	SignalType string
	Price      float64
}

// ApplyExitRules walks the open positions and closes any that hit their
// stop, reached their target, or timed out (fast-group positions held more
// than two trading days). Returns the journal rows of the executed exits.
func (a *Agent) ApplyExitRules(ctx context.Context) ([]store.TradeRow, error) {
	positions, err := a.ledger.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	var closed []store.TradeRow
	for _, pos := range positions {
		check, err := a.checkExit(ctx, pos)
		if err != nil {
			a.logger.Warn("exit check failed",
				zap.String("ticker", pos.Ticker), zap.Error(err))
			continue
		}
		if !check.Close {
			continue
		}

		trade, err := a.Sell(ctx, pos.Ticker, check.SignalType, &check.Price)
		if err != nil {
			a.logger.Warn("exit sell failed",
				zap.String("ticker", pos.Ticker), zap.Error(err))
			continue
		}
		closed = append(closed, *trade)
		a.logger.Info("position closed by exit rule",
			zap.String("ticker", pos.Ticker),
			zap.String("rule", check.SignalType),
			zap.Float64("price", check.Price),
		)
	}
	return closed, nil
}

func (a *Agent) checkExit(ctx context.Context, pos store.PortfolioRow) (ExitCheck, error) {
	check := ExitCheck{Ticker: pos.Ticker}

	price, err := a.ledger.LatestClose(ctx, pos.Ticker, a.clock.Now())
	if err != nil {
		return check, err
	}
	check.Price = price

	stopPct := a.risk.Limits().StopLossPct
	targetPct := a.risk.Limits().TakeProfitPct
	var entryTS time.Time
	lastBuy, err := a.ledger.LastBuy(ctx, pos.Ticker)
	if err == nil && lastBuy != nil {
		entryTS = lastBuy.TS
		if lastBuy.StrategyName != nil {
			if params, ok := exitParams[*lastBuy.StrategyName]; ok {
				stopPct, targetPct = params.stopPct, params.targetPct
			}
		}
	}

	entry := pos.AvgEntryPrice
	switch {
	case price <= entry*(1-stopPct/100):
		check.Close = true
		check.SignalType = core.SignalStopLoss
	case price >= entry*(1+targetPct/100):
		check.Close = true
		check.SignalType = core.SignalTakeProfit
	case a.isFast(pos.Ticker) && !entryTS.IsZero() &&
		tradingDaysBetween(entryTS, a.clock.Now()) > timeoutTradingDays:
		check.Close = true
		check.SignalType = core.SignalTimeout
	}
	return check, nil
}

func (a *Agent) isFast(ticker string) bool {
	_, ok := a.fast[ticker]
	return ok
}

// tradingDaysBetween counts the weekdays strictly after from, up to and
// including to's day.
func tradingDaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	days := 0
	for d := from.AddDate(0, 0, 1); !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}
