// Package executor turns analyst decisions into simulated fills: it sizes
// positions, runs the risk gate, mutates the portfolio inside one database
// transaction per decision and manages stop/target/timeout exits.
package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/risk"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// Signal weights for default position sizing.
var signalWeights = map[core.Decision]float64{
	core.DecisionStrongBuy: 1.0,
	core.DecisionBuy:       0.5,
}

// timeoutTradingDays closes fast-group positions held longer than this.
const timeoutTradingDays = 2

// Ledger is the durable portfolio surface. *store.Store satisfies this; the
// ExecuteTrade implementation owns the transaction and row locks.
type Ledger interface {
	Cash(ctx context.Context) (float64, error)
	Position(ctx context.Context, ticker string) (*store.PortfolioRow, error)
	OpenPositions(ctx context.Context) ([]store.PortfolioRow, error)
	LastBuy(ctx context.Context, ticker string) (*store.TradeRow, error)
	LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error)
	ExecuteTrade(ctx context.Context, f store.Fill) (*store.TradeRow, error)
}

// Config tunes the simulated execution.
type Config struct {
	CommissionRate  float64
	SlippageSellPct float64
	FastTickers     []string
}

// Agent executes decisions against the ledger under the risk gate.
type Agent struct {
	ledger Ledger
	risk   *risk.Manager
	cfg    Config
	fast   map[string]struct{}
	clock  core.Clock
	logger *zap.Logger
}

// New creates an executor.
func New(ledger Ledger, riskMgr *risk.Manager, cfg Config, log *zap.Logger) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	fast := make(map[string]struct{}, len(cfg.FastTickers))
	for _, t := range cfg.FastTickers {
		fast[t] = struct{}{}
	}
	return &Agent{
		ledger: ledger,
		risk:   riskMgr,
		cfg:    cfg,
		fast:   fast,
		clock:  core.SystemClock(),
		logger: log,
	}
}

// SetClock replaces the wall clock (backtests).
func (a *Agent) SetClock(c core.Clock) {
	if c != nil {
		a.clock = c
	}
}

// PositionSize is the default sizing rule: floor(capital * weight / price).
func PositionSize(capital, weight, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor(capital * weight / price)
}

// Buy opens a position for a BUY/STRONG_BUY decision. Quantity and price
// default to the sizing rule and the latest close. The buy is vetoed by the
// risk gate and by the at-most-one-position rule; a veto leaves state
// unchanged and reports the reason.
func (a *Agent) Buy(ctx context.Context, ticker string, decision core.Decision,
	quantity, price *float64, strategyName *string, sentiment *float64) (*store.TradeRow, *risk.Result, error) {

	weight, ok := signalWeights[decision]
	if !ok {
		return nil, nil, core.WrapError(core.ErrExecutionFailed,
			fmt.Errorf("decision %s does not open positions", decision))
	}

	if pos, err := a.ledger.Position(ctx, ticker); err != nil {
		return nil, nil, err
	} else if pos != nil {
		return nil, &risk.Result{Reason: fmt.Sprintf("position in %s already open", ticker)}, nil
	}

	fillPrice, err := a.resolvePrice(ctx, ticker, price)
	if err != nil {
		return nil, nil, err
	}

	var qty float64
	if quantity != nil && *quantity > 0 {
		qty = *quantity
	} else {
		capital := a.risk.Limits().TotalCapitalUSD
		qty = PositionSize(capital, weight, fillPrice)
	}
	if qty <= 0 {
		return nil, &risk.Result{Reason: "calculated quantity is zero"}, nil
	}

	verdict, err := a.risk.Check(ctx, risk.Request{
		Ticker:          ticker,
		PositionSizeUSD: qty * fillPrice,
	})
	if err != nil {
		return nil, nil, err
	}
	if !verdict.Allowed {
		a.logger.Info("buy vetoed by risk",
			zap.String("ticker", ticker),
			zap.String("reason", verdict.Reason),
		)
		return nil, &verdict, nil
	}

	trade, err := a.ledger.ExecuteTrade(ctx, store.Fill{
		TS:               a.clock.Now(),
		Ticker:           ticker,
		Side:             core.SideBuy,
		Quantity:         qty,
		Price:            fillPrice,
		Commission:       qty * fillPrice * a.cfg.CommissionRate,
		SignalType:       string(decision),
		StrategyName:     strategyName,
		SentimentAtTrade: sentiment,
	})
	if err != nil {
		return nil, nil, err
	}
	return trade, &verdict, nil
}

// Sell closes the full position at the given price (latest close when nil).
// Market sells take the configured sandbox slippage haircut.
func (a *Agent) Sell(ctx context.Context, ticker, signalType string, price *float64) (*store.TradeRow, error) {
	pos, err := a.ledger.Position(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return nil, core.WrapError(core.ErrExecutionFailed,
			fmt.Errorf("no open position in %s", ticker))
	}

	fillPrice, err := a.resolvePrice(ctx, ticker, price)
	if err != nil {
		return nil, err
	}
	if price == nil && a.cfg.SlippageSellPct > 0 {
		fillPrice *= 1 - a.cfg.SlippageSellPct/100
	}

	var strategyName *string
	var sentiment *float64
	if lastBuy, err := a.ledger.LastBuy(ctx, ticker); err == nil && lastBuy != nil {
		strategyName = lastBuy.StrategyName
		sentiment = lastBuy.SentimentAtTrade
	}

	return a.ledger.ExecuteTrade(ctx, store.Fill{
		TS:               a.clock.Now(),
		Ticker:           ticker,
		Side:             core.SideSell,
		Quantity:         pos.Quantity,
		Price:            fillPrice,
		Commission:       pos.Quantity * fillPrice * a.cfg.CommissionRate,
		SignalType:       signalType,
		StrategyName:     strategyName,
		SentimentAtTrade: sentiment,
	})
}

// Apply executes one analyst result: buys on BUY/STRONG_BUY, closes an open
// position on SELL, does nothing on HOLD.
func (a *Agent) Apply(ctx context.Context, result *analyst.Result) (*store.TradeRow, *risk.Result, error) {
	switch {
	case result.Decision.IsBuy():
		var strategyName *string
		if result.Regime != "" {
			name := result.Regime
			strategyName = &name
		}
		sentiment := result.WeightedSentiment
		return a.Buy(ctx, result.Ticker, result.Decision, nil, nil, strategyName, &sentiment)

	case result.Decision == core.DecisionSell:
		pos, err := a.ledger.Position(ctx, result.Ticker)
		if err != nil || pos == nil {
			return nil, nil, err
		}
		trade, err := a.Sell(ctx, result.Ticker, core.SignalSignal, nil)
		return trade, nil, err

	default:
		return nil, nil, nil
	}
}

func (a *Agent) resolvePrice(ctx context.Context, ticker string, price *float64) (float64, error) {
	if price != nil && *price > 0 {
		return *price, nil
	}
	return a.ledger.LatestClose(ctx, ticker, a.clock.Now())
}
