// Package strategy implements the trading regimes and the selector that
// picks one from market state. Implementations hold no mutable state and the
// selector is a pure function, so adding a regime is purely additive.
package strategy

import (
	"github.com/kobyzev-yuri/lse/internal/core"
)

// State is the market snapshot a regime is judged against. Indicator fields
// are pointers because fewer than five bars leave them NULL.
type State struct {
	Ticker          string
	Close           float64
	SMA5            *float64
	Volatility5     *float64
	AvgVolatility20 float64
	RSI             *float64
	NewsCount       int
	HasMacroNews    bool
	Sentiment       float64 // weighted, [0,1]
}

// HasIndicators reports whether the rolling indicators are available.
func (s State) HasIndicators() bool {
	return s.SMA5 != nil && s.Volatility5 != nil && s.AvgVolatility20 > 0
}

// Signal is a regime's verdict with its exit parameters. StopPct and
// TargetPct are percentages relative to the entry price.
type Signal struct {
	Action     core.Decision
	Confidence float64
	EntryPrice float64
	StopPct    float64
	TargetPct  float64
	Reason     string
	Strategy   string
}

// Strategy is one trading regime.
type Strategy interface {
	Name() string
	IsSuitable(s State) bool
	CalculateSignal(s State) Signal
}

// priceDeviationPct is the close's deviation from SMA_5 in percent.
func priceDeviationPct(s State) float64 {
	if s.SMA5 == nil || *s.SMA5 == 0 {
		return 0
	}
	return (s.Close - *s.SMA5) / *s.SMA5 * 100
}

func clampConfidence(c, max float64) float64 {
	if c > max {
		return max
	}
	return c
}
