package strategy

import (
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/core"
)

const (
	momentumStopPct   = 3.0
	momentumTargetPct = 8.0
)

// Momentum follows an established uptrend: price above the short average,
// volatility at or below its longer mean, supportive sentiment.
type Momentum struct{}

// NewMomentum creates the regime.
func NewMomentum() *Momentum { return &Momentum{} }

func (m *Momentum) Name() string { return "Momentum" }

// IsSuitable requires an uptrend, calm volatility and sentiment >= 0.55.
func (m *Momentum) IsSuitable(s State) bool {
	if !s.HasIndicators() {
		return false
	}
	return s.Close > *s.SMA5 &&
		*s.Volatility5 <= s.AvgVolatility20 &&
		s.Sentiment >= 0.55
}

// CalculateSignal grades the trend strength into BUY/STRONG_BUY.
func (m *Momentum) CalculateSignal(s State) Signal {
	deviation := priceDeviationPct(s)

	var action core.Decision
	var confidence float64
	switch {
	case deviation > 2.0 && s.Sentiment > 0.6:
		action = core.DecisionStrongBuy
		confidence = clampConfidence(0.6+deviation/10+(s.Sentiment-0.6), 0.9)
	case deviation > 1.0 && s.Sentiment > 0.5:
		action = core.DecisionBuy
		confidence = clampConfidence(0.5+deviation/10+(s.Sentiment-0.5), 0.8)
	default:
		action = core.DecisionHold
		confidence = 0.4
	}

	return Signal{
		Action:     action,
		Confidence: confidence,
		EntryPrice: s.Close,
		StopPct:    momentumStopPct,
		TargetPct:  momentumTargetPct,
		Strategy:   m.Name(),
		Reason: fmt.Sprintf(
			"price %.2f above SMA_5 %.2f (deviation %.2f%%), volatility %.2f <= avg %.2f, sentiment %.2f",
			s.Close, *s.SMA5, deviation, *s.Volatility5, s.AvgVolatility20, s.Sentiment),
	}
}
