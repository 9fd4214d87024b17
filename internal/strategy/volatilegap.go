package strategy

import (
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/core"
)

const (
	volatileGapStopPct   = 7.0
	volatileGapTargetPct = 12.0
	// volatileGapRatio is the volatility multiple that marks a gap regime.
	volatileGapRatio = 1.5
)

// VolatileGap handles macro-driven turbulence: volatility far above its mean
// together with macro headlines or an extreme sentiment reading.
type VolatileGap struct{}

// NewVolatileGap creates the regime.
func NewVolatileGap() *VolatileGap { return &VolatileGap{} }

func (v *VolatileGap) Name() string { return "VolatileGap" }

// IsSuitable requires volatility > 1.5x its mean plus macro news or an
// extreme sentiment.
func (v *VolatileGap) IsSuitable(s State) bool {
	if s.Volatility5 == nil || s.AvgVolatility20 <= 0 {
		return false
	}
	if *s.Volatility5 <= s.AvgVolatility20*volatileGapRatio {
		return false
	}
	return s.HasMacroNews || s.Sentiment > 0.8 || s.Sentiment < 0.2
}

// CalculateSignal leans on sentiment in turbulent conditions; exits are wide.
func (v *VolatileGap) CalculateSignal(s State) Signal {
	ratio := 1.0
	if s.AvgVolatility20 > 0 {
		ratio = *s.Volatility5 / s.AvgVolatility20
	}

	var action core.Decision
	var confidence float64
	switch {
	case s.Sentiment > 0.7 && ratio > volatileGapRatio:
		action = core.DecisionStrongBuy
		confidence = clampConfidence(0.6+(s.Sentiment-0.7)*2, 0.9)
	case s.Sentiment > 0.6:
		action = core.DecisionBuy
		confidence = 0.7
	case s.Sentiment < 0.3:
		action = core.DecisionSell
		confidence = 0.7
	default:
		action = core.DecisionHold
		confidence = 0.4
	}

	return Signal{
		Action:     action,
		Confidence: confidence,
		EntryPrice: s.Close,
		StopPct:    volatileGapStopPct,
		TargetPct:  volatileGapTargetPct,
		Strategy:   v.Name(),
		Reason: fmt.Sprintf(
			"volatility %.2f vs avg %.2f (ratio %.2f), sentiment %.2f, %d news items",
			*s.Volatility5, s.AvgVolatility20, ratio, s.Sentiment, s.NewsCount),
	}
}
