package strategy

import (
	"fmt"
	"math"

	"github.com/kobyzev-yuri/lse/internal/core"
)

const (
	meanReversionStopPct   = 5.0
	meanReversionTargetPct = 4.0
)

// MeanReversion trades against a stretched move: a material deviation from
// the short average on elevated volatility while the news is inconclusive.
type MeanReversion struct{}

// NewMeanReversion creates the regime.
func NewMeanReversion() *MeanReversion { return &MeanReversion{} }

func (m *MeanReversion) Name() string { return "MeanReversion" }

// IsSuitable requires deviation > 2% and elevated volatility, with either a
// sentiment inside the neutral band [0.30, 0.70] or volatility stretched far
// enough (> 1.2x the mean) that the band no longer matters.
func (m *MeanReversion) IsSuitable(s State) bool {
	if !s.HasIndicators() {
		return false
	}
	deviation := math.Abs(s.Close-*s.SMA5) / *s.SMA5
	if deviation <= 0.02 || *s.Volatility5 <= s.AvgVolatility20 {
		return false
	}
	neutralBand := s.Sentiment >= 0.30 && s.Sentiment <= 0.70
	return neutralBand || *s.Volatility5 > s.AvgVolatility20*1.2
}

// CalculateSignal trades toward the mean: deep discounts are bought,
// stretched rallies are sold.
func (m *MeanReversion) CalculateSignal(s State) Signal {
	deviation := priceDeviationPct(s)

	var action core.Decision
	var confidence float64
	switch {
	case deviation < -3.0:
		action = core.DecisionBuy
		confidence = clampConfidence(0.5+math.Abs(deviation)/10, 0.85)
	case deviation > 3.0:
		action = core.DecisionSell
		confidence = clampConfidence(0.5+math.Abs(deviation)/10, 0.85)
	case math.Abs(deviation) > 2.0:
		if deviation < 0 {
			action = core.DecisionBuy
		} else {
			action = core.DecisionHold
		}
		confidence = 0.6
	default:
		action = core.DecisionHold
		confidence = 0.3
	}

	return Signal{
		Action:     action,
		Confidence: confidence,
		EntryPrice: s.Close,
		StopPct:    meanReversionStopPct,
		TargetPct:  meanReversionTargetPct,
		Strategy:   m.Name(),
		Reason: fmt.Sprintf(
			"price %.2f deviates %.2f%% from SMA_5 %.2f, volatility %.2f > avg %.2f, expecting reversion",
			s.Close, deviation, *s.SMA5, *s.Volatility5, s.AvgVolatility20),
	}
}
