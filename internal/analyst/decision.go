package analyst

import (
	"fmt"
	"math"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/session"
)

// Entry advice levels for a gapping pre-market.
const (
	AdviceCaution = "CAUTION"
	AdviceAvoid   = "AVOID"
)

// Pre-market entry recommendations.
const (
	EnterNow = "ENTER_NOW"
	WaitOpen = "WAIT_OPEN"
)

// Pre-market gap thresholds in percent.
const (
	gapCautionPct = 2.0
	gapAvoidPct   = 5.0
)

// MapDecision folds regime, technical signal and weighted sentiment into the
// final decision.
func MapDecision(regime string, tech core.Decision, sentiment float64) core.Decision {
	techBuy := tech == core.DecisionBuy

	switch regime {
	case "Momentum":
		switch {
		case techBuy && sentiment >= 0.7:
			return core.DecisionStrongBuy
		case techBuy && sentiment >= 0.5:
			return core.DecisionBuy
		default:
			return core.DecisionHold
		}
	case "MeanReversion":
		switch {
		case techBuy && sentiment >= 0.7:
			return core.DecisionBuy
		case !techBuy && sentiment < 0.3:
			return core.DecisionSell
		default:
			return core.DecisionHold
		}
	case "VolatileGap":
		switch {
		case techBuy && sentiment >= 0.7:
			return core.DecisionStrongBuy
		case techBuy && sentiment >= 0.5:
			return core.DecisionBuy
		case !techBuy && sentiment < 0.3:
			return core.DecisionSell
		default:
			return core.DecisionHold
		}
	default: // Neutral and anything unknown
		return core.DecisionHold
	}
}

// PremarketAdvice grades the entry risk of a pre-market gap. Small gaps are
// safe to enter, material gaps warrant a limit order below the gapped price,
// and runaway gaps are avoided until the open.
func PremarketAdvice(pm *session.PremarketContext) (advice, recommendation string) {
	if pm == nil {
		return "", ""
	}

	gap := math.Abs(pm.GapPct)
	switch {
	case gap >= gapAvoidPct:
		return AdviceAvoid, WaitOpen
	case gap >= gapCautionPct:
		return AdviceCaution, fmt.Sprintf("LIMIT_BELOW(%.2f)", pm.PremarketLast*0.99)
	default:
		return "", EnterNow
	}
}
