package strategy

import "github.com/kobyzev-yuri/lse/internal/core"

// Neutral is the fallback regime: no directional edge, always HOLD.
type Neutral struct{}

// NewNeutral creates the regime.
func NewNeutral() *Neutral { return &Neutral{} }

func (n *Neutral) Name() string { return "Neutral" }

// IsSuitable always holds; Neutral is evaluated last.
func (n *Neutral) IsSuitable(s State) bool { return true }

// CalculateSignal returns HOLD with no exit parameters.
func (n *Neutral) CalculateSignal(s State) Signal {
	return Signal{
		Action:     core.DecisionHold,
		Confidence: 0.5,
		EntryPrice: s.Close,
		Strategy:   n.Name(),
		Reason:     "no regime conditions met",
	}
}
