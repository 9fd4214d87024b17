package strategy

// Selector picks the first suitable regime in a fixed evaluation order.
type Selector struct {
	strategies []Strategy
}

// NewSelector creates the default selector: Momentum, MeanReversion,
// VolatileGap, then Neutral as the fallback. First match wins.
func NewSelector() *Selector {
	return &Selector{
		strategies: []Strategy{
			NewMomentum(),
			NewMeanReversion(),
			NewVolatileGap(),
			NewNeutral(),
		},
	}
}

// Select evaluates regimes in order and returns the first suitable one with
// its signal. Neutral always matches, so a regime is always returned.
func (sel *Selector) Select(s State) (Strategy, Signal) {
	for _, st := range sel.strategies {
		if st.IsSuitable(s) {
			return st, st.CalculateSignal(s)
		}
	}
	// Unreachable with Neutral registered; kept for safety.
	n := NewNeutral()
	return n, n.CalculateSignal(s)
}

// Strategies returns the regimes in evaluation order.
func (sel *Selector) Strategies() []Strategy {
	out := make([]Strategy, len(sel.strategies))
	copy(out, sel.strategies)
	return out
}

// ByName returns a regime by its name.
func (sel *Selector) ByName(name string) (Strategy, bool) {
	for _, st := range sel.strategies {
		if st.Name() == name {
			return st, true
		}
	}
	return nil, false
}
