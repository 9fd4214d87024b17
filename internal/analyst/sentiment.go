package analyst

import (
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
)

// News windows: instrument news decays fast, macro events linger.
const (
	tickerNewsWindow = 24 * time.Hour
	macroNewsWindow  = 72 * time.Hour
)

// Entry weights for the weighted sentiment.
const (
	weightTickerNews = 2.0
	weightMacroNews  = 1.0
)

// FilterNewsWindow keeps entries inside their type-specific window: 24 h for
// instrument news, 72 h for macro events, measured back from now.
func FilterNewsWindow(entries []core.KBEntry, now time.Time) []core.KBEntry {
	var out []core.KBEntry
	for _, e := range entries {
		window := tickerNewsWindow
		if core.IsMacroTicker(e.Ticker) {
			window = macroNewsWindow
		}
		if now.Sub(e.TS) <= window && !e.TS.After(now) {
			out = append(out, e)
		}
	}
	return out
}

// WeightedSentiment averages sentiment scores with ticker-specific items
// weighted double. Entries without a score are ignored; no scored news in
// the window yields the neutral 0.5. The result is always in [0,1].
func WeightedSentiment(entries []core.KBEntry, ticker string) float64 {
	var weightedSum, totalWeight float64
	for _, e := range entries {
		if e.SentimentScore == nil {
			continue
		}

		var weight float64
		switch {
		case e.MentionsTicker(ticker):
			weight = weightTickerNews
		case core.IsMacroTicker(e.Ticker):
			weight = weightMacroNews
		default:
			continue
		}

		weightedSum += *e.SentimentScore * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return core.NeutralSentiment
	}
	return core.ClampSentiment(weightedSum / totalWeight)
}

// EventPrior aggregates the outcomes of similar past events into a prior for
// the current decision.
type EventPrior struct {
	Events         int
	AvgPriceChange float64
	SuccessRate    float64
	Confidence     float64
}

// AggregateOutcomes builds the prior from similar events that carry an
// outcome. Confidence blends sample size with similarity.
func AggregateOutcomes(similar []similarEvent) *EventPrior {
	var n int
	var changeSum, simSum float64
	var positives int
	for _, s := range similar {
		if s.outcome == nil {
			continue
		}
		n++
		changeSum += s.outcome.PriceChangePct
		simSum += s.similarity
		if s.outcome.Outcome == core.OutcomePositive {
			positives++
		}
	}
	if n == 0 {
		return nil
	}

	avgSim := simSum / float64(n)
	sizeFactor := float64(n) / 5.0
	if sizeFactor > 1 {
		sizeFactor = 1
	}

	return &EventPrior{
		Events:         n,
		AvgPriceChange: changeSum / float64(n),
		SuccessRate:    float64(positives) / float64(n),
		Confidence:     avgSim * sizeFactor,
	}
}

type similarEvent struct {
	outcome    *core.Outcome
	similarity float64
}
