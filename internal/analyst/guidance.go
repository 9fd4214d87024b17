package analyst

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/llm"
	"github.com/kobyzev-yuri/lse/internal/session"
	"github.com/kobyzev-yuri/lse/internal/strategy"
)

const guidanceSystemPrompt = `You are an experienced financial analyst specializing in
technical analysis and news interpretation. Given the market snapshot, choose the most
appropriate trading strategy.

Respond in JSON:
{
    "strategy": "Momentum|MeanReversion|VolatileGap|Hold",
    "reasoning": "short explanation",
    "confidence": 0.0-1.0,
    "entry_price": number or null,
    "stop_loss": number or null,
    "take_profit": number or null
}`

// LLMGuidance is the model's strategy pick. Only the strategy label and
// confidence feed back into the decision; the final BUY/SELL mapping stays
// with the decision table.
type LLMGuidance struct {
	Strategy   string   `json:"strategy"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	EntryPrice *float64 `json:"entry_price"`
	StopLoss   *float64 `json:"stop_loss"`
	TakeProfit *float64 `json:"take_profit"`
}

func (a *Agent) askGuidance(ctx context.Context, comparator *llm.Comparator, ticker string,
	state strategy.State, tech core.Decision, entries []core.KBEntry, prior *EventPrior,
	sess session.Context, premarket *session.PremarketContext) (*LLMGuidance, []llm.CompareResult, error) {

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis for ticker %s:\n\nTechnical data:\n", ticker)
	fmt.Fprintf(&b, "- Close: %.2f\n", state.Close)
	if state.SMA5 != nil {
		fmt.Fprintf(&b, "- SMA_5: %.2f\n", *state.SMA5)
	}
	if state.Volatility5 != nil {
		fmt.Fprintf(&b, "- Volatility (5d): %.2f\n", *state.Volatility5)
	}
	fmt.Fprintf(&b, "- Avg volatility (20d): %.2f\n", state.AvgVolatility20)
	if state.RSI != nil {
		fmt.Fprintf(&b, "- RSI: %.1f (%s)\n", *state.RSI, rsiZone(*state.RSI))
	}
	fmt.Fprintf(&b, "- Technical signal: %s\n", tech)

	fmt.Fprintf(&b, "\nSentiment:\n- Weighted sentiment: %.3f\n- News in window: %d\n",
		state.Sentiment, len(entries))
	for i, e := range entries {
		if i >= 5 {
			break
		}
		score := "n/a"
		if e.SentimentScore != nil {
			score = fmt.Sprintf("%.2f", *e.SentimentScore)
		}
		fmt.Fprintf(&b, "- %s: %.200s (sentiment: %s)\n", e.Source, e.Content, score)
	}

	if prior != nil {
		fmt.Fprintf(&b, "\nSimilar past events (%d): avg price change %.2f%%, success rate %.0f%%\n",
			prior.Events, prior.AvgPriceChange, prior.SuccessRate*100)
	}

	fmt.Fprintf(&b, "\nSession phase: %s\n", sess.Phase)
	if sess.Phase == session.PhasePreMarket && premarket != nil {
		fmt.Fprintf(&b, "Pre-market: last %.2f vs prev close %.2f (gap %+.2f%%), %d minutes until open. Liquidity is thin before the open.\n",
			premarket.PremarketLast, premarket.PrevClose, premarket.GapPct, premarket.MinutesUntilOpen)
	}
	b.WriteString("\nPick the strategy for these conditions.")

	req := llm.ChatRequest{
		SystemPrompt: guidanceSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: b.String()}},
		MaxTokens:    500,
		Temperature:  a.temperature,
		JSONMode:     true,
	}

	resp, comparison, err := comparator.Chat(ctx, req)
	if err != nil {
		return nil, comparison, core.WrapError(core.ErrLLMFailed, err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, comparison, core.WrapError(core.ErrLLMFailed, fmt.Errorf("no JSON in guidance reply"))
	}
	var guidance LLMGuidance
	if err := json.Unmarshal([]byte(raw), &guidance); err != nil {
		return nil, comparison, core.WrapError(core.ErrLLMFailed, err)
	}
	return &guidance, comparison, nil
}

func rsiZone(rsi float64) string {
	switch {
	case rsi >= 70:
		return "overbought"
	case rsi >= 60:
		return "near overbought"
	case rsi <= 30:
		return "oversold"
	case rsi <= 40:
		return "near oversold"
	default:
		return "neutral zone"
	}
}
