// Package analyst fuses technical indicators, weighted news sentiment,
// similar-event outcomes, optional LLM guidance and the market session into
// one discrete decision per ticker.
package analyst

import (
	"context"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/embedding"
	"github.com/kobyzev-yuri/lse/internal/llm"
	"github.com/kobyzev-yuri/lse/internal/session"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/kobyzev-yuri/lse/internal/strategy"
	"go.uber.org/zap"
)

const (
	// minBars is the history needed for the 20-day volatility mean.
	minBars = 20
	// Similar-event search parameters.
	similarWindowDays = 365
	similarLimit      = 5
	similarMinScore   = 0.5
)

// QuoteReader is the quote surface the analyst needs. *store.Store
// satisfies this.
type QuoteReader interface {
	LastBars(ctx context.Context, ticker string, n int, asOf time.Time) ([]store.QuoteRow, error)
	AvgVolatility(ctx context.Context, ticker string, n int, asOf time.Time) (float64, error)
}

// NewsReader is the knowledge-base surface the analyst needs.
type NewsReader interface {
	QueryEntries(ctx context.Context, f store.KBFilter, asOf time.Time) ([]core.KBEntry, error)
	SimilarByVector(ctx context.Context, vec []float32, ticker string,
		windowDays, limit int, minSimilarity float64, asOf time.Time) ([]store.SimilarEvent, error)
}

// Result is the analyst's full output for one ticker.
type Result struct {
	Ticker            string               `json:"ticker"`
	Decision          core.Decision        `json:"decision"`
	Regime            string               `json:"regime"`
	Signal            strategy.Signal      `json:"signal"`
	TechnicalSignal   core.Decision        `json:"technical_signal"`
	WeightedSentiment float64              `json:"weighted_sentiment"`
	NewsCount         int                  `json:"news_count"`
	Prior             *EventPrior          `json:"similar_events_prior,omitempty"`
	Guidance          *LLMGuidance         `json:"llm_guidance,omitempty"`
	Comparison        []llm.CompareResult  `json:"llm_comparison,omitempty"`
	SessionPhase      session.Phase        `json:"session_phase"`
	Premarket         *session.PremarketContext `json:"premarket,omitempty"`
	EntryAdvice       string               `json:"entry_advice,omitempty"`
	PremarketEntry    string               `json:"premarket_entry_recommendation,omitempty"`
	EstimatedUpside   float64              `json:"estimated_upside_pct_day"`
	SuggestedTakeProfit float64            `json:"suggested_take_profit_price"`
	AnalyzedAt        time.Time            `json:"analyzed_at"`
}

// Agent runs the decision procedure.
type Agent struct {
	quotes      QuoteReader
	news        NewsReader
	selector    *strategy.Selector
	embedder    embedding.Provider
	llm         *llm.Comparator
	oracle      *session.Oracle
	clock       core.Clock
	logger      *zap.Logger
	temperature float64
}

// Option configures the agent.
type Option func(*Agent)

// WithLLM enables LLM guidance through the comparator.
func WithLLM(c *llm.Comparator, temperature float64) Option {
	return func(a *Agent) {
		a.llm = c
		a.temperature = temperature
	}
}

// WithEmbedder enables similar-event lookup.
func WithEmbedder(p embedding.Provider) Option {
	return func(a *Agent) { a.embedder = p }
}

// WithClock replaces the wall clock (backtests).
func WithClock(c core.Clock) Option {
	return func(a *Agent) { a.clock = c }
}

// New creates an analyst agent.
func New(quotes QuoteReader, news NewsReader, oracle *session.Oracle, log *zap.Logger, opts ...Option) *Agent {
	if log == nil {
		log = zap.NewNop()
	}
	a := &Agent{
		quotes:      quotes,
		news:        news,
		selector:    strategy.NewSelector(),
		oracle:      oracle,
		clock:       core.SystemClock(),
		logger:      log,
		temperature: 0.2,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze runs the full decision procedure for one ticker. Missing data
// degrades to HOLD, never to an error: only infrastructure failures surface.
func (a *Agent) Analyze(ctx context.Context, ticker string) (*Result, error) {
	return a.analyze(ctx, ticker, a.llm)
}

// AnalyzeWithOptions runs Analyze with LLM guidance forced off when useLLM
// is false; with true it behaves exactly like Analyze.
func (a *Agent) AnalyzeWithOptions(ctx context.Context, ticker string, useLLM bool) (*Result, error) {
	guidance := a.llm
	if !useLLM {
		guidance = nil
	}
	return a.analyze(ctx, ticker, guidance)
}

func (a *Agent) analyze(ctx context.Context, ticker string, guidanceLLM *llm.Comparator) (*Result, error) {
	now := a.clock.Now()
	log := a.logger.With(zap.String("ticker", ticker))

	result := &Result{
		Ticker:     ticker,
		Decision:   core.DecisionHold,
		Regime:     "Neutral",
		AnalyzedAt: now,
	}
	if a.oracle != nil {
		result.SessionPhase = a.oracle.Current().Phase
	}

	// Step 1: technicals
	bars, err := a.quotes.LastBars(ctx, ticker, minBars, now)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		log.Warn("no quotes, holding")
		return result, nil
	}
	latest := bars[0]
	avgVol, err := a.quotes.AvgVolatility(ctx, ticker, minBars, now)
	if err != nil {
		return nil, err
	}

	tech := core.DecisionHold
	if latest.SMA5 != nil && latest.Volatility5 != nil && avgVol > 0 &&
		latest.Close > *latest.SMA5 && *latest.Volatility5 < avgVol {
		tech = core.DecisionBuy
	}
	result.TechnicalSignal = tech

	// Step 2: news and weighted sentiment
	entries, err := a.news.QueryEntries(ctx, store.KBFilter{
		Ticker: ticker,
		Since:  now.Add(-macroNewsWindow),
	}, now)
	if err != nil {
		return nil, err
	}
	entries = FilterNewsWindow(entries, now)
	result.NewsCount = len(entries)
	result.WeightedSentiment = WeightedSentiment(entries, ticker)

	hasMacro := false
	for _, e := range entries {
		if core.IsMacroTicker(e.Ticker) {
			hasMacro = true
			break
		}
	}

	// Step 3: similar past events
	result.Prior = a.similarPrior(ctx, ticker, entries, now)

	// Step 4: regime selection
	state := strategy.State{
		Ticker:          ticker,
		Close:           latest.Close,
		SMA5:            latest.SMA5,
		Volatility5:     latest.Volatility5,
		AvgVolatility20: avgVol,
		RSI:             latest.RSI,
		NewsCount:       len(entries),
		HasMacroNews:    hasMacro,
		Sentiment:       result.WeightedSentiment,
	}
	regime, signal := a.selector.Select(state)
	result.Regime = regime.Name()
	result.Signal = signal

	// Pre-market context feeds both the LLM prompt and the entry advice.
	var premarket *session.PremarketContext
	sess := session.Context{Phase: result.SessionPhase}
	if a.oracle != nil {
		sess = a.oracle.Current()
		if sess.Phase == session.PhasePreMarket {
			if pc, err := a.oracle.Premarket(ctx, ticker); err == nil {
				premarket = pc
			}
			result.Premarket = premarket
		}
	}

	// Step 5: optional LLM guidance. The model only adjusts the strategy
	// label and confidence; the BUY/SELL mapping below stays table-driven.
	if guidanceLLM != nil {
		guidance, comparison, err := a.askGuidance(ctx, guidanceLLM, ticker, state, tech, entries, result.Prior, sess, premarket)
		result.Comparison = comparison
		if err != nil {
			log.Warn("LLM guidance unavailable", zap.Error(err))
		} else if guidance != nil {
			result.Guidance = guidance
			switch guidance.Strategy {
			case "Hold":
				result.Regime = "Neutral"
			case result.Regime:
				// Agreement: blend confidence toward the model's.
				result.Signal.Confidence = (result.Signal.Confidence + guidance.Confidence) / 2
			}
		}
	}

	// Step 6: combine
	result.Decision = MapDecision(result.Regime, tech, result.WeightedSentiment)
	if sess.Phase == session.PhasePreMarket && premarket != nil {
		result.EntryAdvice, result.PremarketEntry = PremarketAdvice(premarket)
	}

	// Step 7: expected move
	result.EstimatedUpside = result.Signal.TargetPct * result.Signal.Confidence
	if result.Signal.TargetPct > 0 {
		result.SuggestedTakeProfit = latest.Close * (1 + result.Signal.TargetPct/100)
	}

	log.Info("analysis complete",
		zap.String("decision", string(result.Decision)),
		zap.String("regime", result.Regime),
		zap.String("technical", string(tech)),
		zap.Float64("sentiment", result.WeightedSentiment),
		zap.Int("news", result.NewsCount),
	)
	return result, nil
}

// similarPrior looks up events similar to the freshest news item and folds
// their outcomes into a prior. Any failure degrades to no prior.
func (a *Agent) similarPrior(ctx context.Context, ticker string, entries []core.KBEntry, now time.Time) *EventPrior {
	if a.embedder == nil || len(entries) == 0 {
		return nil
	}

	query := entries[0].Content
	vec, err := a.embedder.Embed(ctx, query)
	if err != nil {
		a.logger.Debug("similar-event embedding unavailable", zap.Error(err))
		return nil
	}

	hits, err := a.news.SimilarByVector(ctx, vec, ticker, similarWindowDays, similarLimit, similarMinScore, now)
	if err != nil {
		a.logger.Debug("similar-event search failed", zap.Error(err))
		return nil
	}

	events := make([]similarEvent, 0, len(hits))
	for _, h := range hits {
		events = append(events, similarEvent{outcome: h.Entry.Outcome, similarity: h.Similarity})
	}
	return AggregateOutcomes(events)
}
