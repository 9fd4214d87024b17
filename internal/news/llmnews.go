package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/llm"
)

const llmNewsSystemPrompt = `You are a financial news assistant. For the given ticker,
recall the most significant piece of real, recent news you know about the company
or instrument. Respond in JSON:
{
    "headline": "short headline",
    "summary": "one or two sentences with the concrete facts",
    "sentiment": 0.0-1.0
}
If you know no recent news for the ticker, respond {"headline": ""}.`

// CooldownChecker reports whether a source already produced an entry for a
// ticker since the given time. *store.Store satisfies this.
type CooldownChecker interface {
	HasRecentFromSource(ctx context.Context, source, ticker string, since time.Time) (bool, error)
}

// LLMNewsFetcher asks the model for known recent news per ticker. Each ticker
// is cooled down so repeated pipeline runs do not multiply near-identical
// synthetic entries.
type LLMNewsFetcher struct {
	provider llm.Provider
	cooldown CooldownChecker
	tickers  []string
	period   time.Duration
	clock    core.Clock
}

// NewLLMNewsFetcher creates the fetcher.
func NewLLMNewsFetcher(provider llm.Provider, cooldown CooldownChecker,
	tickers []string, cooldownHours int, clock core.Clock) *LLMNewsFetcher {

	if cooldownHours <= 0 {
		cooldownHours = 12
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &LLMNewsFetcher{
		provider: provider,
		cooldown: cooldown,
		tickers:  tickers,
		period:   time.Duration(cooldownHours) * time.Hour,
		clock:    clock,
	}
}

func (l *LLMNewsFetcher) Name() string { return "llm_news" }

// Fetch queries the model for each ticker still outside its cooldown window.
// A per-ticker failure skips the ticker, never the batch.
func (l *LLMNewsFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	if l.provider == nil {
		return nil, nil
	}

	since := l.clock.Now().Add(-l.period)
	var entries []core.KBEntry
	for _, ticker := range l.tickers {
		if ctx.Err() != nil {
			return entries, ctx.Err()
		}

		recent, err := l.cooldown.HasRecentFromSource(ctx, l.Name(), ticker, since)
		if err != nil || recent {
			continue
		}

		entry, err := l.fetchOne(ctx, ticker)
		if err != nil || entry == nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

func (l *LLMNewsFetcher) fetchOne(ctx context.Context, ticker string) (*core.KBEntry, error) {
	resp, err := llm.Generate(ctx, l.provider,
		llmNewsSystemPrompt,
		fmt.Sprintf("Ticker: %s. What is the most significant recent news?", ticker),
		300, 0.3)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Headline  string  `json:"headline"`
		Summary   string  `json:"summary"`
		Sentiment float64 `json:"sentiment"`
	}
	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, core.WrapError(core.ErrLLMFailed, fmt.Errorf("no JSON in reply"))
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, err)
	}
	if strings.TrimSpace(parsed.Headline) == "" {
		return nil, nil // model knows nothing recent
	}

	content := strings.TrimSpace(parsed.Headline)
	if parsed.Summary != "" {
		content += ". " + strings.TrimSpace(parsed.Summary)
	}
	score := core.ClampSentiment(parsed.Sentiment)

	return &core.KBEntry{
		TS:             l.clock.Now(),
		Ticker:         ticker,
		Source:         l.Name(),
		Content:        content,
		EventType:      core.EventNews,
		Importance:     core.ImportanceLow,
		Region:         core.RegionUSA,
		SentimentScore: &score,
	}, nil
}
