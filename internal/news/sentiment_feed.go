package news

import (
	"context"
	"strings"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/quote/alphavantage"
)

// SentimentFeed is the pre-scored news source. *alphavantage.Client
// satisfies this.
type SentimentFeed interface {
	NewsSentiment(ctx context.Context, tickers []string) ([]alphavantage.NewsItem, error)
}

// SentimentFetcher pulls articles that already carry a sentiment score, so
// the LLM enrichment sweep never has to touch them.
type SentimentFetcher struct {
	feed    SentimentFeed
	tickers []string
}

// NewSentimentFetcher creates the fetcher for a ticker set.
func NewSentimentFetcher(feed SentimentFeed, tickers []string) *SentimentFetcher {
	return &SentimentFetcher{feed: feed, tickers: tickers}
}

func (s *SentimentFetcher) Name() string { return "alphavantage_news" }

// Fetch returns scored articles, one entry per (article, matched ticker).
func (s *SentimentFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	if len(s.tickers) == 0 {
		return nil, nil
	}

	items, err := s.feed.NewsSentiment(ctx, s.tickers)
	if err != nil {
		return nil, err
	}

	tracked := make(map[string]struct{}, len(s.tickers))
	for _, t := range s.tickers {
		tracked[t] = struct{}{}
	}

	var entries []core.KBEntry
	for _, item := range items {
		ticker := core.TickerMacro
		for _, t := range item.Tickers {
			if _, ok := tracked[t]; ok {
				ticker = t
				break
			}
		}

		content := strings.TrimSpace(item.Title)
		if item.Summary != "" {
			content += ". " + strings.TrimSpace(item.Summary)
		}

		score := item.Sentiment
		entries = append(entries, core.KBEntry{
			TS:             item.Published.UTC(),
			Ticker:         ticker,
			Source:         item.Source,
			Content:        content,
			EventType:      core.EventNews,
			Importance:     core.ImportanceMedium,
			Region:         core.RegionUSA,
			Link:           item.URL,
			SentimentScore: &score,
		})
	}
	return entries, nil
}
