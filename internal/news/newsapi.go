package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
	"golang.org/x/time/rate"
)

const newsAPIBaseURL = "https://newsapi.org/v2/everything"

// NewsAPIFetcher queries a generic news aggregator for macro headlines with a
// fixed query and source list, rate-limited to stay inside the daily quota.
type NewsAPIFetcher struct {
	apiKey  string
	query   string
	sources string
	limiter *rate.Limiter
	client  *http.Client
	clock   core.Clock
}

// NewNewsAPIFetcher creates the fetcher. dailyQuota bounds requests per day.
func NewNewsAPIFetcher(apiKey, query, sources string, dailyQuota int) (*NewsAPIFetcher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	if query == "" {
		query = "federal reserve OR interest rates OR inflation"
	}
	if sources == "" {
		sources = "reuters,bloomberg,financial-times"
	}
	if dailyQuota <= 0 {
		dailyQuota = 100
	}

	perRequest := 24 * time.Hour / time.Duration(dailyQuota)
	return &NewsAPIFetcher{
		apiKey:  apiKey,
		query:   query,
		sources: sources,
		limiter: rate.NewLimiter(rate.Every(perRequest), 1),
		client:  &http.Client{Timeout: 30 * time.Second},
		clock:   core.SystemClock(),
	}, nil
}

func (n *NewsAPIFetcher) Name() string { return "newsapi" }

// Fetch returns recent macro articles. When the quota limiter has no token
// the call is skipped silently — the next scheduled run will catch up.
func (n *NewsAPIFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	if !n.limiter.Allow() {
		return nil, nil
	}

	params := url.Values{
		"q":        {n.query},
		"sources":  {n.sources},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {"50"},
		"from":     {n.clock.Now().AddDate(0, 0, -1).Format("2006-01-02")},
		"apiKey":   {n.apiKey},
	}

	var payload struct {
		Status   string `json:"status"`
		Articles []struct {
			Source struct {
				Name string `json:"name"`
			} `json:"source"`
			Title       string    `json:"title"`
			Description string    `json:"description"`
			URL         string    `json:"url"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"articles"`
	}
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, newsAPIBaseURL+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := n.client.Do(req)
		if err != nil {
			return core.WrapError(core.ErrProviderFailed, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp.StatusCode,
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return core.WrapError(core.ErrProviderFailed, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if payload.Status != "ok" {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("aggregator status %q", payload.Status))
	}

	seen := make(map[string]struct{}, len(payload.Articles))
	entries := make([]core.KBEntry, 0, len(payload.Articles))
	for _, a := range payload.Articles {
		if a.URL != "" {
			if _, dup := seen[a.URL]; dup {
				continue
			}
			seen[a.URL] = struct{}{}
		}

		content := strings.TrimSpace(a.Title)
		if a.Description != "" {
			content += ". " + strings.TrimSpace(a.Description)
		}
		entries = append(entries, core.KBEntry{
			TS:         a.PublishedAt.UTC(),
			Ticker:     core.TickerMacro,
			Source:     a.Source.Name,
			Content:    content,
			EventType:  core.EventNews,
			Importance: core.ImportanceMedium,
			Region:     core.RegionUSA,
			Link:       a.URL,
		})
	}
	return entries, nil
}
