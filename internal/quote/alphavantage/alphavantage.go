// Package alphavantage implements the RSI provider plus the raw feeds
// (news-with-sentiment, earnings calendar) consumed by the news fetchers.
package alphavantage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
)

const baseURL = "https://www.alphavantage.co/query"

// Client talks to the Alpha Vantage HTTP API.
type Client struct {
	apiKey string
	client *http.Client
}

// New creates a client. The API key is required.
func New(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key required")
	}
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// GetRSI returns the latest daily RSI(14) for a ticker.
func (c *Client) GetRSI(ctx context.Context, ticker string) (float64, error) {
	params := url.Values{
		"function":    {"RSI"},
		"symbol":      {ticker},
		"interval":    {"daily"},
		"time_period": {"14"},
		"series_type": {"close"},
		"apikey":      {c.apiKey},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return 0, err
	}

	var payload struct {
		Series map[string]struct {
			RSI string `json:"RSI"`
		} `json:"Technical Analysis: RSI"`
		Note         string `json:"Note"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding RSI response: %w", err))
	}
	if payload.ErrorMessage != "" {
		return 0, core.WrapError(core.ErrProviderFailed, fmt.Errorf("feed error: %s", payload.ErrorMessage))
	}
	if payload.Note != "" {
		return 0, core.WrapError(core.ErrProviderTimeout, fmt.Errorf("rate limited: %s", payload.Note))
	}
	if len(payload.Series) == 0 {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no RSI series for %s", ticker))
	}

	dates := make([]string, 0, len(payload.Series))
	for d := range payload.Series {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	latest := payload.Series[dates[len(dates)-1]]

	value, err := strconv.ParseFloat(latest.RSI, 64)
	if err != nil {
		return 0, core.WrapError(core.ErrProviderFailed, fmt.Errorf("parsing RSI value: %w", err))
	}
	return value, nil
}

// NewsItem is one article from the NEWS_SENTIMENT feed. Sentiment arrives on
// the centered [-1,1] scale and is converted to [0,1] here.
type NewsItem struct {
	Title     string
	Summary   string
	Source    string
	URL       string
	Published time.Time
	Tickers   []string
	Sentiment float64 // [0,1]
}

// NewsSentiment fetches pre-scored news for a comma list of tickers.
func (c *Client) NewsSentiment(ctx context.Context, tickers []string) ([]NewsItem, error) {
	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {strings.Join(tickers, ",")},
		"limit":    {"50"},
		"apikey":   {c.apiKey},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Feed []struct {
			Title                 string  `json:"title"`
			Summary               string  `json:"summary"`
			Source                string  `json:"source"`
			URL                   string  `json:"url"`
			TimePublished         string  `json:"time_published"`
			OverallSentimentScore float64 `json:"overall_sentiment_score"`
			TickerSentiment       []struct {
				Ticker string `json:"ticker"`
			} `json:"ticker_sentiment"`
		} `json:"feed"`
		Note         string `json:"Note"`
		ErrorMessage string `json:"Error Message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding news response: %w", err))
	}
	if payload.ErrorMessage != "" {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("feed error: %s", payload.ErrorMessage))
	}
	if payload.Note != "" {
		return nil, core.WrapError(core.ErrProviderTimeout, fmt.Errorf("rate limited: %s", payload.Note))
	}

	items := make([]NewsItem, 0, len(payload.Feed))
	for _, f := range payload.Feed {
		published, err := time.Parse("20060102T150405", f.TimePublished)
		if err != nil {
			published = time.Now().UTC()
		}
		var symbols []string
		for _, ts := range f.TickerSentiment {
			symbols = append(symbols, ts.Ticker)
		}
		items = append(items, NewsItem{
			Title:     f.Title,
			Summary:   f.Summary,
			Source:    f.Source,
			URL:       f.URL,
			Published: published,
			Tickers:   symbols,
			Sentiment: core.ClampSentiment(core.UncenterSentiment(f.OverallSentimentScore)),
		})
	}
	return items, nil
}

// EarningsEvent is one row of the earnings calendar CSV.
type EarningsEvent struct {
	Symbol     string
	ReportDate time.Time
	Estimate   *float64
	Currency   string
}

// EarningsCalendar fetches the upcoming earnings calendar (CSV endpoint).
func (c *Client) EarningsCalendar(ctx context.Context) ([]EarningsEvent, error) {
	params := url.Values{
		"function": {"EARNINGS_CALENDAR"},
		"horizon":  {"3month"},
		"apikey":   {c.apiKey},
	}

	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	return ParseEarningsCSV(strings.NewReader(string(body)))
}

// ParseEarningsCSV decodes the calendar CSV. Rows with an unparsable report
// date are skipped, never fatal.
func ParseEarningsCSV(r io.Reader) ([]EarningsEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("reading CSV header: %w", err))
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	var events []EarningsEvent
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, core.WrapError(core.ErrProviderFailed, fmt.Errorf("reading CSV row: %w", err))
		}

		field := func(name string) string {
			if i, ok := col[name]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}

		reportDate, err := time.Parse("2006-01-02", field("reportDate"))
		if err != nil {
			continue
		}

		ev := EarningsEvent{
			Symbol:     strings.ToUpper(field("symbol")),
			ReportDate: reportDate,
			Currency:   field("currency"),
		}
		if raw := field("estimate"); raw != "" && raw != "None" {
			if est, err := strconv.ParseFloat(raw, 64); err == nil {
				ev.Estimate = &est
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return err
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return core.WrapError(core.ErrProviderFailed, fmt.Errorf("request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp.StatusCode,
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
