package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/retry"
)

const baseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// validSymbol matches feed symbols: AAPL, GBPUSD=X, GC=F, BTC-USD, ^VIX
var validSymbol = regexp.MustCompile(`^\^?[A-Za-z0-9]{1,12}([=-][A-Za-z]{1,4})?$`)

func validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol cannot be empty")
	}
	if len(symbol) > 20 {
		return fmt.Errorf("symbol too long: %s", symbol)
	}
	if !validSymbol.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format: %s", symbol)
	}
	return nil
}

// Yahoo implements the quote provider against the public chart API.
type Yahoo struct {
	client *http.Client
}

// New creates a new Yahoo provider.
func New() *Yahoo {
	return &Yahoo{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

// GetBars fetches daily bars for [from, to].
func (y *Yahoo) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]core.Bar, error) {
	if err := validateSymbol(ticker); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?interval=1d&period1=%d&period2=%d",
		baseURL, ticker, from.Unix(), to.Unix())

	result, err := y.fetchChart(ctx, url, ticker)
	if err != nil {
		return nil, err
	}

	r := result.Chart.Result[0]
	quotes := r.Indicators.Quote[0]

	bars := make([]core.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(quotes.Close) || quotes.Close[i] == nil {
			continue // skip missing data
		}
		var volume int64
		if i < len(quotes.Volume) && quotes.Volume[i] != nil {
			volume = int64(*quotes.Volume[i])
		}
		bars = append(bars, core.Bar{
			Ticker: ticker,
			Date:   time.Unix(int64(ts), 0).UTC().Truncate(24 * time.Hour),
			Close:  *quotes.Close[i],
			Volume: volume,
		})
	}
	return bars, nil
}

// GetPremarket fetches the current off-hours price with the previous regular
// close. Only the session oracle calls this.
func (y *Yahoo) GetPremarket(ctx context.Context, ticker string) (*core.Premarket, error) {
	if err := validateSymbol(ticker); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/%s?interval=1m&range=1d&includePrePost=true", baseURL, ticker)

	result, err := y.fetchChart(ctx, url, ticker)
	if err != nil {
		return nil, err
	}

	meta := result.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no premarket price for %s", ticker))
	}

	return &core.Premarket{
		Ticker:    ticker,
		Last:      meta.RegularMarketPrice,
		PrevClose: meta.ChartPreviousClose,
		Time:      time.Unix(int64(meta.RegularMarketTime), 0),
	}, nil
}

func (y *Yahoo) fetchChart(ctx context.Context, url, ticker string) (*chartResponse, error) {
	var result chartResponse
	err := retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; lse-trading)")

		// Transport errors keep their url.Error cause so the retry layer
		// sees them as transient.
		resp, err := y.client.Do(req)
		if err != nil {
			return core.WrapError(core.ErrProviderFailed, fmt.Errorf("fetching chart: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return retry.StatusError(resp.StatusCode,
				fmt.Errorf("unexpected status %d for %s", resp.StatusCode, ticker))
		}

		result = chartResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return core.WrapError(core.ErrProviderFailed, fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Chart.Error != nil {
		return nil, core.WrapError(core.ErrProviderFailed,
			fmt.Errorf("feed error: %s", result.Chart.Error.Description))
	}
	if len(result.Chart.Result) == 0 || len(result.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no data for symbol %s", ticker))
	}
	return &result, nil
}

// Chart API response types
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta       chartMeta  `json:"meta"`
	Timestamp  []int      `json:"timestamp"`
	Indicators indicators `json:"indicators"`
}

type chartMeta struct {
	Symbol             string  `json:"symbol"`
	RegularMarketPrice float64 `json:"regularMarketPrice"`
	ChartPreviousClose float64 `json:"chartPreviousClose"`
	RegularMarketTime  int     `json:"regularMarketTime"`
}

type indicators struct {
	Quote []quoteIndicator `json:"quote"`
}

type quoteIndicator struct {
	Close  []*float64 `json:"close"`
	Volume []*int     `json:"volume"`
}
