package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/risk"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePortfolio struct {
	cash      float64
	positions []store.PortfolioRow
	prices    map[string]float64
	trades    []store.TradeRow
	bars      []store.QuoteRow
	inserted  []core.KBEntry
	nextID    int64
}

func (f *fakePortfolio) Cash(ctx context.Context) (float64, error) { return f.cash, nil }

func (f *fakePortfolio) OpenPositions(ctx context.Context) ([]store.PortfolioRow, error) {
	return f.positions, nil
}

func (f *fakePortfolio) LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	if p, ok := f.prices[ticker]; ok {
		return p, nil
	}
	return 0, core.ErrNoData
}

func (f *fakePortfolio) Trades(ctx context.Context, limit int, ticker string) ([]store.TradeRow, error) {
	var out []store.TradeRow
	for _, t := range f.trades {
		if ticker != "" && t.Ticker != ticker {
			continue
		}
		out = append(out, t)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakePortfolio) LastBars(ctx context.Context, ticker string, n int, asOf time.Time) ([]store.QuoteRow, error) {
	if len(f.bars) > n {
		return f.bars[:n], nil
	}
	return f.bars, nil
}

func (f *fakePortfolio) InsertEntry(ctx context.Context, e core.KBEntry) (int64, bool, error) {
	f.nextID++
	e.ID = f.nextID
	f.inserted = append(f.inserted, e)
	return e.ID, true, nil
}

type fakeAnalyzer struct {
	results map[string]*analyst.Result
	lastLLM bool
}

func (f *fakeAnalyzer) AnalyzeWithOptions(ctx context.Context, ticker string, useLLM bool) (*analyst.Result, error) {
	f.lastLLM = useLLM
	if r, ok := f.results[ticker]; ok {
		return r, nil
	}
	return &analyst.Result{Ticker: ticker, Decision: core.DecisionHold, Regime: "Neutral"}, nil
}

type fakeExecutor struct {
	applied []string
	trade   *store.TradeRow
	verdict *risk.Result
}

func (f *fakeExecutor) Apply(ctx context.Context, result *analyst.Result) (*store.TradeRow, *risk.Result, error) {
	f.applied = append(f.applied, result.Ticker)
	return f.trade, f.verdict, nil
}

func (f *fakeExecutor) ApplyExitRules(ctx context.Context) ([]store.TradeRow, error) {
	return nil, nil
}

func newTestServer(p *fakePortfolio, a *fakeAnalyzer, e *fakeExecutor) *Server {
	return NewServer(Config{Host: "127.0.0.1", Port: 0}, p, a, e, nil, zap.NewNop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func dataOf(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestHandlePortfolio(t *testing.T) {
	p := &fakePortfolio{
		cash: 90_000,
		positions: []store.PortfolioRow{
			{Ticker: "MSFT", Quantity: 10, AvgEntryPrice: 350},
		},
		prices: map[string]float64{"MSFT": 360},
	}
	s := newTestServer(p, &fakeAnalyzer{}, &fakeExecutor{})

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataOf(t, rec)
	assert.Equal(t, 90_000.0, data["cash"])
	positions := data["positions"].([]any)
	require.Len(t, positions, 1)
	pos := positions[0].(map[string]any)
	assert.Equal(t, 360.0, pos["last_price"])
	assert.Equal(t, 100.0, pos["unrealized_pnl"])
}

func TestHandleQuotes(t *testing.T) {
	p := &fakePortfolio{bars: []store.QuoteRow{
		{Ticker: "MSFT", Close: 350}, {Ticker: "MSFT", Close: 348},
	}}
	s := newTestServer(p, &fakeAnalyzer{}, &fakeExecutor{})

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/quotes/MSFT?days=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []store.QuoteRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data, 1)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/quotes/MSFT?days=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAnalyze(t *testing.T) {
	a := &fakeAnalyzer{results: map[string]*analyst.Result{
		"MSFT": {Ticker: "MSFT", Decision: core.DecisionStrongBuy, Regime: "Momentum"},
	}}
	s := newTestServer(&fakePortfolio{}, a, &fakeExecutor{})

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/analyze",
		map[string]any{"ticker": "MSFT", "use_llm": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, a.lastLLM)

	data := dataOf(t, rec)
	assert.Equal(t, "STRONG_BUY", data["decision"])
	assert.Equal(t, "Momentum", data["regime"])

	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleExecute(t *testing.T) {
	trade := &store.TradeRow{Ticker: "MSFT", Side: "BUY", Quantity: 10}
	e := &fakeExecutor{trade: trade, verdict: &risk.Result{Allowed: true}}
	s := newTestServer(&fakePortfolio{}, &fakeAnalyzer{}, e)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute",
		map[string]any{"tickers": []string{"MSFT", "TER"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"MSFT", "TER"}, e.applied)

	data := dataOf(t, rec)
	trades := data["trades"].([]any)
	assert.Len(t, trades, 2)
}

func TestHandleExecute_RiskRejection(t *testing.T) {
	e := &fakeExecutor{verdict: &risk.Result{Allowed: false, Reason: "daily loss at limit"}}
	s := newTestServer(&fakePortfolio{}, &fakeAnalyzer{}, e)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/execute",
		map[string]any{"tickers": []string{"MSFT"}})
	require.Equal(t, http.StatusOK, rec.Code)

	data := dataOf(t, rec)
	rejected := data["rejected"].(map[string]any)
	assert.Equal(t, "daily loss at limit", rejected["MSFT"])
}

func TestHandleNews(t *testing.T) {
	p := &fakePortfolio{}
	s := newTestServer(p, &fakeAnalyzer{}, &fakeExecutor{})

	score := 0.8
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/news", map[string]any{
		"ticker": "MSFT", "source": "operator", "content": "manual note", "sentiment_score": score,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	data := dataOf(t, rec)
	assert.Equal(t, 1.0, data["id"])
	require.Len(t, p.inserted, 1)
	assert.Equal(t, core.EventManual, p.inserted[0].EventType)
	require.NotNil(t, p.inserted[0].SentimentScore)
	assert.Equal(t, 0.8, *p.inserted[0].SentimentScore)

	// Scores outside [0,1] are rejected.
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/news", map[string]any{
		"ticker": "MSFT", "content": "bad score", "sentiment_score": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrades(t *testing.T) {
	p := &fakePortfolio{trades: []store.TradeRow{
		{Ticker: "MSFT", Side: "BUY"},
		{Ticker: "TER", Side: "SELL"},
	}}
	s := newTestServer(p, &fakeAnalyzer{}, &fakeExecutor{})

	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/trades?ticker=TER", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data []store.TradeRow `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "TER", envelope.Data[0].Ticker)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&fakePortfolio{}, &fakeAnalyzer{}, &fakeExecutor{})
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
