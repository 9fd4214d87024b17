package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func quoteRow(ticker string, date time.Time, close float64) *store.QuoteRow {
	return &store.QuoteRow{Ticker: ticker, Date: date, Close: close}
}

func TestComputeOutcome_Positive(t *testing.T) {
	eventDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	afterDate := eventDate.AddDate(0, 0, 7)
	sentiment := 0.80

	atEvent := quoteRow("MSFT", eventDate, 300)
	after := quoteRow("MSFT", afterDate, 315)
	window := []store.QuoteRow{
		*quoteRow("MSFT", eventDate.AddDate(0, 0, 2), 310),
		*quoteRow("MSFT", eventDate.AddDate(0, 0, 4), 295),
		*after,
	}

	out := ComputeOutcome(atEvent, after, window, &sentiment, 7)

	assert.InDelta(t, 5.0, out.PriceChangePct, 0.01)
	assert.Equal(t, core.OutcomePositive, out.Outcome)
	assert.InDelta(t, 5.0, out.MaxUpPct, 0.01)
	assert.InDelta(t, -5.0/3.0, out.MaxDownPct, 0.01)
	require.NotNil(t, out.SentimentMatch)
	assert.True(t, *out.SentimentMatch, "positive sentiment matched positive move")
	assert.Equal(t, 7, out.DaysAfter)
}

func TestComputeOutcome_NegativeMismatch(t *testing.T) {
	eventDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	sentiment := 0.9

	out := ComputeOutcome(
		quoteRow("TER", eventDate, 100),
		quoteRow("TER", eventDate.AddDate(0, 0, 7), 95),
		nil, &sentiment, 7)

	assert.Equal(t, core.OutcomeNegative, out.Outcome)
	require.NotNil(t, out.SentimentMatch)
	assert.False(t, *out.SentimentMatch)
}

func TestComputeOutcome_NeutralBand(t *testing.T) {
	eventDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	out := ComputeOutcome(
		quoteRow("MU", eventDate, 100),
		quoteRow("MU", eventDate.AddDate(0, 0, 7), 101),
		nil, nil, 7)

	assert.Equal(t, core.OutcomeNeutral, out.Outcome)
	assert.Nil(t, out.SentimentMatch, "no sentiment means no match flag")
}

type fakeOutcomeKB struct {
	events  []core.KBEntry
	updates map[int64]store.EnrichmentUpdate
}

func (f *fakeOutcomeKB) RipeEvents(ctx context.Context, daysAfter, limit int) ([]core.KBEntry, error) {
	return f.events, nil
}

func (f *fakeOutcomeKB) UpdateEnrichment(ctx context.Context, id int64, u store.EnrichmentUpdate) error {
	if f.updates == nil {
		f.updates = make(map[int64]store.EnrichmentUpdate)
	}
	f.updates[id] = u
	return nil
}

type fakeOutcomeQuotes struct {
	rows map[string][]store.QuoteRow // ticker -> ascending by date
}

func (f *fakeOutcomeQuotes) FirstQuoteOnOrAfter(ctx context.Context, ticker string, date time.Time) (*store.QuoteRow, error) {
	for _, q := range f.rows[ticker] {
		if !q.Date.Before(date) {
			row := q
			return &row, nil
		}
	}
	return nil, core.ErrNoData
}

func (f *fakeOutcomeQuotes) QuotesBetween(ctx context.Context, ticker string, from, to time.Time) ([]store.QuoteRow, error) {
	var out []store.QuoteRow
	for _, q := range f.rows[ticker] {
		if q.Date.After(from) && !q.Date.After(to) {
			out = append(out, q)
		}
	}
	return out, nil
}

func TestAnalyzeRipeEvents(t *testing.T) {
	eventTS := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	sentiment := 0.80
	kb := &fakeOutcomeKB{events: []core.KBEntry{
		{ID: 1, TS: eventTS, Ticker: "MSFT", SentimentScore: &sentiment},
		{ID: 2, TS: eventTS, Ticker: "NODATA"},
	}}
	quotes := &fakeOutcomeQuotes{rows: map[string][]store.QuoteRow{
		"MSFT": {
			*quoteRow("MSFT", time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 300),
			*quoteRow("MSFT", time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), 315),
		},
	}}

	analyzer := NewOutcomeAnalyzer(kb, quotes, zap.NewNop())
	analyzed, err := analyzer.AnalyzeRipeEvents(context.Background(), 7, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzed)

	// Event with quotes gets an outcome; the one without is skipped.
	update, ok := kb.updates[1]
	require.True(t, ok)
	require.NotNil(t, update.Outcome)
	assert.InDelta(t, 5.0, update.Outcome.PriceChangePct, 0.01)
	assert.Equal(t, core.OutcomePositive, update.Outcome.Outcome)
	require.NotNil(t, update.Outcome.SentimentMatch)
	assert.True(t, *update.Outcome.SentimentMatch)

	_, touched := kb.updates[2]
	assert.False(t, touched, "event without quotes must stay NULL")
}
