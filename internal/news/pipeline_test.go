package news

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryInserter mimics the store's dedup semantics: (source, link) when the
// link is set, (ts, ticker, content) otherwise.
type memoryInserter struct {
	mu      sync.Mutex
	entries []core.KBEntry
	nextID  int64
}

func (m *memoryInserter) InsertEntry(ctx context.Context, e core.KBEntry) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.entries {
		if e.Link != "" && have.Source == e.Source && have.Link == e.Link {
			return have.ID, false, nil
		}
		if e.Link == "" && have.TS.Equal(e.TS) && have.Ticker == e.Ticker && have.Content == e.Content {
			return have.ID, false, nil
		}
	}
	m.nextID++
	e.ID = m.nextID
	m.entries = append(m.entries, e)
	return e.ID, true, nil
}

type stubFetcher struct {
	name    string
	entries []core.KBEntry
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubFetcher) Name() string { return s.name }

func (s *stubFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.entries, s.err
}

func entry(ticker, source, content, link string) core.KBEntry {
	return core.KBEntry{
		TS:        time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Ticker:    ticker,
		Source:    source,
		Content:   content,
		EventType: core.EventNews,
		Link:      link,
	}
}

func TestPipeline_MergesAllSources(t *testing.T) {
	ins := &memoryInserter{}
	p := NewPipeline(ins, zap.NewNop(), []Fetcher{
		&stubFetcher{name: "a", entries: []core.KBEntry{entry("MSFT", "a", "one", "https://a/1")}},
		&stubFetcher{name: "b", entries: []core.KBEntry{entry("TER", "b", "two", "https://b/2")}},
	})

	summary := p.Run(context.Background())
	assert.Equal(t, 2, summary.Total())
	assert.Equal(t, 1, summary.Inserted["a"])
	assert.Equal(t, 1, summary.Inserted["b"])
	assert.Empty(t, summary.Errors)
	assert.Len(t, ins.entries, 2)
}

func TestPipeline_IdempotentIngestion(t *testing.T) {
	ins := &memoryInserter{}
	fetchers := []Fetcher{
		&stubFetcher{name: "rss", entries: []core.KBEntry{
			entry("US_MACRO", "rss", "fed statement", "https://fed/1"),
			entry("US_MACRO", "rss", "fed speech", "https://fed/2"),
		}},
	}

	p := NewPipeline(ins, zap.NewNop(), fetchers)
	first := p.Run(context.Background())
	second := p.Run(context.Background())

	// Ingesting the same output twice leaves the same entry set.
	assert.Equal(t, 2, first.Total())
	assert.Equal(t, 0, second.Total())
	assert.Equal(t, 2, second.Skipped["rss"])
	assert.Len(t, ins.entries, 2)
}

func TestPipeline_FetcherFailureIsolated(t *testing.T) {
	ins := &memoryInserter{}
	p := NewPipeline(ins, zap.NewNop(), []Fetcher{
		&stubFetcher{name: "broken", err: errors.New("connection refused")},
		&stubFetcher{name: "ok", entries: []core.KBEntry{entry("MSFT", "ok", "fine", "https://ok/1")}},
	})

	summary := p.Run(context.Background())
	assert.Equal(t, 1, summary.Total())
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, "broken", summary.Errors[0].Source)
}

func TestPipeline_StuckFetcherTimesOut(t *testing.T) {
	ins := &memoryInserter{}
	p := NewPipeline(ins, zap.NewNop(), []Fetcher{
		&stubFetcher{name: "stuck", delay: time.Minute},
		&stubFetcher{name: "fast", entries: []core.KBEntry{entry("TER", "fast", "quick", "")}},
	}, WithFetchTimeout(20*time.Millisecond))

	done := make(chan Summary, 1)
	go func() { done <- p.Run(context.Background()) }()

	select {
	case summary := <-done:
		assert.Equal(t, 1, summary.Total())
		require.Len(t, summary.Errors, 1)
		assert.Equal(t, "stuck", summary.Errors[0].Source)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline blocked past the fetcher deadline")
	}
}

func TestPipeline_WorkerPoolBounded(t *testing.T) {
	var mu sync.Mutex
	var active, peak int

	fetchers := make([]Fetcher, 8)
	for i := range fetchers {
		fetchers[i] = fetcherFunc(func(ctx context.Context) ([]core.KBEntry, error) {
			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			return nil, nil
		})
	}

	p := NewPipeline(&memoryInserter{}, zap.NewNop(), fetchers, WithWorkers(2))
	p.Run(context.Background())

	assert.LessOrEqual(t, peak, 2)
}

type fetcherFunc func(ctx context.Context) ([]core.KBEntry, error)

func (f fetcherFunc) Name() string { return "func" }

func (f fetcherFunc) Fetch(ctx context.Context) ([]core.KBEntry, error) { return f(ctx) }
