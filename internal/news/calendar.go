package news

import (
	"context"
	"fmt"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/quote/alphavantage"
)

// EarningsCalendar is the CSV calendar source. *alphavantage.Client
// satisfies this.
type EarningsCalendar interface {
	EarningsCalendar(ctx context.Context) ([]alphavantage.EarningsEvent, error)
}

// CalendarFetcher maps upcoming earnings reports for tracked tickers to
// EARNINGS entries.
type CalendarFetcher struct {
	calendar EarningsCalendar
	tickers  map[string]struct{}
}

// NewCalendarFetcher creates the fetcher; only events for the given tickers
// are kept.
func NewCalendarFetcher(calendar EarningsCalendar, tickers []string) *CalendarFetcher {
	set := make(map[string]struct{}, len(tickers))
	for _, t := range tickers {
		set[t] = struct{}{}
	}
	return &CalendarFetcher{calendar: calendar, tickers: set}
}

func (c *CalendarFetcher) Name() string { return "earnings_calendar" }

// Fetch returns one entry per upcoming report of a tracked ticker.
func (c *CalendarFetcher) Fetch(ctx context.Context) ([]core.KBEntry, error) {
	events, err := c.calendar.EarningsCalendar(ctx)
	if err != nil {
		return nil, err
	}

	var entries []core.KBEntry
	for _, ev := range events {
		if _, tracked := c.tickers[ev.Symbol]; !tracked {
			continue
		}

		content := fmt.Sprintf("%s earnings report scheduled for %s",
			ev.Symbol, ev.ReportDate.Format("2006-01-02"))
		if ev.Estimate != nil {
			content += fmt.Sprintf(", EPS estimate %.2f %s", *ev.Estimate, ev.Currency)
		}

		entries = append(entries, core.KBEntry{
			TS:         ev.ReportDate,
			Ticker:     ev.Symbol,
			Source:     c.Name(),
			Content:    content,
			EventType:  core.EventEarnings,
			Importance: core.ImportanceHigh,
			Region:     core.RegionUSA,
		})
	}
	return entries, nil
}
