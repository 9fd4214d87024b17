// Package session tracks the NYSE trading session: phase, proximity to the
// open/close, holidays, and the pre-market context for a ticker. It is the
// only component allowed to ask the quote capability for off-hours data.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/quote"
)

// Phase of the NYSE session.
type Phase string

const (
	PhasePreMarket  Phase = "PRE_MARKET"
	PhaseRegular    Phase = "REGULAR"
	PhasePostMarket Phase = "POST_MARKET"
	PhaseClosed     Phase = "CLOSED"
)

// Session boundaries in Eastern Time.
var (
	preMarketStart = clockTime{4, 0}
	marketOpen     = clockTime{9, 30}
	marketClose    = clockTime{16, 0}
	postMarketEnd  = clockTime{20, 0}
)

// nearWindow is the special-regime span around the open and close.
const nearWindow = 60 * time.Minute

type clockTime struct{ hour, minute int }

func (c clockTime) on(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.hour, c.minute, 0, 0, loc)
}

// Context describes the session at one instant.
type Context struct {
	Phase            Phase
	ET               time.Time
	NearOpen         bool
	NearClose        bool
	Holiday          bool
	DayBeforeHoliday bool
	DayAfterHoliday  bool
	MinutesUntilOpen int // meaningful in PRE_MARKET, otherwise 0
}

// Oracle answers session questions against an injected clock.
type Oracle struct {
	clock    core.Clock
	loc      *time.Location
	provider quote.Provider
	holidays map[int]map[time.Time]struct{}
}

// NewOracle creates an oracle. The provider may be nil when pre-market
// context is not needed.
func NewOracle(clock core.Clock, provider quote.Provider) (*Oracle, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("loading exchange timezone: %w", err)
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &Oracle{
		clock:    clock,
		loc:      loc,
		provider: provider,
		holidays: make(map[int]map[time.Time]struct{}),
	}, nil
}

// Current returns the session context for the oracle's clock.
func (o *Oracle) Current() Context {
	return o.At(o.clock.Now())
}

// At returns the session context for an arbitrary instant.
func (o *Oracle) At(t time.Time) Context {
	et := t.In(o.loc)
	day := time.Date(et.Year(), et.Month(), et.Day(), 0, 0, 0, 0, o.loc)

	c := Context{ET: et}
	c.Holiday = o.isHoliday(day)
	c.DayBeforeHoliday = o.isClosedDay(day.AddDate(0, 0, 1))
	c.DayAfterHoliday = o.isClosedDay(day.AddDate(0, 0, -1))

	if isWeekend(day) || c.Holiday {
		c.Phase = PhaseClosed
		return c
	}

	open := marketOpen.on(day, o.loc)
	closeT := marketClose.on(day, o.loc)

	switch {
	case et.Before(preMarketStart.on(day, o.loc)):
		c.Phase = PhaseClosed
	case et.Before(open):
		c.Phase = PhasePreMarket
		c.MinutesUntilOpen = int(open.Sub(et).Minutes())
	case et.Before(closeT):
		c.Phase = PhaseRegular
		c.NearOpen = et.Sub(open) < nearWindow
		c.NearClose = closeT.Sub(et) <= nearWindow
	case et.Before(postMarketEnd.on(day, o.loc)):
		c.Phase = PhasePostMarket
	default:
		c.Phase = PhaseClosed
	}
	return c
}

// IsTradingHours reports whether trading is allowed now. allowPremarket
// extends the window into the pre-market phase.
func (o *Oracle) IsTradingHours(allowPremarket bool) bool {
	c := o.Current()
	if c.Phase == PhaseRegular {
		return true
	}
	return allowPremarket && c.Phase == PhasePreMarket
}

// PremarketContext reports the off-hours price and gap for a ticker. Call it
// in the PRE_MARKET phase; outside it the gap is still computed but reflects
// the latest off-hours trade.
type PremarketContext struct {
	Ticker           string
	PrevClose        float64
	PremarketLast    float64
	GapPct           float64
	MinutesUntilOpen int
	Err              string
}

// Premarket fetches the context via the quote capability.
func (o *Oracle) Premarket(ctx context.Context, ticker string) (*PremarketContext, error) {
	out := &PremarketContext{
		Ticker:           ticker,
		MinutesUntilOpen: o.Current().MinutesUntilOpen,
	}
	if o.provider == nil {
		out.Err = "no quote provider configured"
		return out, core.ErrNoData
	}

	pm, err := o.provider.GetPremarket(ctx, ticker)
	if err != nil {
		out.Err = err.Error()
		return out, err
	}

	out.PrevClose = pm.PrevClose
	out.PremarketLast = pm.Last
	if pm.PrevClose > 0 {
		out.GapPct = (pm.Last/pm.PrevClose - 1) * 100
	}
	return out, nil
}

func isWeekend(day time.Time) bool {
	wd := day.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (o *Oracle) isClosedDay(day time.Time) bool {
	return isWeekend(day) || o.isHoliday(day)
}

func (o *Oracle) isHoliday(day time.Time) bool {
	year := day.Year()
	set, ok := o.holidays[year]
	if !ok {
		set = nyseHolidays(year, o.loc)
		o.holidays[year] = set
	}
	_, holiday := set[day]
	return holiday
}

// goodFridays holds the dates that have no simple weekday rule.
var goodFridays = map[int][2]int{
	2024: {3, 29},
	2025: {4, 18},
	2026: {4, 3},
	2027: {3, 26},
}

// nyseHolidays returns the full-day closures for a year (early closes are
// treated as regular days).
func nyseHolidays(year int, loc *time.Location) map[time.Time]struct{} {
	set := make(map[time.Time]struct{})
	add := func(d time.Time) {
		if !isWeekend(d) {
			set[d] = struct{}{}
		}
	}

	// Fixed-date holidays
	add(time.Date(year, 1, 1, 0, 0, 0, 0, loc))   // New Year's Day
	add(time.Date(year, 6, 19, 0, 0, 0, 0, loc))  // Juneteenth
	add(time.Date(year, 7, 4, 0, 0, 0, 0, loc))   // Independence Day
	add(time.Date(year, 12, 25, 0, 0, 0, 0, loc)) // Christmas

	add(nthWeekday(year, time.January, time.Monday, 3, loc))    // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3, loc))   // Presidents Day
	add(lastWeekday(year, time.May, time.Monday, loc))          // Memorial Day
	add(nthWeekday(year, time.September, time.Monday, 1, loc))  // Labor Day
	add(nthWeekday(year, time.November, time.Thursday, 4, loc)) // Thanksgiving

	if gf, ok := goodFridays[year]; ok {
		add(time.Date(year, time.Month(gf[0]), gf[1], 0, 0, 0, 0, loc))
	}
	return set
}

func nthWeekday(year int, month time.Month, weekday time.Weekday, n int, loc *time.Location) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

func lastWeekday(year int, month time.Month, weekday time.Weekday, loc *time.Location) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, loc).AddDate(0, 0, -1)
	for d.Weekday() != weekday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
