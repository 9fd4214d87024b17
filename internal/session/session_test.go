package session

import (
	"context"
	"testing"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustOracle(t *testing.T, at time.Time) *Oracle {
	t.Helper()
	o, err := NewOracle(core.FixedClock(at), nil)
	require.NoError(t, err)
	return o
}

func et(t *testing.T, year int, month time.Month, day, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func TestPhases_RegularTradingDay(t *testing.T) {
	// Wednesday 2025-03-19
	tests := []struct {
		hour, minute int
		want         Phase
	}{
		{3, 30, PhaseClosed},
		{8, 0, PhasePreMarket},
		{9, 29, PhasePreMarket},
		{9, 30, PhaseRegular},
		{12, 0, PhaseRegular},
		{15, 59, PhaseRegular},
		{16, 0, PhasePostMarket},
		{19, 0, PhasePostMarket},
		{21, 0, PhaseClosed},
	}

	for _, tt := range tests {
		o := mustOracle(t, et(t, 2025, 3, 19, tt.hour, tt.minute))
		assert.Equal(t, tt.want, o.Current().Phase, "%02d:%02d", tt.hour, tt.minute)
	}
}

func TestMinutesUntilOpen(t *testing.T) {
	o := mustOracle(t, et(t, 2025, 3, 19, 8, 30))
	c := o.Current()
	assert.Equal(t, PhasePreMarket, c.Phase)
	assert.Equal(t, 60, c.MinutesUntilOpen)
}

func TestWeekendClosed(t *testing.T) {
	o := mustOracle(t, et(t, 2025, 3, 22, 12, 0)) // Saturday noon
	assert.Equal(t, PhaseClosed, o.Current().Phase)
}

func TestHolidays(t *testing.T) {
	// Good Friday 2025 falls on April 18.
	o := mustOracle(t, et(t, 2025, 4, 18, 12, 0))
	c := o.Current()
	assert.Equal(t, PhaseClosed, c.Phase)
	assert.True(t, c.Holiday)

	// Thanksgiving 2025: Thursday November 27.
	o = mustOracle(t, et(t, 2025, 11, 27, 12, 0))
	assert.True(t, o.Current().Holiday)

	// The day before Thanksgiving is regular but flagged.
	o = mustOracle(t, et(t, 2025, 11, 26, 12, 0))
	c = o.Current()
	assert.Equal(t, PhaseRegular, c.Phase)
	assert.True(t, c.DayBeforeHoliday)
}

func TestNearOpenNearClose(t *testing.T) {
	o := mustOracle(t, et(t, 2025, 3, 19, 9, 45))
	c := o.Current()
	assert.True(t, c.NearOpen)
	assert.False(t, c.NearClose)

	o = mustOracle(t, et(t, 2025, 3, 19, 15, 30))
	c = o.Current()
	assert.False(t, c.NearOpen)
	assert.True(t, c.NearClose)
}

func TestIsTradingHours(t *testing.T) {
	regular := mustOracle(t, et(t, 2025, 3, 19, 12, 0))
	assert.True(t, regular.IsTradingHours(false))

	pre := mustOracle(t, et(t, 2025, 3, 19, 8, 0))
	assert.False(t, pre.IsTradingHours(false))
	assert.True(t, pre.IsTradingHours(true))
}

type stubQuotes struct {
	pm  *core.Premarket
	err error
}

func (s *stubQuotes) Name() string { return "stub" }

func (s *stubQuotes) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]core.Bar, error) {
	return nil, nil
}

func (s *stubQuotes) GetPremarket(ctx context.Context, ticker string) (*core.Premarket, error) {
	return s.pm, s.err
}

func TestPremarketContext_Gap(t *testing.T) {
	clock := core.FixedClock(et(t, 2025, 3, 19, 8, 30))
	o, err := NewOracle(clock, &stubQuotes{pm: &core.Premarket{
		Ticker:    "MSFT",
		Last:      360,
		PrevClose: 350,
	}})
	require.NoError(t, err)

	pc, err := o.Premarket(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 2.857, pc.GapPct, 0.01)
	assert.Equal(t, 60, pc.MinutesUntilOpen)
}

func TestPremarketContext_ProviderError(t *testing.T) {
	clock := core.FixedClock(et(t, 2025, 3, 19, 8, 30))
	o, err := NewOracle(clock, &stubQuotes{err: core.ErrProviderFailed})
	require.NoError(t, err)

	pc, err := o.Premarket(context.Background(), "MSFT")
	assert.Error(t, err)
	assert.NotEmpty(t, pc.Err)
}
