package risk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePortfolio struct {
	total      float64
	inTicker   float64
	positions  []store.PortfolioRow
	realized   float64
	unrealized float64
}

func (f *fakePortfolio) Exposure(ctx context.Context, ticker string) (float64, float64, error) {
	return f.total, f.inTicker, nil
}

func (f *fakePortfolio) OpenPositions(ctx context.Context) ([]store.PortfolioRow, error) {
	return f.positions, nil
}

func (f *fakePortfolio) RealizedPnLToday(ctx context.Context) (float64, error) {
	return f.realized, nil
}

func (f *fakePortfolio) UnrealizedPnL(ctx context.Context) (float64, error) {
	return f.unrealized, nil
}

type fakeSessions struct{ open bool }

func (f *fakeSessions) IsTradingHours(allowPremarket bool) bool { return f.open }

func manager(p *fakePortfolio, open bool) *Manager {
	return NewManager(DefaultLimits(), p, &fakeSessions{open: open}, zap.NewNop())
}

func TestCheck_AllPass(t *testing.T) {
	m := manager(&fakePortfolio{}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Reason)
}

func TestCheck_SizeBounds(t *testing.T) {
	m := manager(&fakePortfolio{}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 500})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "below minimum")

	res, err = m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 50_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "exceeds limit")
}

func TestCheck_PortfolioExposure(t *testing.T) {
	m := manager(&fakePortfolio{total: 78_000}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "portfolio exposure")
}

func TestCheck_TickerExposure(t *testing.T) {
	m := manager(&fakePortfolio{total: 20_000, inTicker: 16_000}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "MSFT exposure")
}

func TestCheck_PositionCount(t *testing.T) {
	positions := make([]store.PortfolioRow, 10)
	m := manager(&fakePortfolio{positions: positions}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "open positions")
}

func TestCheck_TradingHours(t *testing.T) {
	m := manager(&fakePortfolio{}, false)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "trading hours")
}

func TestCheck_DailyLoss(t *testing.T) {
	m := manager(&fakePortfolio{realized: -3_000, unrealized: -2_500}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Reason, "daily loss")
}

func TestCheck_ProfitNeverBlocks(t *testing.T) {
	m := manager(&fakePortfolio{realized: 8_000}, true)

	res, err := m.Check(context.Background(), Request{Ticker: "MSFT", PositionSizeUSD: 5_000})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestLoadLimits_MissingFileUsesDefaults(t *testing.T) {
	limits, err := LoadLimits(filepath.Join(t.TempDir(), "absent.json"), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), limits)
}

func TestLoadLimits_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_limits.json")
	content := `{"total_capital_usd": 250000, "max_positions_open": 4}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	limits, err := LoadLimits(path, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 250_000.0, limits.TotalCapitalUSD)
	assert.Equal(t, 4, limits.MaxPositionsOpen)
	// Untouched fields keep their defaults.
	assert.Equal(t, 80.0, limits.MaxPortfolioExposurePct)
}

func TestLoadLimits_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_limits.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err := LoadLimits(path, zap.NewNop())
	assert.Error(t, err)
}
