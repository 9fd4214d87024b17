// Package risk enforces the per-position, per-portfolio and daily limits
// that gate every BUY. Limits live in a local JSON file that stays out of
// version control; a conservative default applies when the file is missing.
package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// Limits holds the file-backed risk configuration.
type Limits struct {
	TotalCapitalUSD            float64 `json:"total_capital_usd"`
	MaxPositionSizeUSD         float64 `json:"max_position_size_usd"`
	MinPositionSizeUSD         float64 `json:"min_position_size_usd"`
	MaxPortfolioExposurePct    float64 `json:"max_portfolio_exposure_percent"`
	MaxSingleTickerExposurePct float64 `json:"max_single_ticker_exposure_percent"`
	MaxPositionsOpen           int     `json:"max_positions_open"`
	MaxDailyLossUSD            float64 `json:"max_daily_loss_usd"`
	MaxDailyLossPct            float64 `json:"max_daily_loss_percent"`
	CommissionRate             float64 `json:"commission_rate"`
	AllowPremarket             bool    `json:"allow_premarket"`
	StopLossPct                float64 `json:"stop_loss_percent"`
	TakeProfitPct              float64 `json:"take_profit_percent"`
}

// DefaultLimits returns the conservative defaults used when no file exists.
func DefaultLimits() Limits {
	return Limits{
		TotalCapitalUSD:            100_000,
		MaxPositionSizeUSD:         10_000,
		MinPositionSizeUSD:         1_000,
		MaxPortfolioExposurePct:    80,
		MaxSingleTickerExposurePct: 20,
		MaxPositionsOpen:           10,
		MaxDailyLossUSD:            5_000,
		MaxDailyLossPct:            5,
		CommissionRate:             0.001,
		StopLossPct:                5,
		TakeProfitPct:              10,
	}
}

// LoadLimits reads the JSON limits file. A missing file yields the defaults;
// a malformed file is an error.
func LoadLimits(path string, log *zap.Logger) (Limits, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path == "" {
		return DefaultLimits(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Warn("risk limits file missing, using conservative defaults", zap.String("path", path))
		return DefaultLimits(), nil
	}
	if err != nil {
		return Limits{}, fmt.Errorf("reading risk limits: %w", err)
	}

	limits := DefaultLimits()
	if err := json.Unmarshal(data, &limits); err != nil {
		return Limits{}, fmt.Errorf("parsing risk limits: %w", err)
	}
	return limits, nil
}

// Portfolio is the portfolio surface the checks need. *store.Store
// satisfies this.
type Portfolio interface {
	Exposure(ctx context.Context, ticker string) (total, inTicker float64, err error)
	OpenPositions(ctx context.Context) ([]store.PortfolioRow, error)
	RealizedPnLToday(ctx context.Context) (float64, error)
	UnrealizedPnL(ctx context.Context) (float64, error)
}

// Sessions answers whether trading is currently allowed.
type Sessions interface {
	IsTradingHours(allowPremarket bool) bool
}

// Request describes a proposed BUY.
type Request struct {
	Ticker          string
	PositionSizeUSD float64
}

// Result is the verdict; Reason is set when the buy is rejected.
type Result struct {
	Allowed bool
	Reason  string
}

func rejected(format string, args ...any) Result {
	return Result{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Manager runs the checks.
type Manager struct {
	limits    Limits
	portfolio Portfolio
	sessions  Sessions
	logger    *zap.Logger
}

// NewManager creates a risk manager.
func NewManager(limits Limits, portfolio Portfolio, sessions Sessions, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{limits: limits, portfolio: portfolio, sessions: sessions, logger: log}
}

// Limits returns the active limits.
func (m *Manager) Limits() Limits { return m.limits }

// Check validates a proposed BUY against all limits. Every check must pass;
// the first failure is returned as the reason and no state is touched.
func (m *Manager) Check(ctx context.Context, req Request) (Result, error) {
	l := m.limits

	// 1. Position size bounds
	if req.PositionSizeUSD < l.MinPositionSizeUSD {
		return rejected("position size %.2f USD below minimum %.2f USD",
			req.PositionSizeUSD, l.MinPositionSizeUSD), nil
	}
	if req.PositionSizeUSD > l.MaxPositionSizeUSD {
		return rejected("position size %.2f USD exceeds limit %.2f USD",
			req.PositionSizeUSD, l.MaxPositionSizeUSD), nil
	}

	totalExposure, tickerExposure, err := m.portfolio.Exposure(ctx, req.Ticker)
	if err != nil {
		return Result{}, err
	}

	// 2. Portfolio exposure
	if pct := (totalExposure + req.PositionSizeUSD) / l.TotalCapitalUSD * 100; pct > l.MaxPortfolioExposurePct {
		return rejected("portfolio exposure %.2f%% would exceed limit %.2f%%",
			pct, l.MaxPortfolioExposurePct), nil
	}

	// 3. Single-ticker exposure
	if pct := (tickerExposure + req.PositionSizeUSD) / l.TotalCapitalUSD * 100; pct > l.MaxSingleTickerExposurePct {
		return rejected("%s exposure %.2f%% would exceed limit %.2f%%",
			req.Ticker, pct, l.MaxSingleTickerExposurePct), nil
	}

	// 4. Open position count
	positions, err := m.portfolio.OpenPositions(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(positions) >= l.MaxPositionsOpen {
		return rejected("open positions %d at limit %d", len(positions), l.MaxPositionsOpen), nil
	}

	// 5. Trading hours
	if m.sessions != nil && !m.sessions.IsTradingHours(l.AllowPremarket) {
		return rejected("outside exchange trading hours"), nil
	}

	// 6. Daily loss
	realized, err := m.portfolio.RealizedPnLToday(ctx)
	if err != nil {
		return Result{}, err
	}
	unrealized, err := m.portfolio.UnrealizedPnL(ctx)
	if err != nil {
		return Result{}, err
	}
	loss := -(realized + unrealized)
	if loss > 0 {
		if loss >= l.MaxDailyLossUSD {
			return rejected("daily loss %.2f USD at limit %.2f USD", loss, l.MaxDailyLossUSD), nil
		}
		if pct := loss / l.TotalCapitalUSD * 100; pct >= l.MaxDailyLossPct {
			return rejected("daily loss %.2f%% at limit %.2f%%", pct, l.MaxDailyLossPct), nil
		}
	}

	return Result{Allowed: true}, nil
}
