package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/indicator"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const (
	smaPeriod        = 5
	volatilityPeriod = 5
	rsiPeriod        = 14
)

// UpsertBars inserts the bars that are missing by (ticker, date) and reports
// how many rows were actually written. Reinsertion is a no-op, so overlapping
// provider windows are safe.
func (s *Store) UpsertBars(ctx context.Context, ticker string, bars []core.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	rows := make([]QuoteRow, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, QuoteRow{
			Date:   b.Date.Truncate(24 * time.Hour),
			Ticker: ticker,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "ticker"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, fmt.Errorf("upserting bars for %s: %w", ticker, res.Error)
	}

	inserted := int(res.RowsAffected)
	if inserted > 0 {
		s.logger.Debug("bars upserted",
			zap.String("ticker", ticker),
			zap.Int("inserted", inserted),
			zap.Int("offered", len(bars)),
		)
	}
	return inserted, nil
}

// RecomputeIndicators recalculates sma_5, volatility_5 and rsi for the
// ticker. When from is non-nil only rows on or after that date are updated;
// the rolling windows still read the full history. Rows without enough prior
// bars keep NULL indicators.
func (s *Store) RecomputeIndicators(ctx context.Context, ticker string, from *time.Time) error {
	var rows []QuoteRow
	if err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return fmt.Errorf("loading quotes for %s: %w", ticker, err)
	}
	if len(rows) == 0 {
		return nil
	}

	closes := make([]float64, len(rows))
	for i, r := range rows {
		closes[i] = r.Close
	}

	sma := indicator.SMA(closes, smaPeriod)
	vol := indicator.RollingStdDev(closes, volatilityPeriod)
	rsi := indicator.RSI(closes, rsiPeriod)

	for i := range rows {
		if from != nil && rows[i].Date.Before(*from) {
			continue
		}

		updates := map[string]any{"sma_5": nil, "volatility_5": nil}
		if j := i - smaPeriod + 1; j >= 0 && j < len(sma) {
			updates["sma_5"] = sma[j]
		}
		if j := i - volatilityPeriod + 1; j >= 0 && j < len(vol) {
			updates["volatility_5"] = vol[j]
		}
		// Imported RSI wins over the recomputed value, so only fill gaps.
		if rows[i].RSI == nil {
			if j := i - rsiPeriod; j >= 0 && j < len(rsi) {
				updates["rsi"] = rsi[j]
			}
		}

		if err := s.db.WithContext(ctx).Model(&QuoteRow{}).
			Where("id = ?", rows[i].ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("updating indicators for %s id=%d: %w", ticker, rows[i].ID, err)
		}
	}

	s.logger.Debug("indicators recomputed", zap.String("ticker", ticker), zap.Int("rows", len(rows)))
	return nil
}

// ImportRSI overwrites the RSI of the most recent bar with a provider value.
func (s *Store) ImportRSI(ctx context.Context, ticker string, value float64) error {
	if value < 0 || value > 100 {
		return core.WrapError(core.ErrProviderFailed, fmt.Errorf("rsi %f out of range", value))
	}

	var latest QuoteRow
	err := s.db.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("date DESC").
		First(&latest).Error
	if err != nil {
		return core.WrapError(core.ErrNoData, err)
	}

	return s.db.WithContext(ctx).Model(&QuoteRow{}).
		Where("id = ?", latest.ID).
		Update("rsi", value).Error
}

// LastBars returns the most recent n bars at or before asOf, newest first.
func (s *Store) LastBars(ctx context.Context, ticker string, n int, asOf time.Time) ([]QuoteRow, error) {
	var rows []QuoteRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date <= ?", ticker, asOf).
		Order("date DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading last bars for %s: %w", ticker, err)
	}
	return rows, nil
}

// AvgVolatility returns the mean volatility_5 over the last n bars at or
// before asOf. Returns 0 when no volatility values exist yet.
func (s *Store) AvgVolatility(ctx context.Context, ticker string, n int, asOf time.Time) (float64, error) {
	var avg *float64
	err := s.db.WithContext(ctx).Raw(`
		SELECT AVG(volatility_5) FROM (
			SELECT volatility_5 FROM quotes
			WHERE ticker = ? AND date <= ? AND volatility_5 IS NOT NULL
			ORDER BY date DESC LIMIT ?
		) last_n`, ticker, asOf, n).Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("averaging volatility for %s: %w", ticker, err)
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}

// LatestClose returns the most recent close at or before asOf.
func (s *Store) LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	var row QuoteRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date <= ?", ticker, asOf).
		Order("date DESC").
		First(&row).Error
	if err != nil {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("no quotes for %s: %w", ticker, err))
	}
	return row.Close, nil
}

// FirstQuoteOnOrAfter returns the first bar at or after date (nearest trading
// day forward), used as an outcome anchor.
func (s *Store) FirstQuoteOnOrAfter(ctx context.Context, ticker string, date time.Time) (*QuoteRow, error) {
	var row QuoteRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date >= ?", ticker, date).
		Order("date ASC").
		First(&row).Error
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, fmt.Errorf("no quote for %s on/after %s: %w",
			ticker, date.Format("2006-01-02"), err))
	}
	return &row, nil
}

// QuotesBetween returns bars with from < date <= to, oldest first.
func (s *Store) QuotesBetween(ctx context.Context, ticker string, from, to time.Time) ([]QuoteRow, error) {
	var rows []QuoteRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND date > ? AND date <= ?", ticker, from, to).
		Order("date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading quotes for %s: %w", ticker, err)
	}
	return rows, nil
}
