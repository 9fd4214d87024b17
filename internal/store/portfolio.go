package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func ignoreNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	return err
}

// Fill describes one executed trade to be applied to the portfolio.
type Fill struct {
	TS               time.Time
	Ticker           string
	Side             core.Side
	Quantity         float64
	Price            float64
	Commission       float64
	SignalType       string
	StrategyName     *string
	SentimentAtTrade *float64
}

// ExecuteTrade applies a fill atomically: the CASH row and the ticker row are
// locked FOR UPDATE, the portfolio is mutated and the journal row is appended
// in one transaction. A failure anywhere leaves state unchanged.
func (s *Store) ExecuteTrade(ctx context.Context, f Fill) (*TradeRow, error) {
	if f.Quantity <= 0 || f.Price <= 0 {
		return nil, core.WrapError(core.ErrExecutionFailed,
			fmt.Errorf("invalid fill: quantity=%f price=%f", f.Quantity, f.Price))
	}

	var journal *TradeRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cash PortfolioRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ticker = ?", core.TickerCash).
			First(&cash).Error; err != nil {
			return fmt.Errorf("locking cash row: %w", err)
		}

		var pos PortfolioRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("ticker = ?", f.Ticker).
			First(&pos).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("locking position row: %w", err)
		}
		havePos := err == nil

		notional := f.Quantity * f.Price

		switch f.Side {
		case core.SideBuy:
			total := notional + f.Commission
			if cash.Quantity < total {
				return core.WrapError(core.ErrExecutionFailed,
					fmt.Errorf("insufficient cash %.2f for buy of %.2f", cash.Quantity, total))
			}
			cash.Quantity -= total

			if havePos && pos.Quantity > 0 {
				totalCost := pos.Quantity*pos.AvgEntryPrice + notional
				pos.Quantity += f.Quantity
				pos.AvgEntryPrice = totalCost / pos.Quantity
			} else {
				pos = PortfolioRow{Ticker: f.Ticker, Quantity: f.Quantity, AvgEntryPrice: f.Price}
			}

		case core.SideSell:
			if !havePos || pos.Quantity <= 0 {
				return core.WrapError(core.ErrExecutionFailed,
					fmt.Errorf("no open position in %s to sell", f.Ticker))
			}
			cash.Quantity += notional - f.Commission
			pos.Quantity -= f.Quantity
			if pos.Quantity <= 0 {
				pos.Quantity = 0
				pos.AvgEntryPrice = 0
			}

		default:
			return core.WrapError(core.ErrExecutionFailed, fmt.Errorf("unknown side %q", f.Side))
		}

		now := f.TS
		if now.IsZero() {
			now = s.clock.Now()
		}
		cash.LastUpdated = now
		pos.LastUpdated = now

		if err := tx.Save(&cash).Error; err != nil {
			return fmt.Errorf("updating cash: %w", err)
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}},
			UpdateAll: true,
		}).Create(&pos).Error; err != nil {
			return fmt.Errorf("upserting position: %w", err)
		}

		journal = &TradeRow{
			TS:               now,
			Ticker:           f.Ticker,
			Side:             string(f.Side),
			Quantity:         f.Quantity,
			Price:            f.Price,
			Commission:       f.Commission,
			SignalType:       f.SignalType,
			StrategyName:     f.StrategyName,
			TotalValue:       notional,
			SentimentAtTrade: f.SentimentAtTrade,
		}
		return tx.Create(journal).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("trade executed",
		zap.String("ticker", f.Ticker),
		zap.String("side", string(f.Side)),
		zap.Float64("quantity", f.Quantity),
		zap.Float64("price", f.Price),
		zap.String("signal", f.SignalType),
	)
	return journal, nil
}

// Cash returns the current USD balance.
func (s *Store) Cash(ctx context.Context) (float64, error) {
	var row PortfolioRow
	err := s.db.WithContext(ctx).Where("ticker = ?", core.TickerCash).First(&row).Error
	if err != nil {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("cash row missing: %w", err))
	}
	return row.Quantity, nil
}

// Position returns the holding for a ticker, or nil when flat.
func (s *Store) Position(ctx context.Context, ticker string) (*PortfolioRow, error) {
	var row PortfolioRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND ticker <> ? AND quantity > 0", ticker, core.TickerCash).
		First(&row).Error
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	return &row, nil
}

// OpenPositions returns every holding with a positive quantity.
func (s *Store) OpenPositions(ctx context.Context) ([]PortfolioRow, error) {
	var rows []PortfolioRow
	err := s.db.WithContext(ctx).
		Where("ticker <> ? AND quantity > 0", core.TickerCash).
		Order("ticker ASC").
		Find(&rows).Error
	return rows, err
}

// Exposure returns the total entry-price value of open positions, and the
// share held in the given ticker.
func (s *Store) Exposure(ctx context.Context, ticker string) (total, inTicker float64, err error) {
	positions, err := s.OpenPositions(ctx)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range positions {
		v := p.Quantity * p.AvgEntryPrice
		total += v
		if p.Ticker == ticker {
			inTicker += v
		}
	}
	return total, inTicker, nil
}

// Trades returns journal rows, newest first, optionally filtered by ticker.
func (s *Store) Trades(ctx context.Context, limit int, ticker string) ([]TradeRow, error) {
	q := s.db.WithContext(ctx).Model(&TradeRow{}).Order("ts DESC")
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []TradeRow
	err := q.Find(&rows).Error
	return rows, err
}

// LastBuy returns the most recent BUY journal row for a ticker, carrying the
// strategy that opened the position and its entry timestamp.
func (s *Store) LastBuy(ctx context.Context, ticker string) (*TradeRow, error) {
	var row TradeRow
	err := s.db.WithContext(ctx).
		Where("ticker = ? AND side = ?", ticker, string(core.SideBuy)).
		Order("ts DESC").
		First(&row).Error
	if err != nil {
		return nil, ignoreNotFound(err)
	}
	return &row, nil
}

// UnrealizedPnL values every open position at its latest close. Positions
// without quotes contribute zero.
func (s *Store) UnrealizedPnL(ctx context.Context) (float64, error) {
	positions, err := s.OpenPositions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	var pnl float64
	for _, p := range positions {
		last, err := s.LatestClose(ctx, p.Ticker, now)
		if err != nil {
			continue
		}
		pnl += (last - p.AvgEntryPrice) * p.Quantity
	}
	return pnl, nil
}

// RealizedPnLToday sums the realized result of today's SELL trades: each sell
// is paired with the price of the most recent BUY of the same ticker that
// preceded it.
func (s *Store) RealizedPnLToday(ctx context.Context) (float64, error) {
	dayStart := s.clock.Now().Truncate(24 * time.Hour)

	var sells []TradeRow
	err := s.db.WithContext(ctx).
		Where("side = ? AND ts >= ?", string(core.SideSell), dayStart).
		Find(&sells).Error
	if err != nil {
		return 0, err
	}

	var pnl float64
	for _, sell := range sells {
		var buy TradeRow
		err := s.db.WithContext(ctx).
			Where("ticker = ? AND side = ? AND ts <= ?", sell.Ticker, string(core.SideBuy), sell.TS).
			Order("ts DESC").
			First(&buy).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return 0, err
		}
		pnl += (sell.Price-buy.Price)*sell.Quantity - sell.Commission
	}
	return pnl, nil
}
