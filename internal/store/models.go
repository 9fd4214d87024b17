package store

import (
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// QuoteRow is one daily bar with derived indicators.
type QuoteRow struct {
	ID          int64     `gorm:"primaryKey"`
	Date        time.Time `gorm:"type:date;uniqueIndex:idx_quotes_date_ticker;not null"`
	Ticker      string    `gorm:"type:varchar(16);uniqueIndex:idx_quotes_date_ticker;index;not null"`
	Close       float64   `gorm:"type:numeric;not null"`
	Volume      int64     `gorm:"type:bigint"`
	SMA5        *float64  `gorm:"column:sma_5;type:numeric"`
	Volatility5 *float64  `gorm:"column:volatility_5;type:numeric"`
	RSI         *float64  `gorm:"column:rsi;type:numeric(5,2)"`
}

func (QuoteRow) TableName() string { return "quotes" }

// KBRow is one knowledge-base entry: a news item or event, enriched in place.
type KBRow struct {
	ID             int64            `gorm:"primaryKey"`
	TS             time.Time        `gorm:"index;not null"`
	Ticker         string           `gorm:"type:varchar(16);index"`
	Source         string           `gorm:"type:varchar(128);index:idx_kb_source_link"`
	Content        string           `gorm:"type:text"`
	EventType      string           `gorm:"type:varchar(50);index"`
	Importance     string           `gorm:"type:varchar(10)"`
	Region         string           `gorm:"type:varchar(20)"`
	Link           *string          `gorm:"type:text;index:idx_kb_source_link"`
	SentimentScore *float64         `gorm:"type:numeric(3,2)"`
	Insight        *string          `gorm:"type:text"`
	Embedding      *pgvector.Vector `gorm:"type:vector(768)"`
	OutcomeJSON    json.RawMessage  `gorm:"column:outcome_json;type:jsonb"`
}

func (KBRow) TableName() string { return "knowledge_base" }

// PortfolioRow is the current holding for one ticker. The synthetic CASH row
// carries the USD balance in Quantity.
type PortfolioRow struct {
	Ticker        string    `gorm:"type:varchar(16);primaryKey"`
	Quantity      float64   `gorm:"type:numeric;not null;default:0"`
	AvgEntryPrice float64   `gorm:"type:numeric;not null;default:0"`
	LastUpdated   time.Time `gorm:"not null"`
}

func (PortfolioRow) TableName() string { return "portfolio_state" }

// TradeRow is one journal entry. The journal is append-only.
type TradeRow struct {
	ID               int64     `gorm:"primaryKey"`
	TS               time.Time `gorm:"index;not null"`
	Ticker           string    `gorm:"type:varchar(16);index;not null"`
	Side             string    `gorm:"type:varchar(4);not null"`
	Quantity         float64   `gorm:"type:numeric;not null"`
	Price            float64   `gorm:"type:numeric;not null"`
	Commission       float64   `gorm:"type:numeric;not null"`
	SignalType       string    `gorm:"type:varchar(32)"`
	StrategyName     *string   `gorm:"type:varchar(64)"`
	TotalValue       float64   `gorm:"type:numeric"`
	SentimentAtTrade *float64  `gorm:"type:numeric(3,2)"`
}

func (TradeRow) TableName() string { return "trade_history" }
