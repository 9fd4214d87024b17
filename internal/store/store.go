// Package store owns all durable state: quotes, the knowledge base, the
// portfolio and the trade journal, backed by PostgreSQL with pgvector.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	// DefaultPoolSize is the shared connection pool size.
	DefaultPoolSize = 8
	// DefaultTimeout is the 5 s per-call database deadline value. The store
	// does not apply it: its calls run under the caller's context only.
	DefaultTimeout = 5 * time.Second

	// vectorIndexMinRows is the embedded-row threshold below which the
	// IVF-flat index is not worth building.
	vectorIndexMinRows = 10
)

// Store wraps the database handle and the session clock.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	clock  core.Clock
}

// Open connects to PostgreSQL and configures the pool.
func Open(databaseURL string, log *zap.Logger) (*Store, error) {
	if databaseURL == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("database_url is empty"))
	}
	if log == nil {
		log = zap.NewNop()
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting database handle: %w", err)
	}
	sqlDB.SetMaxIdleConns(DefaultPoolSize)
	sqlDB.SetMaxOpenConns(DefaultPoolSize)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Store{db: db, logger: log, clock: core.SystemClock()}, nil
}

// NewWithDB wraps an existing gorm handle (used by tests).
func NewWithDB(db *gorm.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, logger: log, clock: core.SystemClock()}
}

// SetClock replaces the wall clock; backtests use a replay clock.
func (s *Store) SetClock(c core.Clock) {
	if c != nil {
		s.clock = c
	}
}

// InitSchema creates the vector extension, tables and indexes. Safe to run
// repeatedly.
func (s *Store) InitSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("creating vector extension: %w", err)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&QuoteRow{},
		&KBRow{},
		&PortfolioRow{},
		&TradeRow{},
	); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}

	s.logger.Info("database schema initialized")
	return s.EnsureVectorIndex(ctx)
}

// EnsureVectorIndex builds the IVF-flat cosine index once enough rows carry
// embeddings. Called from InitSchema and from the embedding backfill sweep.
func (s *Store) EnsureVectorIndex(ctx context.Context) error {
	var embedded int64
	if err := s.db.WithContext(ctx).Model(&KBRow{}).
		Where("embedding IS NOT NULL").Count(&embedded).Error; err != nil {
		return fmt.Errorf("counting embedded rows: %w", err)
	}
	if embedded < vectorIndexMinRows {
		return nil
	}

	err := s.db.WithContext(ctx).Exec(
		`CREATE INDEX IF NOT EXISTS idx_kb_embedding_cosine
		 ON knowledge_base USING ivfflat (embedding vector_cosine_ops)
		 WHERE embedding IS NOT NULL`).Error
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}

	s.logger.Debug("vector index ensured", zap.Int64("embedded_rows", embedded))
	return nil
}

// EnsureCash creates the synthetic CASH row when the portfolio is empty.
func (s *Store) EnsureCash(ctx context.Context, initialCashUSD float64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&PortfolioRow{}).
		Where("ticker = ?", core.TickerCash).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	row := PortfolioRow{
		Ticker:      core.TickerCash,
		Quantity:    initialCashUSD,
		LastUpdated: s.clock.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("initializing cash row: %w", err)
	}
	s.logger.Info("portfolio initialized", zap.Float64("cash_usd", initialCashUSD))
	return nil
}
