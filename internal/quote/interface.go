// Package quote defines the pluggable market-data capabilities: daily bars,
// pre-market snapshots and externally computed RSI.
package quote

import (
	"context"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
)

// Provider delivers daily bars and off-hours snapshots for an instrument.
// Symbols follow the de-facto feed convention: plain for stocks, XXXYYY=X for
// FX, =F suffix for futures, -USD for crypto, ^NAME for indexes.
type Provider interface {
	Name() string
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]core.Bar, error)
	GetPremarket(ctx context.Context, ticker string) (*core.Premarket, error)
}

// RSIProvider supplies an externally computed RSI for instruments where the
// feed value is preferred over the local Wilder computation.
type RSIProvider interface {
	GetRSI(ctx context.Context, ticker string) (float64, error)
}
