// Package news ingests heterogeneous news sources into the knowledge base
// through a bounded worker pool with a single inserter.
package news

import (
	"context"

	"github.com/kobyzev-yuri/lse/internal/core"
)

// Fetcher pulls entries from one external source. Implementations are
// stateless between calls apart from quota/cooldown bookkeeping.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]core.KBEntry, error)
}

// Inserter persists entries with deduplication. *store.Store satisfies this.
type Inserter interface {
	InsertEntry(ctx context.Context, e core.KBEntry) (int64, bool, error)
}

// Summary reports one pipeline run: per-source inserted counts and the
// errors of failed fetchers. A failed fetcher never blocks the others.
type Summary struct {
	Inserted map[string]int
	Skipped  map[string]int
	Errors   []SourceError
}

// SourceError pairs a fetcher name with its failure.
type SourceError struct {
	Source string
	Err    error
}

// Total returns the number of rows inserted across all sources.
func (s Summary) Total() int {
	var n int
	for _, c := range s.Inserted {
		n += c
	}
	return n
}
