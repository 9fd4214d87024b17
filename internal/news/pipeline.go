package news

import (
	"context"
	"sync"
	"time"

	"github.com/kobyzev-yuri/lse/internal/core"
	"go.uber.org/zap"
)

const (
	// DefaultWorkers bounds concurrent fetchers.
	DefaultWorkers = 4
	// DefaultFetchTimeout bounds one fetcher call.
	DefaultFetchTimeout = 30 * time.Second
)

// Pipeline fans fetcher jobs out to a bounded worker pool and funnels every
// result through a single inserter goroutine, which keeps write contention
// low and gives backpressure for free.
type Pipeline struct {
	fetchers     []Fetcher
	inserter     Inserter
	logger       *zap.Logger
	workers      int
	fetchTimeout time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers overrides the worker-pool size.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithFetchTimeout overrides the per-fetcher timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// NewPipeline creates a pipeline over the given fetchers.
func NewPipeline(inserter Inserter, log *zap.Logger, fetchers []Fetcher, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		fetchers:     fetchers,
		inserter:     inserter,
		logger:       log,
		workers:      DefaultWorkers,
		fetchTimeout: DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type fetchResult struct {
	source  string
	entries []core.KBEntry
	err     error
}

// Run executes every fetcher once and persists the merged results. Inserts
// are idempotent, so retries and overlapping windows are safe.
func (p *Pipeline) Run(ctx context.Context) Summary {
	jobs := make(chan Fetcher)
	results := make(chan fetchResult)

	var workers sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			for f := range jobs {
				fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
				entries, err := f.Fetch(fctx)
				cancel()
				select {
				case results <- fetchResult{source: f.Name(), entries: entries, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range p.fetchers {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workers.Wait()
		close(results)
	}()

	// Single inserter: this goroutine owns all writes for the run.
	summary := Summary{
		Inserted: make(map[string]int),
		Skipped:  make(map[string]int),
	}
	for r := range results {
		if r.err != nil {
			p.logger.Warn("fetcher failed",
				zap.String("source", r.source),
				zap.Error(r.err),
			)
			summary.Errors = append(summary.Errors, SourceError{Source: r.source, Err: r.err})
			continue
		}
		for _, e := range r.entries {
			if ctx.Err() != nil {
				return summary
			}
			_, inserted, err := p.inserter.InsertEntry(ctx, e)
			if err != nil {
				p.logger.Warn("insert failed",
					zap.String("source", r.source),
					zap.String("ticker", e.Ticker),
					zap.Error(err),
				)
				continue
			}
			if inserted {
				summary.Inserted[r.source]++
			} else {
				summary.Skipped[r.source]++
			}
		}
	}

	p.logger.Info("news pipeline finished",
		zap.Int("inserted", summary.Total()),
		zap.Int("sources", len(p.fetchers)),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary
}
