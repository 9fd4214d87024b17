// Package app wires the stores, providers, enrichers, analyst, executor,
// scheduler and API façade into one process.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/api"
	"github.com/kobyzev-yuri/lse/internal/config"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/embedding"
	"github.com/kobyzev-yuri/lse/internal/enrich"
	"github.com/kobyzev-yuri/lse/internal/executor"
	"github.com/kobyzev-yuri/lse/internal/llm"
	llmfactory "github.com/kobyzev-yuri/lse/internal/llm/factory"
	"github.com/kobyzev-yuri/lse/internal/metrics"
	"github.com/kobyzev-yuri/lse/internal/news"
	"github.com/kobyzev-yuri/lse/internal/quote"
	"github.com/kobyzev-yuri/lse/internal/quote/alphavantage"
	"github.com/kobyzev-yuri/lse/internal/quote/yahoo"
	"github.com/kobyzev-yuri/lse/internal/risk"
	"github.com/kobyzev-yuri/lse/internal/scheduler"
	"github.com/kobyzev-yuri/lse/internal/session"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *store.Store
	quotes    quote.Provider
	rsi       quote.RSIProvider
	pipeline  *news.Pipeline
	sentiment *enrich.SentimentEnricher
	embedder  *embedding.Chain
	backfill  *enrich.EmbeddingBackfiller
	outcomes  *enrich.OutcomeAnalyzer
	analyst   *analyst.Agent
	executor  *executor.Agent
	oracle    *session.Oracle
	scheduler *scheduler.Scheduler
	server    *api.Server
	metrics   *metrics.Registry
	clock     core.Clock

	mu         sync.Mutex
	lastSignal map[string]time.Time // intraday per-ticker cooldown
}

// New builds the full object graph from configuration. LLM and embedding
// capabilities degrade to nil when unconfigured; every consumer tolerates
// their absence.
func New(cfg *config.Config, st *store.Store, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{
		cfg:        cfg,
		logger:     log,
		store:      st,
		metrics:    metrics.NewRegistry(),
		clock:      core.SystemClock(),
		lastSignal: make(map[string]time.Time),
	}

	a.quotes = yahoo.New()

	var av *alphavantage.Client
	if cfg.AlphaVantageKey != "" {
		client, err := alphavantage.New(cfg.AlphaVantageKey)
		if err != nil {
			return nil, err
		}
		av = client
		a.rsi = rsiAdapter{client}
	}

	oracle, err := session.NewOracle(a.clock, a.quotes)
	if err != nil {
		return nil, err
	}
	a.oracle = oracle

	// LLM capability
	var primary llm.Provider
	var comparator *llm.Comparator
	if cfg.UseLLM {
		p, others, err := llmfactory.FromConfig(cfg)
		if err != nil {
			return nil, err
		}
		primary = p
		comparator = &llm.Comparator{Primary: p, Others: others}
	}

	// Embedding capability with fallback ordering per configuration.
	var providers []embedding.Provider
	if cfg.UseOpenAIEmbeddings && cfg.LLMAPIKey != "" {
		if p, err := embedding.NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL); err == nil {
			providers = append(providers, p)
		}
	}
	if cfg.UseGeminiEmbeddings && cfg.GeminiAPIKey != "" {
		if p, err := embedding.NewGemini(cfg.GeminiAPIKey); err == nil {
			providers = append(providers, p)
		}
	}
	a.embedder = embedding.NewChain(log, providers...)

	// News pipeline
	fetchers := news.NewCentralBankFetchers()
	if cfg.NewsAPIKey != "" {
		if f, err := news.NewNewsAPIFetcher(cfg.NewsAPIKey, cfg.NewsAPIQuery,
			cfg.NewsAPISources, cfg.NewsAPIDailyQuota); err == nil {
			fetchers = append(fetchers, f)
		}
	}
	if av != nil {
		fetchers = append(fetchers,
			news.NewCalendarFetcher(av, cfg.AllTickers()),
			news.NewSentimentFetcher(av, cfg.AllTickers()),
		)
	}
	if primary != nil {
		fetchers = append(fetchers, news.NewLLMNewsFetcher(
			primary, st, cfg.TickersFast(), cfg.LLMNewsCooldownHours, a.clock))
	}
	a.pipeline = news.NewPipeline(st, log, fetchers)

	// Enrichment sweeps
	a.sentiment = enrich.NewSentimentEnricher(st, primary, log)
	if a.embedder.Available() {
		a.backfill = enrich.NewEmbeddingBackfiller(st, a.embedder, log)
	} else {
		a.backfill = enrich.NewEmbeddingBackfiller(st, nil, log)
	}
	a.outcomes = enrich.NewOutcomeAnalyzer(st, st, log)

	// Analyst
	analystOpts := []analyst.Option{analyst.WithClock(a.clock)}
	if a.embedder.Available() {
		analystOpts = append(analystOpts, analyst.WithEmbedder(a.embedder))
	}
	if comparator != nil {
		analystOpts = append(analystOpts, analyst.WithLLM(comparator, cfg.LLMTemperature))
	}
	a.analyst = analyst.New(st, st, oracle, log, analystOpts...)

	// Risk and execution
	limits, err := risk.LoadLimits(cfg.RiskLimitsPath, log)
	if err != nil {
		return nil, err
	}
	riskMgr := risk.NewManager(limits, st, oracle, log)
	a.executor = executor.New(st, riskMgr, executor.Config{
		CommissionRate:  cfg.CommissionRate,
		SlippageSellPct: cfg.SandboxSlippageSellPct,
		FastTickers:     cfg.TickersFast(),
	}, log)

	// Scheduler and API façade
	a.scheduler = scheduler.New(log)
	if err := a.registerJobs(); err != nil {
		return nil, err
	}
	a.server = api.NewServer(api.Config{
		Host: cfg.ServerHost,
		Port: cfg.ServerPort,
	}, st, a.analyst, a.executor, a.metrics, log)

	return a, nil
}

// rsiAdapter narrows the Alpha Vantage client to the RSI capability.
type rsiAdapter struct {
	client *alphavantage.Client
}

func (r rsiAdapter) GetRSI(ctx context.Context, ticker string) (float64, error) {
	return r.client.GetRSI(ctx, ticker)
}

// Start boots the portfolio, the scheduler and the HTTP server, then blocks
// until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.store.EnsureCash(ctx, a.cfg.InitialCashUSD); err != nil {
		return fmt.Errorf("initializing portfolio: %w", err)
	}

	a.scheduler.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// Analyst exposes the analyst agent (CLI one-shots).
func (a *App) Analyst() *analyst.Agent { return a.analyst }

// Executor exposes the executor agent (CLI one-shots).
func (a *App) Executor() *executor.Agent { return a.executor }

// Pipeline exposes the news pipeline (CLI one-shots).
func (a *App) Pipeline() *news.Pipeline { return a.pipeline }

// RunJob triggers a scheduler job by name outside its schedule.
func (a *App) RunJob(name string) error { return a.scheduler.RunNow(name) }
