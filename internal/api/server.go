// Package api is the narrow read/command surface for the external UI and
// chat bot. All writes return the new authoritative state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kobyzev-yuri/lse/internal/analyst"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/metrics"
	"github.com/kobyzev-yuri/lse/internal/risk"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Portfolio is the portfolio surface the façade reads. *store.Store
// satisfies this.
type Portfolio interface {
	Cash(ctx context.Context) (float64, error)
	OpenPositions(ctx context.Context) ([]store.PortfolioRow, error)
	LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error)
	Trades(ctx context.Context, limit int, ticker string) ([]store.TradeRow, error)
	LastBars(ctx context.Context, ticker string, n int, asOf time.Time) ([]store.QuoteRow, error)
	InsertEntry(ctx context.Context, e core.KBEntry) (int64, bool, error)
}

// Analyzer produces a decision for one ticker.
type Analyzer interface {
	AnalyzeWithOptions(ctx context.Context, ticker string, useLLM bool) (*analyst.Result, error)
}

// Executor applies analyst results and exit rules.
type Executor interface {
	Apply(ctx context.Context, result *analyst.Result) (*store.TradeRow, *risk.Result, error)
	ApplyExitRules(ctx context.Context) ([]store.TradeRow, error)
}

// Config holds server configuration.
type Config struct {
	Host string
	Port int
}

// Server is the HTTP façade.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *zap.Logger

	portfolio Portfolio
	analyzer  Analyzer
	executor  Executor
	clock     core.Clock
}

// NewServer creates the façade over the given collaborators.
func NewServer(cfg Config, portfolio Portfolio, analyzer Analyzer, executor Executor,
	reg *metrics.Registry, log *zap.Logger) *Server {

	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	var handler http.Handler = mux
	if reg != nil {
		handler = metrics.HTTPMiddleware(reg)(mux)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		mux:       mux,
		logger:    log,
		portfolio: portfolio,
		analyzer:  analyzer,
		executor:  executor,
		clock:     core.SystemClock(),
	}

	s.setupRoutes(reg)
	return s
}

func (s *Server) setupRoutes(reg *metrics.Registry) {
	s.mux.HandleFunc("GET /api/portfolio", s.handlePortfolio)
	s.mux.HandleFunc("GET /api/quotes/{ticker}", s.handleQuotes)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/execute", s.handleExecute)
	s.mux.HandleFunc("POST /api/news", s.handleNews)
	s.mux.HandleFunc("GET /api/trades", s.handleTrades)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	if reg != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(reg.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler exposes the routed handler (tests).
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
