package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kobyzev-yuri/lse/internal/api/response"
	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
	"go.uber.org/zap"
)

type positionView struct {
	Ticker        string  `json:"ticker"`
	Quantity      float64 `json:"quantity"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	LastPrice     float64 `json:"last_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

type portfolioView struct {
	Cash      float64        `json:"cash"`
	Positions []positionView `json:"positions"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cash, err := s.portfolio.Cash(ctx)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	positions, err := s.portfolio.OpenPositions(ctx)
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}

	view := portfolioView{Cash: cash, Positions: make([]positionView, 0, len(positions))}
	for _, p := range positions {
		pv := positionView{
			Ticker:        p.Ticker,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
		}
		if last, err := s.portfolio.LatestClose(ctx, p.Ticker, s.clock.Now()); err == nil {
			pv.LastPrice = last
			pv.UnrealizedPnL = (last - p.AvgEntryPrice) * p.Quantity
		}
		view.Positions = append(view.Positions, pv)
	}

	response.JSON(w, http.StatusOK, view)
}

func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if ticker == "" {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrConfigInvalid, nil))
		return
	}

	days := 30
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
			return
		}
		days = parsed
	}

	bars, err := s.portfolio.LastBars(r.Context(), ticker, days, s.clock.Now())
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, bars)
}

type analyzeRequest struct {
	Ticker string `json:"ticker"`
	UseLLM bool   `json:"use_llm"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Ticker) == "" {
		response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
		return
	}

	result, err := s.analyzer.AnalyzeWithOptions(r.Context(), req.Ticker, req.UseLLM)
	if err != nil {
		s.logger.Error("analysis failed", zap.String("ticker", req.Ticker), zap.Error(err))
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, result)
}

type executeRequest struct {
	Tickers []string `json:"tickers"`
}

type executeResult struct {
	Trades   []store.TradeRow  `json:"trades"`
	Rejected map[string]string `json:"rejected,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Tickers) == 0 {
		response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
		return
	}

	out := executeResult{Trades: []store.TradeRow{}, Rejected: map[string]string{}}
	for _, ticker := range req.Tickers {
		result, err := s.analyzer.AnalyzeWithOptions(r.Context(), ticker, false)
		if err != nil {
			s.logger.Error("cycle analysis failed", zap.String("ticker", ticker), zap.Error(err))
			out.Rejected[ticker] = err.Error()
			continue
		}

		trade, verdict, err := s.executor.Apply(r.Context(), result)
		if err != nil {
			s.logger.Error("cycle execution failed", zap.String("ticker", ticker), zap.Error(err))
			out.Rejected[ticker] = err.Error()
			continue
		}
		if verdict != nil && !verdict.Allowed {
			out.Rejected[ticker] = verdict.Reason
			continue
		}
		if trade != nil {
			out.Trades = append(out.Trades, *trade)
		}
	}

	// Exit rules run after the decisions so stops and targets hit on the
	// same cycle are journaled with it.
	if closed, err := s.executor.ApplyExitRules(r.Context()); err == nil {
		out.Trades = append(out.Trades, closed...)
	}

	response.JSON(w, http.StatusOK, out)
}

type newsRequest struct {
	Ticker         string   `json:"ticker"`
	Source         string   `json:"source"`
	Content        string   `json:"content"`
	SentimentScore *float64 `json:"sentiment_score"`
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	var req newsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		strings.TrimSpace(req.Content) == "" || strings.TrimSpace(req.Ticker) == "" {
		response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
		return
	}
	if req.SentimentScore != nil && (*req.SentimentScore < 0 || *req.SentimentScore > 1) {
		response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
		return
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = string(core.EventManual)
	}

	id, _, err := s.portfolio.InsertEntry(r.Context(), core.KBEntry{
		TS:             s.clock.Now(),
		Ticker:         req.Ticker,
		Source:         source,
		Content:        req.Content,
		EventType:      core.EventManual,
		Importance:     core.ImportanceMedium,
		SentimentScore: req.SentimentScore,
	})
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(w, http.StatusBadRequest, core.ErrConfigInvalid)
			return
		}
		limit = parsed
	}

	trades, err := s.portfolio.Trades(r.Context(), limit, r.URL.Query().Get("ticker"))
	if err != nil {
		response.Error(w, response.StatusFor(err), err)
		return
	}
	response.JSON(w, http.StatusOK, trades)
}
