package web

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/backtest"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/internal/storage/settings"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// internalError logs err and hides it from the client.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBands(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Strategy.Bands)
}

func (s *Server) handleLatestDecision(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "tracker not available")
		return
	}

	snap, err := s.deps.Tracker.Latest()
	if errors.Is(err, tracker.ErrNotReady) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, snap)
}

type decideRequest struct {
	Sentiment     decimal.Decimal     `json:"sentiment"`
	MonthlyBudget decimal.NullDecimal `json:"monthly_budget"`
	Price         decimal.Decimal     `json:"price"`
	Trend         decimal.NullDecimal `json:"trend"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Sentiment.IsNegative() || req.Sentiment.GreaterThan(decimal.NewFromInt(100)) {
		s.writeError(w, http.StatusBadRequest, "sentiment must be within [0, 100]")
		return
	}
	if !req.Price.IsPositive() {
		s.writeError(w, http.StatusBadRequest, "price must be positive")
		return
	}

	monthly, ok := s.monthlyBudget(w, r, req.MonthlyBudget)
	if !ok {
		return
	}

	decision := s.deps.Strategy.Decide(req.Sentiment, monthly, req.Price, req.Trend)
	s.writeJSON(w, http.StatusOK, decision)
}

// monthlyBudget returns override when set, else the stored budget. It writes
// the error response itself and returns false on failure.
func (s *Server) monthlyBudget(w http.ResponseWriter, r *http.Request, override decimal.NullDecimal) (decimal.Decimal, bool) {
	if override.Valid {
		if !override.Decimal.IsPositive() {
			s.writeError(w, http.StatusBadRequest, "monthly budget must be positive")
			return decimal.Zero, false
		}
		return override.Decimal, true
	}

	if s.deps.Settings == nil {
		return settings.DefaultMonthlyBudget, true
	}

	budget, err := s.deps.Settings.MonthlyBudget(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return decimal.Zero, false
	}
	return budget, true
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "tracker not available")
		return
	}

	q := r.URL.Query()

	var override decimal.NullDecimal
	if raw := q.Get("budget"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid budget")
			return
		}
		override = decimal.NewNullDecimal(v)
	}

	var start domain.Date
	if raw := q.Get("start"); raw != "" {
		d, err := domain.ParseDate(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid start date, want YYYY-MM-DD")
			return
		}
		start = d
	}

	monthly, ok := s.monthlyBudget(w, r, override)
	if !ok {
		return
	}

	inputs, err := s.deps.Tracker.Inputs()
	if errors.Is(err, tracker.ErrNotReady) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	cfg := backtest.DefaultConfig(monthly)
	cfg.Strategy = s.deps.Strategy
	cfg.StartDate = start
	if s.deps.SmoothingWindow > 0 {
		cfg.SmoothingWindow = s.deps.SmoothingWindow
	}
	if cfg.Strategy.TrendAdjustment {
		cfg.Trend = inputs.Trend
	}

	result := backtest.Run(inputs.Holders, inputs.Prices, cfg)
	if q.Get("summary") == "true" {
		s.writeJSON(w, http.StatusOK, result.Summary)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type pricePoint struct {
	Date  domain.Date         `json:"date"`
	Price decimal.Decimal     `json:"price"`
	Trend decimal.NullDecimal `json:"trend"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "tracker not available")
		return
	}

	inputs, err := s.deps.Tracker.Inputs()
	if errors.Is(err, tracker.ErrNotReady) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	var from domain.Date
	if raw := r.URL.Query().Get("from"); raw != "" {
		if from, err = domain.ParseDate(raw); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
			return
		}
	}

	out := make([]pricePoint, 0, len(inputs.Prices))
	for _, d := range inputs.Prices.Dates() {
		if d.Before(from) {
			continue
		}
		out = append(out, pricePoint{
			Date:  d,
			Price: inputs.Prices[d],
			Trend: domain.NullableAt(inputs.Trend, d),
		})
	}

	s.writeJSON(w, http.StatusOK, out)
}

type holdersResponse struct {
	Latest   domain.SentimentPoint `json:"latest"`
	Estimate decimal.Decimal       `json:"estimate_today"`
}

func (s *Server) handleLatestHolders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tracker == nil {
		s.writeError(w, http.StatusServiceUnavailable, "tracker not available")
		return
	}

	snap, err := s.deps.Tracker.Latest()
	if errors.Is(err, tracker.ErrNotReady) {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, holdersResponse{
		Latest:   snap.LatestHolders,
		Estimate: snap.Plan.Decision.RawSentiment,
	})
}

type budgetBody struct {
	MonthlyBudget decimal.Decimal `json:"monthly_budget"`
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	budget, err := s.deps.Settings.MonthlyBudget(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, budgetBody{MonthlyBudget: budget})
}

func (s *Server) handlePutBudget(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	var body budgetBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !body.MonthlyBudget.IsPositive() {
		s.writeError(w, http.StatusBadRequest, "monthly budget must be positive")
		return
	}

	if err := s.deps.Settings.SetMonthlyBudget(r.Context(), body.MonthlyBudget); err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, body)
}

type purchaseBody struct {
	AmountBTC decimal.Decimal `json:"amount_btc"`
	Price     decimal.Decimal `json:"price"`
	Date      domain.Date     `json:"date"`
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	list, err := s.deps.Settings.Purchases(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Purchase{}
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Date.After(list[j].Date) })

	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddPurchase(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	var body purchaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Date.IsZero() {
		body.Date = domain.DateOf(time.Now())
	}
	if _, err := domain.NewPurchase("pending", body.AmountBTC, body.Price, body.Date); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := s.deps.Settings.AddPurchase(r.Context(), body.AmountBTC, body.Price, body.Date)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdatePurchase(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	var body purchaseBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	p, err := domain.NewPurchase(chi.URLParam(r, "id"), body.AmountBTC, body.Price, body.Date)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = s.deps.Settings.UpdatePurchase(r.Context(), p)
	if errors.Is(err, settings.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "purchase not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if s.deps.Settings == nil {
		s.writeError(w, http.StatusServiceUnavailable, "settings not available")
		return
	}

	err := s.deps.Settings.DeletePurchase(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, settings.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "purchase not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
