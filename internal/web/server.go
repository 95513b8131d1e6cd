// Package web exposes the decision kernel, backtests and live plan over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/internal/storage/decisions"
	"go.uber.org/zap"
)

const (
	journalPollInterval = 2 * time.Second
	heartbeatInterval   = 30 * time.Second
	requestTimeout      = 60 * time.Second
)

type planSource interface {
	Latest() (tracker.Snapshot, error)
	Inputs() (tracker.Inputs, error)
}

type settingsStore interface {
	MonthlyBudget(ctx context.Context) (decimal.Decimal, error)
	SetMonthlyBudget(ctx context.Context, budget decimal.Decimal) error
	Purchases(ctx context.Context) ([]domain.Purchase, error)
	AddPurchase(ctx context.Context, amountBTC, price decimal.Decimal, date domain.Date) (domain.Purchase, error)
	UpdatePurchase(ctx context.Context, p domain.Purchase) error
	DeletePurchase(ctx context.Context, id string) error
}

type journalReader interface {
	EventsAfter(index uint64) ([]decisions.Record, error)
}

// Deps are the collaborators behind the API. Nil dependencies make their
// routes answer 503.
type Deps struct {
	Tracker         planSource
	Settings        settingsStore
	Journal         journalReader
	Strategy        domain.Strategy
	SmoothingWindow int
	Gatherer        prometheus.Gatherer
}

// Server serves the JSON API, the decision stream and metrics.
type Server struct {
	Addr   string
	deps   Deps
	router chi.Router
	logger *zap.Logger
}

// NewServer creates a new web server instance.
func NewServer(addr string, deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(deps.Strategy.Bands.Bands) == 0 {
		deps.Strategy = domain.DefaultStrategy()
	}

	s := &Server{Addr: addr, deps: deps, logger: logger}
	s.router = s.routes()

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		// long-lived
		r.Get("/decisions/stream", s.handleDecisionStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/bands", s.handleBands)
			r.Get("/decision/latest", s.handleLatestDecision)
			r.Post("/decision", s.handleDecide)
			r.Get("/backtest", s.handleBacktest)
			r.Get("/prices", s.handlePrices)
			r.Get("/holders/latest", s.handleLatestHolders)

			r.Get("/options/budget", s.handleGetBudget)
			r.Put("/options/budget", s.handlePutBudget)

			r.Route("/purchases", func(r chi.Router) {
				r.Get("/", s.handleListPurchases)
				r.Post("/", s.handleAddPurchase)
				r.Put("/{id}", s.handleUpdatePurchase)
				r.Delete("/{id}", s.handleDeletePurchase)
			})
		})
	})

	return r
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
