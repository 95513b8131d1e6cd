// Package tracker keeps today's purchase plan current.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/services/pricer"
	"github.com/vadiminshakov/sentidca/pkg/indicators"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSchedule    = "@every 1h"
	DefaultTrendWindow = 1400
)

// ErrNotReady is returned before the first successful refresh.
var ErrNotReady = errors.New("tracker has no data yet")

// HoldersSource returns the sentiment history.
type HoldersSource interface {
	Fetch(ctx context.Context) ([]domain.SentimentPoint, error)
}

// Settings provides the budget and the recorded purchases.
type Settings interface {
	MonthlyBudget(ctx context.Context) (decimal.Decimal, error)
	Purchases(ctx context.Context) ([]domain.Purchase, error)
}

// StateStore persists the month tracker.
type StateStore interface {
	LoadOrInit(month domain.Month) (domain.BudgetState, error)
	Save(state domain.BudgetState) error
}

// Journal records every plan.
type Journal interface {
	Save(plan domain.LivePlan) (uint64, error)
}

// Config tunes the tracker.
type Config struct {
	Strategy        domain.Strategy
	SmoothingWindow int
	TrendWindow     int
	MaxDaily        decimal.NullDecimal
	Crash           domain.CrashPolicy
	Schedule        string
}

// Sources groups the data fetchers. Snapshot is optional.
type Sources struct {
	Holders  HoldersSource
	History  pricer.HistorySource
	Spot     pricer.SpotPricer
	Snapshot pricer.SnapshotSource
}

// Snapshot is the outcome of the last successful refresh.
type Snapshot struct {
	Index         uint64                `json:"index"`
	Plan          domain.LivePlan       `json:"plan"`
	Market        *pricer.Snapshot      `json:"market,omitempty"`
	LatestHolders domain.SentimentPoint `json:"latest_holders"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Inputs are the datasets fetched by the last successful refresh.
type Inputs struct {
	Holders []domain.SentimentPoint
	Prices  domain.PriceSeries
	Trend   domain.PriceSeries
}

// Tracker refreshes market data, plans the day and journals the plan.
type Tracker struct {
	sources  Sources
	settings Settings
	state    StateStore
	journal  Journal
	metrics  *Metrics
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	// serializes refreshes
	refreshMu sync.Mutex

	mu     sync.RWMutex
	latest *Snapshot
	inputs *Inputs
}

// Option customizes a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a Tracker.
func New(sources Sources, settings Settings, state StateStore, journal Journal, cfg Config, logger *zap.Logger, opts ...Option) (*Tracker, error) {
	if sources.Holders == nil || sources.History == nil || sources.Spot == nil {
		return nil, errors.New("holders, history and spot sources are required")
	}
	if settings == nil || state == nil || journal == nil {
		return nil, errors.New("settings, state store and journal are required")
	}
	if len(cfg.Strategy.Bands.Bands) == 0 {
		cfg.Strategy = domain.DefaultStrategy()
	}
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = 7
	}
	if cfg.TrendWindow <= 0 {
		cfg.TrendWindow = DefaultTrendWindow
	}
	if cfg.Crash == (domain.CrashPolicy{}) {
		cfg.Crash = domain.DefaultCrashPolicy()
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tracker{
		sources:  sources,
		settings: settings,
		state:    state,
		journal:  journal,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

// Latest returns the last snapshot or ErrNotReady.
func (t *Tracker) Latest() (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.latest == nil {
		return Snapshot{}, ErrNotReady
	}
	return *t.latest, nil
}

// Inputs returns the last fetched datasets or ErrNotReady.
func (t *Tracker) Inputs() (Inputs, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.inputs == nil {
		return Inputs{}, ErrNotReady
	}
	return *t.inputs, nil
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Run refreshes immediately and then on the configured schedule until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(t.cfg.Schedule, func() { t.refreshAndLog(ctx) }); err != nil {
		return errors.Wrapf(err, "invalid refresh schedule %q", t.cfg.Schedule)
	}

	t.refreshAndLog(ctx)

	c.Start()
	t.logger.Info("tracker started", zap.String("schedule", t.cfg.Schedule))

	<-ctx.Done()

	<-c.Stop().Done()
	t.logger.Info("tracker stopped")

	return ctx.Err()
}

func (t *Tracker) refreshAndLog(ctx context.Context) {
	snap, err := t.Refresh(ctx)
	if err != nil {
		t.logger.Error("refresh failed", zap.Error(err))
		return
	}

	t.logger.Info("plan updated",
		zap.String("date", snap.Plan.Date.String()),
		zap.String("band", snap.Plan.Decision.Band.Label),
		zap.String("sentiment", snap.Plan.Decision.RawSentiment.String()),
		zap.String("final_buy", domain.FormatMoney(snap.Plan.FinalBuy)),
		zap.Bool("crash_override", snap.Plan.CrashOverride),
	)
}

type fetched struct {
	holders  []domain.SentimentPoint
	history  domain.PriceSeries
	spot     decimal.Decimal
	spotErr  error
	snapshot *pricer.Snapshot
}

// Refresh fetches all sources, plans today and journals the plan.
func (t *Tracker) Refresh(ctx context.Context) (snap Snapshot, err error) {
	t.refreshMu.Lock()
	defer t.refreshMu.Unlock()

	started := time.Now()
	defer func() { t.metrics.observeRefresh(started, err) }()

	data, err := t.fetch(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	spot := data.spot
	if data.spotErr != nil {
		if data.snapshot == nil {
			return Snapshot{}, errors.Wrap(data.spotErr, "fetch spot price")
		}
		t.logger.Warn("spot price unavailable, using snapshot price", zap.Error(data.spotErr))
		spot = data.snapshot.Price
	}

	smoothed := indicators.SmoothedSeries(data.holders, t.cfg.SmoothingWindow)
	sentiment, err := domain.EstimateSentiment(smoothed, data.history, spot)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "estimate sentiment")
	}

	trend := indicators.MovingAverageByDate(data.history, t.cfg.TrendWindow)
	trendToday := decimal.NullDecimal{}
	if _, v, ok := trend.Latest(); ok {
		trendToday = decimal.NewNullDecimal(v)
	}

	today := domain.DateOf(t.now())

	monthly, err := t.settings.MonthlyBudget(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load monthly budget")
	}

	state, err := t.syncBudget(ctx, today.Month(), monthly)
	if err != nil {
		return Snapshot{}, err
	}

	in := domain.LiveInput{
		Date:          today,
		Sentiment:     sentiment,
		Price:         spot,
		Trend:         trendToday,
		MonthlyBudget: monthly,
		Budget:        state,
		MaxDaily:      t.cfg.MaxDaily,
		Crash:         t.cfg.Crash,
	}
	if data.snapshot != nil {
		in.Drawdown24h = decimal.NewNullDecimal(data.snapshot.Drawdown24hPct)
		in.Drawdown72h = decimal.NewNullDecimal(data.snapshot.Drawdown72hPct)
	}

	plan := t.cfg.Strategy.PlanDay(in)

	index, err := t.journal.Save(plan)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "journal plan")
	}

	t.metrics.observePlan(plan)

	snap = Snapshot{
		Index:         index,
		Plan:          plan,
		Market:        data.snapshot,
		LatestHolders: data.holders[len(data.holders)-1],
		UpdatedAt:     t.now(),
	}

	t.mu.Lock()
	t.latest = &snap
	t.inputs = &Inputs{Holders: data.holders, Prices: data.history, Trend: trend}
	t.mu.Unlock()

	return snap, nil
}

func (t *Tracker) fetch(ctx context.Context) (fetched, error) {
	var data fetched

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		series, err := t.sources.Holders.Fetch(gctx)
		if err != nil {
			return errors.Wrap(err, "fetch holders")
		}
		if len(series) == 0 {
			return domain.ErrEmptySeries
		}
		data.holders = series
		return nil
	})

	g.Go(func() error {
		history, err := t.sources.History.History(gctx)
		if err != nil {
			return errors.Wrap(err, "fetch price history")
		}
		data.history = history
		return nil
	})

	g.Go(func() error {
		data.spot, data.spotErr = t.sources.Spot.SpotPrice(gctx)
		return nil
	})

	if t.sources.Snapshot != nil {
		g.Go(func() error {
			s, err := t.sources.Snapshot.Snapshot(gctx)
			if err != nil {
				t.logger.Warn("price snapshot unavailable, crash override disabled", zap.Error(err))
				return nil
			}
			data.snapshot = &s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fetched{}, err
	}
	return data, nil
}

// syncBudget recomputes spend from the recorded purchases, rolls the month
// over when it changed and persists the result.
func (t *Tracker) syncBudget(ctx context.Context, current domain.Month, monthly decimal.Decimal) (domain.BudgetState, error) {
	purchases, err := t.settings.Purchases(ctx)
	if err != nil {
		return domain.BudgetState{}, errors.Wrap(err, "load purchases")
	}

	state, err := t.state.LoadOrInit(current)
	if err != nil {
		return domain.BudgetState{}, errors.Wrap(err, "load budget state")
	}

	if state.Month != current && !state.Month.IsZero() {
		state = state.WithSpent(domain.SpentIn(purchases, state.Month))
		t.logger.Info("closing budget month",
			zap.String("month", state.Month.String()),
			zap.String("spent", domain.FormatMoney(state.SpentThisMonth)),
		)
	}

	state = state.Rollover(current, monthly).WithSpent(domain.SpentIn(purchases, current))

	if err := t.state.Save(state); err != nil {
		return domain.BudgetState{}, errors.Wrap(err, "save budget state")
	}
	return state, nil
}
