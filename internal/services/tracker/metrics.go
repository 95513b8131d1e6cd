package tracker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

// Metrics exposes the latest plan as Prometheus gauges.
type Metrics struct {
	Sentiment         prometheus.Gauge
	AdjustedSentiment prometheus.Gauge
	Multiplier        prometheus.Gauge
	SpotPrice         prometheus.Gauge
	FinalBuy          prometheus.Gauge
	Remaining         prometheus.Gauge
	CrashOverride     prometheus.Gauge
	BandActive        *prometheus.GaugeVec

	Refreshes       *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Sentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_sentiment_percent",
			Help: "Estimated holders-in-profit percentage for today",
		}),
		AdjustedSentiment: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_adjusted_sentiment_percent",
			Help: "Sentiment after the trend adjustment",
		}),
		Multiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_multiplier",
			Help: "Spend multiplier of the selected band",
		}),
		SpotPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_spot_price_usd",
			Help: "Spot BTC price used for the latest plan",
		}),
		FinalBuy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_final_buy_usd",
			Help: "Recommended purchase for today",
		}),
		Remaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_remaining_budget_usd",
			Help: "Budget left this month including carry-over",
		}),
		CrashOverride: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sentidca_crash_override",
			Help: "1 when the crash override raised today's buy",
		}),
		BandActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "sentidca_band_active",
			Help: "1 for the band selected by the latest plan",
		}, []string{"band"}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sentidca_refresh_total",
			Help: "Refresh attempts by result",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sentidca_refresh_duration_seconds",
			Help:    "Duration of a full refresh",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Sentiment, m.AdjustedSentiment, m.Multiplier, m.SpotPrice,
			m.FinalBuy, m.Remaining, m.CrashOverride, m.BandActive,
			m.Refreshes, m.RefreshDuration,
		)
	}

	return m
}

func (m *Metrics) observePlan(plan domain.LivePlan) {
	if m == nil {
		return
	}

	m.Sentiment.Set(plan.Decision.RawSentiment.InexactFloat64())
	m.AdjustedSentiment.Set(plan.Decision.AdjustedSentiment.InexactFloat64())
	m.Multiplier.Set(plan.Decision.Multiplier.InexactFloat64())
	m.SpotPrice.Set(plan.Price.InexactFloat64())
	m.FinalBuy.Set(plan.FinalBuy.InexactFloat64())
	m.Remaining.Set(plan.Remaining.InexactFloat64())

	if plan.CrashOverride {
		m.CrashOverride.Set(1)
	} else {
		m.CrashOverride.Set(0)
	}

	m.BandActive.Reset()
	m.BandActive.WithLabelValues(plan.Decision.Band.Label).Set(1)
}

func (m *Metrics) observeRefresh(started time.Time, err error) {
	if m == nil {
		return
	}

	m.RefreshDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.Refreshes.WithLabelValues("error").Inc()
		return
	}
	m.Refreshes.WithLabelValues("ok").Inc()
}
