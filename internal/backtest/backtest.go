// Package backtest replays the decision kernel over historical sentiment and prices.
package backtest

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/pkg/indicators"
)

// DefaultSmoothingWindow is the trailing average length applied to sentiment.
const DefaultSmoothingWindow = 7

// Config describes one simulation.
type Config struct {
	MonthlyBudget   decimal.Decimal `json:"monthly_budget"`
	SmoothingWindow int             `json:"smoothing_window"`
	// StartDate drops earlier days from the result. Zero keeps everything.
	StartDate domain.Date     `json:"start_date"`
	Strategy  domain.Strategy `json:"strategy"`
	// Trend is the long-term average price. Nil disables the trend adjustment input.
	Trend domain.PriceLookup `json:"-"`
}

// DefaultConfig simulates the default strategy with the standard smoothing window.
func DefaultConfig(monthlyBudget decimal.Decimal) Config {
	return Config{
		MonthlyBudget:   monthlyBudget,
		SmoothingWindow: DefaultSmoothingWindow,
		Strategy:        domain.DefaultStrategy(),
	}
}

// Day is one executed simulation day. Amounts are kept exact; JSON output rounds them.
type Day struct {
	Date              domain.Date
	RawSentiment      decimal.Decimal
	SmoothedSentiment decimal.Decimal
	Decision          domain.Decision
	Price             decimal.Decimal
	Trend             decimal.NullDecimal

	Spend decimal.Decimal
	Fee   decimal.Decimal
	BTC   decimal.Decimal
	// CashBalance is the unspent accrued budget after the day's purchase.
	CashBalance decimal.Decimal

	CumulativeSpend decimal.Decimal
	CumulativeBTC   decimal.Decimal
	CumulativeFees  decimal.Decimal
}

// Result is the day-by-day ledger plus its summary.
type Result struct {
	Config  Config  `json:"config"`
	Days    []Day   `json:"days"`
	Summary Summary `json:"summary"`
}

// Run simulates the strategy over series, which must be sorted by date with
// one point per date. Days without a full smoothing window or without a price
// are skipped and leave the state untouched. A nil prices lookup has no price
// for any day. Cash accrues the base daily budget every executed day and
// purchases never exceed it.
func Run(series []domain.SentimentPoint, prices domain.PriceLookup, cfg Config) Result {
	if cfg.SmoothingWindow < 1 {
		cfg.SmoothingWindow = DefaultSmoothingWindow
	}

	smoothed := indicators.SmoothSentiment(series, cfg.SmoothingWindow)

	days := make([]Day, 0, len(series))
	cash := decimal.Zero

	for i, point := range series {
		if !smoothed[i].Valid {
			continue
		}

		price := domain.NullableAt(prices, point.Date)
		if !price.Valid {
			continue
		}

		trend := domain.NullableAt(cfg.Trend, point.Date)
		decision := cfg.Strategy.Decide(smoothed[i].Decimal, cfg.MonthlyBudget, price.Decimal, trend)

		cash = cash.Add(decision.BaseDailyBudget)
		spend := decimal.Min(decision.AdjustedDailyBudget, cash)
		cash = cash.Sub(spend)

		days = append(days, Day{
			Date:              point.Date,
			RawSentiment:      point.Value,
			SmoothedSentiment: smoothed[i].Decimal,
			Decision:          decision,
			Price:             price.Decimal,
			Trend:             trend,
			Spend:             spend,
			Fee:               domain.Fee(spend),
			BTC:               domain.NetBTC(spend, price.Decimal),
			CashBalance:       cash,
		})
	}

	accumulate(days)

	result := Result{Config: cfg, Days: days, Summary: Summarize(days)}
	if !cfg.StartDate.IsZero() {
		result = SliceFrom(result, cfg.StartDate)
	}

	return result
}

// SliceFrom keeps the days on or after start and restarts the cumulative spend,
// BTC and fee totals from the first kept day. Cash balances are not reset: each
// kept day still reports the cash accrued since the beginning of the full run,
// and the summary's cash balance is the last kept day's.
func SliceFrom(result Result, start domain.Date) Result {
	kept := make([]Day, 0, len(result.Days))
	for _, d := range result.Days {
		if !d.Date.Before(start) {
			kept = append(kept, d)
		}
	}

	accumulate(kept)

	cfg := result.Config
	cfg.StartDate = start

	return Result{Config: cfg, Days: kept, Summary: Summarize(kept)}
}

// accumulate recomputes running totals in place.
func accumulate(days []Day) {
	spent, btc, fees := decimal.Zero, decimal.Zero, decimal.Zero

	for i := range days {
		spent = spent.Add(days[i].Spend)
		btc = btc.Add(days[i].BTC)
		fees = fees.Add(days[i].Fee)

		days[i].CumulativeSpend = spent
		days[i].CumulativeBTC = btc
		days[i].CumulativeFees = fees
	}
}
