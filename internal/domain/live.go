package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EstimateSentiment projects the latest sentiment reading onto today's spot
// price: value * spot / price(lastDate), clamped to [0, 100] and rounded to cents.
// The series must be sorted by date.
func EstimateSentiment(series []SentimentPoint, prices PriceLookup, spot decimal.Decimal) (decimal.Decimal, error) {
	if len(series) == 0 {
		return decimal.Zero, ErrEmptySeries
	}

	last := series[len(series)-1]

	lastPrice, ok := prices.PriceAt(last.Date)
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrMissingPrice, "no price for %s", last.Date)
	}

	estimate := last.Value.Mul(spot).Div(lastPrice)

	return Round2(clamp(estimate, decimal.Zero, hundred)), nil
}

// LiveInput is everything needed to plan today's purchase.
type LiveInput struct {
	Date          Date
	Sentiment     decimal.Decimal
	Price         decimal.Decimal
	Trend         decimal.NullDecimal
	MonthlyBudget decimal.Decimal
	Budget        BudgetState
	// MaxDaily caps the normal (non-crash) buy.
	MaxDaily    decimal.NullDecimal
	Drawdown24h decimal.NullDecimal
	Drawdown72h decimal.NullDecimal
	Crash       CrashPolicy
}

// LivePlan is today's recommended purchase.
type LivePlan struct {
	Date            Date                `json:"date"`
	Price           decimal.Decimal     `json:"price"`
	Decision        Decision            `json:"decision"`
	Budget          BudgetState         `json:"budget"`
	EffectiveBudget decimal.Decimal     `json:"effective_budget"`
	Remaining       decimal.Decimal     `json:"remaining"`
	NormalBuy       decimal.Decimal     `json:"normal_buy"`
	FinalBuy        decimal.Decimal     `json:"final_buy"`
	Drawdown        decimal.NullDecimal `json:"drawdown_pct"`
	CrashOverride   bool                `json:"crash_override"`
}

// PlanDay combines the kernel decision with the month's remaining budget, the
// daily cap and the crash override.
func (s Strategy) PlanDay(in LiveInput) LivePlan {
	decision := s.Decide(in.Sentiment, in.MonthlyBudget, in.Price, in.Trend)

	plan := LivePlan{
		Date:            in.Date,
		Price:           in.Price,
		Decision:        decision,
		Budget:          in.Budget,
		EffectiveBudget: in.Budget.EffectiveBudget(in.MonthlyBudget),
		Remaining:       in.Budget.Remaining(in.MonthlyBudget),
		NormalBuy:       decimal.Zero,
		FinalBuy:        decimal.Zero,
		Drawdown:        DeepestDrawdown(in.Drawdown24h, in.Drawdown72h),
	}

	if !plan.Remaining.IsPositive() {
		return plan
	}

	base := DailyBudget(in.MonthlyBudget)
	plan.NormalBuy = Round2(Allocate(base, decision.Multiplier, Limits{
		Remaining: decimal.NewNullDecimal(plan.Remaining),
		DailyCap:  in.MaxDaily,
	}))

	plan.FinalBuy = Round2(in.Crash.Apply(plan.NormalBuy, base, plan.Remaining, plan.Drawdown))
	plan.CrashOverride = plan.FinalBuy.GreaterThan(plan.NormalBuy)

	return plan
}
