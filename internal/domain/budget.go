package domain

import (
	"github.com/shopspring/decimal"
)

// Limits bound a day's spend. Absent fields impose no bound.
type Limits struct {
	// Remaining is what is left of the month's budget.
	Remaining decimal.NullDecimal
	// DailyCap is a hard per-day maximum.
	DailyCap decimal.NullDecimal
}

// Allocate returns the desired spend base*multiplier, bounded by limits.
// A negative remaining budget is treated as zero. The result is not rounded.
func Allocate(base, multiplier decimal.Decimal, limits Limits) decimal.Decimal {
	desired := base.Mul(multiplier)

	if limits.Remaining.Valid {
		desired = decimal.Min(desired, decimal.Max(limits.Remaining.Decimal, decimal.Zero))
	}
	if limits.DailyCap.Valid {
		desired = decimal.Min(desired, limits.DailyCap.Decimal)
	}

	return decimal.Max(desired, decimal.Zero)
}

// BudgetState tracks live-mode spending within the current month.
type BudgetState struct {
	Month          Month           `json:"month"`
	SpentThisMonth decimal.Decimal `json:"spent_this_month"`
	CarryOver      decimal.Decimal `json:"carry_over"`
}

// NewBudgetState starts tracking at month with nothing spent or carried.
func NewBudgetState(month Month) BudgetState {
	return BudgetState{
		Month:          month,
		SpentThisMonth: decimal.Zero,
		CarryOver:      decimal.Zero,
	}
}

// Rollover moves the state into current. Unused budget of the closing month is
// added to the carry-over, overspend is subtracted from it, and the carry-over
// never drops below zero. Calling it within the same month is a no-op.
func (s BudgetState) Rollover(current Month, monthlyBudget decimal.Decimal) BudgetState {
	if s.Month == current {
		return s
	}
	if s.Month.IsZero() {
		return NewBudgetState(current)
	}

	unused := monthlyBudget.Sub(s.SpentThisMonth)

	return BudgetState{
		Month:          current,
		SpentThisMonth: decimal.Zero,
		CarryOver:      decimal.Max(decimal.Zero, s.CarryOver.Add(unused)),
	}
}

// EffectiveBudget is the monthly budget plus the carry-over.
func (s BudgetState) EffectiveBudget(monthlyBudget decimal.Decimal) decimal.Decimal {
	return monthlyBudget.Add(s.CarryOver)
}

// Remaining is what can still be spent this month. It can be negative after overspending.
func (s BudgetState) Remaining(monthlyBudget decimal.Decimal) decimal.Decimal {
	return s.EffectiveBudget(monthlyBudget).Sub(s.SpentThisMonth)
}

// WithSpent returns a copy with the month's spend replaced.
func (s BudgetState) WithSpent(spent decimal.Decimal) BudgetState {
	s.SpentThisMonth = spent
	return s
}
