package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CrashPolicy raises the daily spend after a sharp short-term price drop.
type CrashPolicy struct {
	// ThresholdPct is the drawdown (negative percent) at or below which the override engages.
	ThresholdPct decimal.Decimal `json:"threshold_pct"`
	Multiplier   decimal.Decimal `json:"multiplier"`
	Cap          decimal.Decimal `json:"cap"`
}

// DefaultCrashPolicy engages at -15% and buys up to twice the base, capped at 500.
func DefaultCrashPolicy() CrashPolicy {
	return CrashPolicy{
		ThresholdPct: decimal.NewFromInt(-15),
		Multiplier:   decimal.NewFromInt(2),
		Cap:          decimal.NewFromInt(500),
	}
}

func (p CrashPolicy) Validate() error {
	if !p.ThresholdPct.IsNegative() {
		return fmt.Errorf("crash threshold must be negative, got %s", p.ThresholdPct)
	}
	if !p.Multiplier.IsPositive() {
		return fmt.Errorf("crash multiplier must be positive, got %s", p.Multiplier)
	}
	if !p.Cap.IsPositive() {
		return fmt.Errorf("crash cap must be positive, got %s", p.Cap)
	}
	return nil
}

// Triggered reports whether drawdownPct is deep enough to engage the override.
func (p CrashPolicy) Triggered(drawdownPct decimal.NullDecimal) bool {
	return drawdownPct.Valid && drawdownPct.Decimal.LessThanOrEqual(p.ThresholdPct)
}

// Apply returns max(normal, min(base*multiplier, remaining, cap)) when triggered
// and normal otherwise. The override never lowers the spend.
func (p CrashPolicy) Apply(normal, base, remaining decimal.Decimal, drawdownPct decimal.NullDecimal) decimal.Decimal {
	if !p.Triggered(drawdownPct) {
		return normal
	}

	crashBuy := Allocate(base, p.Multiplier, Limits{
		Remaining: decimal.NewNullDecimal(remaining),
		DailyCap:  decimal.NewNullDecimal(p.Cap),
	})

	return decimal.Max(normal, crashBuy)
}

// DeepestDrawdown picks the larger of the available drops.
func DeepestDrawdown(drawdowns ...decimal.NullDecimal) decimal.NullDecimal {
	var deepest decimal.NullDecimal
	for _, dd := range drawdowns {
		if !dd.Valid {
			continue
		}
		if !deepest.Valid || dd.Decimal.LessThan(deepest.Decimal) {
			deepest = dd
		}
	}
	return deepest
}
