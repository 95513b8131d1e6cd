package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		mult   string
		limits Limits
		want   string
	}{
		{"unbounded", "100", "2", Limits{}, "200"},
		{"remaining bounds", "100", "2", Limits{Remaining: decimal.NewNullDecimal(dec("150"))}, "150"},
		{"negative remaining clamps to zero", "100", "2", Limits{Remaining: decimal.NewNullDecimal(dec("-10"))}, "0"},
		{"cap bounds", "100", "3", Limits{DailyCap: decimal.NewNullDecimal(dec("250"))}, "250"},
		{"both bounds pick the smaller", "100", "3", Limits{
			Remaining: decimal.NewNullDecimal(dec("120")),
			DailyCap:  decimal.NewNullDecimal(dec("250")),
		}, "120"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, Allocate(dec(tt.base), dec(tt.mult), tt.limits))
		})
	}
}

func TestRollover_CarriesUnusedBudget(t *testing.T) {
	jan, _ := ParseMonth("2026-01")
	feb, _ := ParseMonth("2026-02")

	state := BudgetState{Month: jan, SpentThisMonth: dec("2950"), CarryOver: decimal.Zero}
	next := state.Rollover(feb, dec("3000"))

	require.Equal(t, feb, next.Month)
	assertDecimal(t, "0", next.SpentThisMonth)
	assertDecimal(t, "50", next.CarryOver)
}

func TestRollover_SameMonthIsNoop(t *testing.T) {
	jan, _ := ParseMonth("2026-01")
	state := BudgetState{Month: jan, SpentThisMonth: dec("120"), CarryOver: dec("40")}

	require.Equal(t, state, state.Rollover(jan, dec("3000")))
}

func TestRollover_OverspendNeverGoesNegative(t *testing.T) {
	months := []string{"2026-01", "2026-02", "2026-03", "2026-04", "2026-05"}
	spends := []string{"3500", "0", "6000", "2999.99", "10000"}

	m, _ := ParseMonth(months[0])
	state := NewBudgetState(m)

	for i := 1; i < len(months); i++ {
		state = state.WithSpent(dec(spends[i-1]))
		next, _ := ParseMonth(months[i])
		state = state.Rollover(next, dec("3000"))

		require.False(t, state.CarryOver.IsNegative(), "month %s carry %s", months[i], state.CarryOver)
		require.True(t, state.SpentThisMonth.IsZero())
	}
}

func TestRollover_OverspendReducesCarry(t *testing.T) {
	jan, _ := ParseMonth("2026-01")
	feb, _ := ParseMonth("2026-02")

	state := BudgetState{Month: jan, SpentThisMonth: dec("3100"), CarryOver: dec("250")}
	assertDecimal(t, "150", state.Rollover(feb, dec("3000")).CarryOver)
}

func TestRollover_FromUninitializedState(t *testing.T) {
	feb, _ := ParseMonth("2026-02")

	next := BudgetState{}.Rollover(feb, dec("3000"))

	require.Equal(t, feb, next.Month)
	assertDecimal(t, "0", next.CarryOver)
}

func TestBudgetState_Remaining(t *testing.T) {
	jan, _ := ParseMonth("2026-01")
	state := BudgetState{Month: jan, SpentThisMonth: dec("500"), CarryOver: dec("50")}

	assertDecimal(t, "3050", state.EffectiveBudget(dec("3000")))
	assertDecimal(t, "2550", state.Remaining(dec("3000")))
}
