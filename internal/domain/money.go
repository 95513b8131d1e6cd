package domain

import (
	"github.com/shopspring/decimal"
)

const (
	// DaysPerMonth converts a monthly budget into a daily one.
	DaysPerMonth = 30

	moneyPlaces = 2
)

var (
	// FeeRate is the broker fee charged on every purchase (1.29%).
	FeeRate = decimal.RequireFromString("0.0129")

	hundred = decimal.NewFromInt(100)
)

// Round2 rounds a monetary amount to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// FormatMoney renders an amount with exactly two decimal places.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(moneyPlaces)
}

// Percent parses a literal percentage value such as "49.99".
func Percent(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DailyBudget converts a monthly budget into its unrounded daily share.
func DailyBudget(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Div(decimal.NewFromInt(DaysPerMonth))
}

// Fee returns the fee charged on spend.
func Fee(spend decimal.Decimal) decimal.Decimal {
	return spend.Mul(FeeRate)
}

// NetBTC converts a fiat spend into the BTC received after fees.
func NetBTC(spend, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return spend.Sub(Fee(spend)).Div(price)
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
