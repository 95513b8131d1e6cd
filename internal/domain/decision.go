package domain

import (
	"github.com/shopspring/decimal"
)

// Strategy holds the tunable parts of the decision kernel.
type Strategy struct {
	Bands           BandTable `json:"bands"`
	TrendAdjustment bool      `json:"trend_adjustment"`
}

// DefaultStrategy uses the canonical bands with trend adjustment enabled.
func DefaultStrategy() Strategy {
	return Strategy{
		Bands:           DefaultBands(),
		TrendAdjustment: true,
	}
}

// Decision is the kernel's verdict for one day.
type Decision struct {
	RawSentiment      decimal.Decimal `json:"raw_sentiment"`
	AdjustedSentiment decimal.Decimal `json:"adjusted_sentiment"`
	Band              Band            `json:"band"`
	Multiplier        decimal.Decimal `json:"multiplier"`
	// BaseDailyBudget is monthly/30 rounded to cents.
	BaseDailyBudget decimal.Decimal `json:"base_daily_budget"`
	// AdjustedDailyBudget is the desired spend, base*multiplier rounded to cents.
	AdjustedDailyBudget decimal.Decimal     `json:"adjusted_daily_budget"`
	MonthlyBudget       decimal.Decimal     `json:"monthly_budget"`
	TrendDistance       decimal.NullDecimal `json:"trend_distance"`
}

// Decide maps a sentiment reading to a band and a desired daily spend.
// trend is the long-term average price; absent disables the adjustment.
func (s Strategy) Decide(raw, monthlyBudget, price decimal.Decimal, trend decimal.NullDecimal) Decision {
	bands := s.Bands
	if len(bands.Bands) == 0 {
		bands = DefaultBands()
	}

	adjusted := raw
	if s.TrendAdjustment {
		adjusted = AdjustForTrend(raw, price, trend)
	}

	band := bands.Classify(adjusted)
	base := DailyBudget(monthlyBudget)

	return Decision{
		RawSentiment:        raw,
		AdjustedSentiment:   adjusted,
		Band:                band,
		Multiplier:          band.Multiplier,
		BaseDailyBudget:     Round2(base),
		AdjustedDailyBudget: Round2(base.Mul(band.Multiplier)),
		MonthlyBudget:       monthlyBudget,
		TrendDistance:       TrendDistance(price, trend),
	}
}

// DecideForDay runs the default strategy.
func DecideForDay(raw, monthlyBudget, price decimal.Decimal, trend decimal.NullDecimal) Decision {
	return DefaultStrategy().Decide(raw, monthlyBudget, price, trend)
}
