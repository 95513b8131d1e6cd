package domain

import (
	"github.com/shopspring/decimal"
)

type trendStep struct {
	maxDistance decimal.Decimal
	adjustment  decimal.Decimal
}

// trendSteps are checked in order; a distance above every bound gets trendCeiling.
var (
	trendSteps = []trendStep{
		{maxDistance: decimal.RequireFromString("-0.4"), adjustment: decimal.NewFromInt(-20)},
		{maxDistance: decimal.RequireFromString("-0.2"), adjustment: decimal.NewFromInt(-12)},
		{maxDistance: decimal.Zero, adjustment: decimal.NewFromInt(-5)},
		{maxDistance: decimal.RequireFromString("0.3"), adjustment: decimal.NewFromInt(5)},
		{maxDistance: decimal.RequireFromString("0.6"), adjustment: decimal.NewFromInt(12)},
	}
	trendCeiling = decimal.NewFromInt(20)
)

// TrendDistance returns (price - trend) / trend, or absent when no usable trend exists.
func TrendDistance(price decimal.Decimal, trend decimal.NullDecimal) decimal.NullDecimal {
	if !trend.Valid || !trend.Decimal.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(price.Sub(trend.Decimal).Div(trend.Decimal))
}

// TrendAdjustment returns the sentiment shift, in percentage points, for a distance from trend.
func TrendAdjustment(distance decimal.Decimal) decimal.Decimal {
	for _, step := range trendSteps {
		if distance.LessThanOrEqual(step.maxDistance) {
			return step.adjustment
		}
	}
	return trendCeiling
}

// AdjustForTrend shifts sentiment by the price's distance from its long-term
// average, clamped to [0, 100]. Without a trend the sentiment is unchanged.
func AdjustForTrend(sentiment, price decimal.Decimal, trend decimal.NullDecimal) decimal.Decimal {
	distance := TrendDistance(price, trend)
	if !distance.Valid {
		return sentiment
	}
	return clamp(sentiment.Add(TrendAdjustment(distance.Decimal)), decimal.Zero, hundred)
}
