// Package indicators provides trailing moving averages over decimal series.
package indicators

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

// averagePlaces bounds the float round trip so repeated runs print identically.
const averagePlaces = 8

// TrailingAverage returns, for each index, the arithmetic mean of the window
// values ending at that index. The first window-1 entries are absent, as is
// every entry when window < 1 or the series is shorter than the window.
func TrailingAverage(values []decimal.Decimal, window int) []decimal.NullDecimal {
	out := make([]decimal.NullDecimal, len(values))
	if window < 1 || len(values) < window {
		return out
	}

	sma := trend.NewSmaWithPeriod[float64](window)
	averaged := helper.ChanToSlice(sma.Compute(helper.SliceToChan(decimalsToFloat64(values))))

	// the indicator drops its warm-up period, so results align to the end
	offset := len(values) - len(averaged)
	for i, v := range averaged {
		out[offset+i] = decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(averagePlaces))
	}

	return out
}

// SmoothSentiment applies TrailingAverage to sentiment values in series order.
func SmoothSentiment(series []domain.SentimentPoint, window int) []decimal.NullDecimal {
	values := make([]decimal.Decimal, len(series))
	for i, p := range series {
		values[i] = p.Value
	}
	return TrailingAverage(values, window)
}

// SmoothedSeries returns the points whose smoothing window is full, carrying the averaged value.
func SmoothedSeries(series []domain.SentimentPoint, window int) []domain.SentimentPoint {
	smoothed := SmoothSentiment(series, window)

	out := make([]domain.SentimentPoint, 0, len(series))
	for i, p := range series {
		if !smoothed[i].Valid {
			continue
		}
		out = append(out, domain.SentimentPoint{Date: p.Date, Value: smoothed[i].Decimal})
	}
	return out
}

// MovingAverageByDate averages consecutive price entries in date order. Dates
// without a full period of history are left out of the result.
func MovingAverageByDate(prices domain.PriceSeries, period int) domain.PriceSeries {
	dates := prices.Dates()

	values := make([]decimal.Decimal, len(dates))
	for i, d := range dates {
		values[i] = prices[d]
	}

	out := make(domain.PriceSeries, len(dates))
	for i, avg := range TrailingAverage(values, period) {
		if avg.Valid {
			out[dates[i]] = avg.Decimal
		}
	}
	return out
}

func decimalsToFloat64(values []decimal.Decimal) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = v.InexactFloat64()
	}
	return result
}
