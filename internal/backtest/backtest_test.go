package backtest

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

var start = domain.MustParseDate("2024-01-01")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func flatSeries(n int, value string) []domain.SentimentPoint {
	points := make([]domain.SentimentPoint, n)
	for i := range points {
		points[i] = domain.SentimentPoint{Date: start.AddDays(i), Value: dec(value)}
	}
	return points
}

func flatPrices(n int, price string) domain.PriceSeries {
	prices := make(domain.PriceSeries, n)
	for i := 0; i < n; i++ {
		prices[start.AddDays(i)] = dec(price)
	}
	return prices
}

// randomInputs builds a reproducible market with gaps in the price history.
func randomInputs(seed int64, n int) ([]domain.SentimentPoint, domain.PriceSeries, domain.PriceSeries) {
	rnd := rand.New(rand.NewSource(seed))

	series := make([]domain.SentimentPoint, n)
	prices := make(domain.PriceSeries, n)
	trend := make(domain.PriceSeries, n)

	for i := 0; i < n; i++ {
		d := start.AddDays(i)
		series[i] = domain.SentimentPoint{Date: d, Value: decimal.NewFromFloat(rnd.Float64() * 100).Round(2)}
		if rnd.Intn(10) > 0 {
			prices[d] = decimal.NewFromInt(int64(10000 + rnd.Intn(90000)))
		}
		if i > 30 {
			trend[d] = decimal.NewFromInt(int64(20000 + rnd.Intn(40000)))
		}
	}

	return series, prices, trend
}

func TestRun_FlatSentimentSingleDay(t *testing.T) {
	result := Run(flatSeries(7, "60"), flatPrices(7, "50000"), DefaultConfig(dec("3000")))

	require.Len(t, result.Days, 1)
	day := result.Days[0]

	require.Equal(t, start.AddDays(6), day.Date)
	require.Equal(t, "Standard Buy", day.Decision.Band.Label)
	requireDecimal(t, "100", day.Decision.BaseDailyBudget)
	requireDecimal(t, "100", day.Spend)
	requireDecimal(t, "1.29", day.Fee)
	requireDecimal(t, "0.0019742", day.BTC)
	requireDecimal(t, "0", day.CashBalance)

	requireDecimal(t, "100", result.Summary.TotalSpent)
	requireDecimal(t, "0.0019742", result.Summary.TotalBTC)
	requireDecimal(t, "1.29", result.Summary.TotalFees)
	requireDecimal(t, "0", result.Summary.CashBalance)
	require.Equal(t, 1, result.Summary.Days)
}

func TestRun_SkipsMissingPricesAndWarmup(t *testing.T) {
	prices := flatPrices(10, "50000")
	delete(prices, start.AddDays(8))

	result := Run(flatSeries(10, "60"), prices, DefaultConfig(dec("3000")))

	require.Len(t, result.Days, 3)
	require.Equal(t, start.AddDays(6), result.Days[0].Date)
	require.Equal(t, start.AddDays(7), result.Days[1].Date)
	require.Equal(t, start.AddDays(9), result.Days[2].Date)
	requireDecimal(t, "300", result.Summary.TotalSpent)
}

func TestRun_EmptyInputs(t *testing.T) {
	result := Run(nil, domain.PriceSeries{}, DefaultConfig(dec("3000")))

	require.Empty(t, result.Days)
	requireDecimal(t, "0", result.Summary.TotalSpent)
	requireDecimal(t, "0", result.Summary.AverageCostBasis)
}

func TestRun_NilPriceLookupSkipsEveryDay(t *testing.T) {
	var result Result
	require.NotPanics(t, func() {
		result = Run(flatSeries(10, "60"), nil, DefaultConfig(dec("3000")))
	})

	require.Empty(t, result.Days)
	requireDecimal(t, "0", result.Summary.TotalSpent)
	requireDecimal(t, "0", result.Summary.CashBalance)
}

func TestRun_ZeroWindowUsesDefault(t *testing.T) {
	cfg := DefaultConfig(dec("3000"))
	cfg.SmoothingWindow = 0

	result := Run(flatSeries(7, "60"), flatPrices(7, "50000"), cfg)

	require.Len(t, result.Days, 1)
	require.Equal(t, DefaultSmoothingWindow, result.Config.SmoothingWindow)
}

func TestRun_CashLimitsSpend(t *testing.T) {
	// ten expensive-sentiment days bank cash, then capitulation draws on it
	series := append(flatSeries(16, "85"), flatSeries(30, "20")[16:]...)
	prices := flatPrices(30, "30000")

	result := Run(series, prices, DefaultConfig(dec("3000")))
	require.NotEmpty(t, result.Days)

	first := result.Days[0]
	requireDecimal(t, "25", first.Spend)
	requireDecimal(t, "75", first.CashBalance)

	var sawCashConstrained bool
	for _, d := range result.Days {
		require.True(t, d.Spend.LessThanOrEqual(d.Decision.AdjustedDailyBudget))
		require.False(t, d.CashBalance.IsNegative())
		if d.Spend.LessThan(d.Decision.AdjustedDailyBudget) {
			sawCashConstrained = true
		}
	}
	require.True(t, sawCashConstrained)
}

func TestRun_BudgetConservation(t *testing.T) {
	series, prices, trend := randomInputs(42, 400)
	cfg := DefaultConfig(dec("1100"))
	cfg.Trend = trend

	result := Run(series, prices, cfg)
	require.NotEmpty(t, result.Days)

	accrued := decimal.Zero
	for _, d := range result.Days {
		accrued = accrued.Add(d.Decision.BaseDailyBudget)

		require.True(t, d.CashBalance.Add(d.CumulativeSpend).Equal(accrued), "date %s", d.Date)
		require.True(t, d.Spend.LessThanOrEqual(d.Decision.AdjustedDailyBudget))
		require.False(t, d.CashBalance.IsNegative())
	}
}

func TestRun_CumulativeFoldAndFees(t *testing.T) {
	series, prices, trend := randomInputs(7, 300)
	cfg := DefaultConfig(dec("3000"))
	cfg.Trend = trend

	result := Run(series, prices, cfg)

	spent, btc, fees := decimal.Zero, decimal.Zero, decimal.Zero
	tolerance := dec("0.000000001")
	for _, d := range result.Days {
		spent = spent.Add(d.Spend)
		btc = btc.Add(d.BTC)
		fees = fees.Add(d.Fee)

		require.True(t, d.Fee.Equal(d.Spend.Mul(domain.FeeRate)))
		reconstructed := d.BTC.Mul(d.Price).Add(d.Fee)
		require.True(t, reconstructed.Sub(d.Spend).Abs().LessThan(tolerance), "date %s", d.Date)
	}

	requireDecimal(t, spent.String(), result.Summary.TotalSpent)
	requireDecimal(t, btc.String(), result.Summary.TotalBTC)
	requireDecimal(t, fees.String(), result.Summary.TotalFees)
	require.True(t, result.Summary.AverageCostBasis.Equal(spent.Div(btc)))

	bandDays := 0
	for _, n := range result.Summary.BandDays {
		bandDays += n
	}
	require.Equal(t, len(result.Days), bandDays)
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	series, prices, trend := randomInputs(99, 200)
	cfg := DefaultConfig(dec("2500"))
	cfg.Trend = trend

	first, err := json.Marshal(Run(series, prices, cfg))
	require.NoError(t, err)
	second, err := json.Marshal(Run(series, prices, cfg))
	require.NoError(t, err)

	require.JSONEq(t, string(first), string(second))
}

func TestRun_TrendInputShiftsBands(t *testing.T) {
	trend := make(domain.PriceSeries)
	for d := range flatPrices(7, "0") {
		trend[d] = dec("100000")
	}

	cfg := DefaultConfig(dec("3000"))
	cfg.Trend = trend

	result := Run(flatSeries(7, "60"), flatPrices(7, "50000"), cfg)

	require.Len(t, result.Days, 1)
	require.Equal(t, "Max Buy", result.Days[0].Decision.Band.Label)
	require.True(t, result.Days[0].Trend.Valid)
	// only a day's worth of cash is available
	requireDecimal(t, "100", result.Days[0].Spend)
}

func TestDay_MarshalJSONRoundsMoney(t *testing.T) {
	result := Run(flatSeries(7, "55"), flatPrices(7, "43210.987"), DefaultConfig(dec("1100")))
	require.Len(t, result.Days, 1)

	payload, err := json.Marshal(result.Days[0])
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "2024-01-07", decoded["date"])
	assert.Equal(t, "36.67", decoded["base_daily_budget"])
	assert.Equal(t, "73.33", decoded["adjusted_daily_budget"])
	assert.Equal(t, "36.67", decoded["usd_spent_today"])
	assert.Equal(t, "0.47", decoded["fee_paid_usd"])
	assert.Equal(t, "43210.99", decoded["btc_price_usd"])
	assert.Nil(t, decoded["trend_price_usd"])
}
