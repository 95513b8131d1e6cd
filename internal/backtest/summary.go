package backtest

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Summary folds the ledger into totals.
type Summary struct {
	Days             int
	TotalSpent       decimal.Decimal
	TotalBTC         decimal.Decimal
	TotalFees        decimal.Decimal
	AverageCostBasis decimal.Decimal
	CashBalance      decimal.Decimal

	MeanDailySpend   float64
	StdDevDailySpend float64
	// BandDays counts executed days per band label.
	BandDays map[string]int
}

// Summarize computes totals from days. The cumulative fields of the last day
// must already be populated.
func Summarize(days []Day) Summary {
	s := Summary{
		Days:             len(days),
		TotalSpent:       decimal.Zero,
		TotalBTC:         decimal.Zero,
		TotalFees:        decimal.Zero,
		AverageCostBasis: decimal.Zero,
		CashBalance:      decimal.Zero,
		BandDays:         make(map[string]int),
	}
	if len(days) == 0 {
		return s
	}

	last := days[len(days)-1]
	s.TotalSpent = last.CumulativeSpend
	s.TotalBTC = last.CumulativeBTC
	s.TotalFees = last.CumulativeFees
	s.CashBalance = last.CashBalance

	if s.TotalBTC.IsPositive() {
		s.AverageCostBasis = s.TotalSpent.Div(s.TotalBTC)
	}

	spends := make([]float64, len(days))
	for i, d := range days {
		spends[i] = d.Spend.InexactFloat64()
		s.BandDays[d.Decision.Band.Label]++
	}

	s.MeanDailySpend = stat.Mean(spends, nil)
	if len(spends) > 1 {
		s.StdDevDailySpend = stat.StdDev(spends, nil)
	}

	return s
}

type summaryJSON struct {
	Days             int            `json:"days"`
	TotalSpent       string         `json:"total_usd_spent"`
	TotalBTC         string         `json:"total_btc"`
	TotalFees        string         `json:"total_fees_paid_usd"`
	AverageCostBasis string         `json:"average_cost_basis_usd"`
	CashBalance      string         `json:"cash_balance_usd"`
	MeanDailySpend   float64        `json:"mean_daily_spend_usd"`
	StdDevDailySpend float64        `json:"stddev_daily_spend_usd"`
	BandDays         map[string]int `json:"band_days"`
}

func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		Days:             s.Days,
		TotalSpent:       domain.FormatMoney(s.TotalSpent),
		TotalBTC:         s.TotalBTC.String(),
		TotalFees:        domain.FormatMoney(s.TotalFees),
		AverageCostBasis: domain.FormatMoney(s.AverageCostBasis),
		CashBalance:      domain.FormatMoney(s.CashBalance),
		MeanDailySpend:   s.MeanDailySpend,
		StdDevDailySpend: s.StdDevDailySpend,
		BandDays:         s.BandDays,
	})
}

type dayJSON struct {
	Date                domain.Date `json:"date"`
	RawSentiment        string      `json:"holders_raw"`
	SmoothedSentiment   string      `json:"holders_sma"`
	AdjustedSentiment   string      `json:"holders_adjusted"`
	Band                string      `json:"band_label"`
	Multiplier          string      `json:"multiplier"`
	BaseDailyBudget     string      `json:"base_daily_budget"`
	AdjustedDailyBudget string      `json:"adjusted_daily_budget"`
	Price               string      `json:"btc_price_usd"`
	Trend               *string     `json:"trend_price_usd"`
	TrendDistancePct    *string     `json:"trend_distance_pct"`
	Spend               string      `json:"usd_spent_today"`
	Fee                 string      `json:"fee_paid_usd"`
	BTC                 string      `json:"btc_bought"`
	CashBalance         string      `json:"cash_balance_usd"`
	CumulativeSpend     string      `json:"cumulative_usd_spent"`
	CumulativeBTC       string      `json:"cumulative_btc"`
	CumulativeFees      string      `json:"cumulative_fees_usd"`
}

// MarshalJSON rounds monetary fields to cents. BTC quantities keep full precision.
func (d Day) MarshalJSON() ([]byte, error) {
	out := dayJSON{
		Date:                d.Date,
		RawSentiment:        d.RawSentiment.String(),
		SmoothedSentiment:   d.SmoothedSentiment.String(),
		AdjustedSentiment:   domain.Round2(d.Decision.AdjustedSentiment).String(),
		Band:                d.Decision.Band.Label,
		Multiplier:          d.Decision.Multiplier.String(),
		BaseDailyBudget:     domain.FormatMoney(d.Decision.BaseDailyBudget),
		AdjustedDailyBudget: domain.FormatMoney(d.Decision.AdjustedDailyBudget),
		Price:               domain.FormatMoney(d.Price),
		Spend:               domain.FormatMoney(d.Spend),
		Fee:                 domain.FormatMoney(d.Fee),
		BTC:                 d.BTC.String(),
		CashBalance:         domain.FormatMoney(d.CashBalance),
		CumulativeSpend:     domain.FormatMoney(d.CumulativeSpend),
		CumulativeBTC:       d.CumulativeBTC.String(),
		CumulativeFees:      domain.FormatMoney(d.CumulativeFees),
	}

	if d.Trend.Valid {
		trend := domain.FormatMoney(d.Trend.Decimal)
		out.Trend = &trend
	}
	if d.Decision.TrendDistance.Valid {
		pct := domain.Round2(d.Decision.TrendDistance.Decimal.Mul(decimal.NewFromInt(100))).String()
		out.TrendDistancePct = &pct
	}

	return json.Marshal(out)
}
