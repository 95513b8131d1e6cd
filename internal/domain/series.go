package domain

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptySeries is returned when a live decision is requested without any sentiment history.
	ErrEmptySeries = errors.New("sentiment series is empty")
	// ErrMissingPrice is returned when no price exists for a date that needs one.
	ErrMissingPrice = errors.New("price is missing")
)

// SentimentPoint is the share of holders in profit (0-100) on a date.
type SentimentPoint struct {
	Date  Date            `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// NormalizeSentiment sorts points by date and keeps the last value seen for each date.
func NormalizeSentiment(points []SentimentPoint) []SentimentPoint {
	byDate := make(map[Date]decimal.Decimal, len(points))
	for _, p := range points {
		byDate[p.Date] = p.Value
	}

	out := make([]SentimentPoint, 0, len(byDate))
	for d, v := range byDate {
		out = append(out, SentimentPoint{Date: d, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	return out
}

// PriceLookup answers the BTC price on a date. ok is false when no usable price exists.
type PriceLookup interface {
	PriceAt(d Date) (price decimal.Decimal, ok bool)
}

// PriceSeries is a date-indexed price history.
type PriceSeries map[Date]decimal.Decimal

// PriceAt implements PriceLookup. Non-positive prices count as missing.
func (s PriceSeries) PriceAt(d Date) (decimal.Decimal, bool) {
	p, ok := s[d]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// Dates returns the series dates in ascending order.
func (s PriceSeries) Dates() []Date {
	dates := make([]Date, 0, len(s))
	for d := range s {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Latest returns the most recent entry.
func (s PriceSeries) Latest() (Date, decimal.Decimal, bool) {
	if len(s) == 0 {
		return Date{}, decimal.Zero, false
	}
	dates := s.Dates()
	last := dates[len(dates)-1]
	return last, s[last], true
}

// NullableAt is PriceAt with an absent value instead of a flag.
func NullableAt(lookup PriceLookup, d Date) decimal.NullDecimal {
	if lookup == nil {
		return decimal.NullDecimal{}
	}
	p, ok := lookup.PriceAt(d)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p)
}
