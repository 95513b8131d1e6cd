package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDate_ParseAndOrder(t *testing.T) {
	a := MustParseDate("2024-02-28")
	b := MustParseDate("2024-03-01")

	require.True(t, a.Before(b))
	require.True(t, b.After(a))
	require.Equal(t, 0, a.Compare(MustParseDate("2024-02-28")))
	require.Equal(t, "2024-02-29", a.AddDays(1).String())
	require.Equal(t, b, a.AddDays(2))
	require.Equal(t, "2024-02", a.Month().String())

	_, err := ParseDate("2024-13-01")
	require.Error(t, err)
}

func TestDateOf_UsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2025, 6, 1, 5, 0, 0, 0, loc)

	require.Equal(t, "2025-05-31", DateOf(ts).String())
}

func TestDate_JSON(t *testing.T) {
	type row struct {
		Date  Date  `json:"date"`
		Month Month `json:"month"`
	}

	payload, err := json.Marshal(row{Date: NewDate(2025, time.January, 5), Month: Month{Year: 2025, Month: time.January}})
	require.NoError(t, err)
	require.JSONEq(t, `{"date":"2025-01-05","month":"2025-01"}`, string(payload))

	var decoded row
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Equal(t, NewDate(2025, time.January, 5), decoded.Date)
	require.True(t, decoded.Month.Contains(decoded.Date))
}

func TestPurchase(t *testing.T) {
	d := MustParseDate("2026-01-03")

	p, err := NewPurchase("p1", dec("0.002"), dec("50000"), d)
	require.NoError(t, err)
	assertDecimal(t, "100", p.Cost())

	_, err = NewPurchase("p2", dec("0"), dec("50000"), d)
	require.Error(t, err)
	_, err = NewPurchase("p3", dec("0.1"), dec("-1"), d)
	require.Error(t, err)
	_, err = NewPurchase("", dec("0.1"), dec("1"), d)
	require.Error(t, err)

	other, err := NewPurchase("p4", dec("0.001"), dec("40000"), MustParseDate("2026-02-01"))
	require.NoError(t, err)

	assertDecimal(t, "100", SpentIn([]Purchase{p, other}, d.Month()))
}
