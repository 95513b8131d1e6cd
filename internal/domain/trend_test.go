package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAdjustForTrend_Steps(t *testing.T) {
	trend := decimal.NewNullDecimal(dec("100"))

	tests := []struct {
		price string
		want  string
	}{
		{"50", "30"},  // -50%
		{"60", "30"},  // -40%, inclusive
		{"70", "38"},  // -30%
		{"80", "38"},  // -20%
		{"90", "45"},  // -10%
		{"100", "45"}, // on the average
		{"120", "55"},
		{"130", "55"},
		{"150", "62"},
		{"160", "62"},
		{"200", "70"},
	}

	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assertDecimal(t, tt.want, AdjustForTrend(dec("50"), dec(tt.price), trend))
		})
	}
}

func TestAdjustForTrend_AbsentTrendIsIdentity(t *testing.T) {
	assertDecimal(t, "63.5", AdjustForTrend(dec("63.5"), dec("50000"), decimal.NullDecimal{}))
	assertDecimal(t, "63.5", AdjustForTrend(dec("63.5"), dec("50000"), decimal.NewNullDecimal(decimal.Zero)))
}

func TestAdjustForTrend_Clamped(t *testing.T) {
	trend := decimal.NewNullDecimal(dec("100"))

	assertDecimal(t, "0", AdjustForTrend(dec("10"), dec("10"), trend))
	assertDecimal(t, "100", AdjustForTrend(dec("95"), dec("500"), trend))
}

func TestAdjustForTrend_MonotonicInPrice(t *testing.T) {
	trend := decimal.NewNullDecimal(dec("30000"))

	for _, sentiment := range []string{"0", "10", "50", "85", "100"} {
		prev := decimal.NewFromInt(-1)
		for price := int64(1000); price <= 100000; price += 500 {
			got := AdjustForTrend(dec(sentiment), decimal.NewFromInt(price), trend)
			require.True(t, got.GreaterThanOrEqual(prev), "sentiment %s price %d: %s < %s", sentiment, price, got, prev)
			prev = got
		}
	}
}
