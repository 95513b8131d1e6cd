package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDefaultBands_Valid(t *testing.T) {
	require.NoError(t, DefaultBands().Validate())
	require.NoError(t, LegacyBands().Validate())
}

func TestClassify_Boundaries(t *testing.T) {
	table := DefaultBands()

	tests := []struct {
		value string
		label string
	}{
		{"0", "Max Buy"},
		{"49.99", "Max Buy"},
		{"50", "Strong Buy"},
		{"59.99", "Strong Buy"},
		{"60", "Standard Buy"},
		{"69.99", "Standard Buy"},
		{"70", "Reduced Buy"},
		{"79.99", "Reduced Buy"},
		{"80", "Very Reduced Buy"},
		{"97.99", "Very Reduced Buy"},
		{"98", "Minimal Buy"},
		{"100", "Minimal Buy"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			require.Equal(t, tt.label, table.Classify(dec(tt.value)).Label)
		})
	}
}

func TestClassify_GapsFallBackToLastBand(t *testing.T) {
	table := DefaultBands()

	require.Equal(t, "Minimal Buy", table.Classify(dec("49.995")).Label)
	require.Equal(t, "Minimal Buy", table.Classify(dec("-1")).Label)
	require.Equal(t, "Minimal Buy", table.Classify(dec("100.5")).Label)
}

func TestClassify_EveryCentileHasContainingBand(t *testing.T) {
	table := DefaultBands()
	step := dec("0.01")

	for v := decimal.Zero; v.LessThanOrEqual(hundred); v = v.Add(step) {
		band := table.Classify(v)
		require.True(t, band.Contains(v), "value %s classified into %q", v, band.Label)
	}
}

func TestBandTable_Validate(t *testing.T) {
	tests := []struct {
		name  string
		table BandTable
	}{
		{"empty", BandTable{Name: "x"}},
		{"zero multiplier", BandTable{Bands: []Band{newBand("a", "", "", "0", "100", "0")}}},
		{"min above max", BandTable{Bands: []Band{newBand("a", "", "", "50", "10", "1")}}},
		{"does not start at zero", BandTable{Bands: []Band{newBand("a", "", "", "1", "100", "1")}}},
		{"does not end at 100", BandTable{Bands: []Band{newBand("a", "", "", "0", "90", "1")}}},
		{"out of order", BandTable{Bands: []Band{
			newBand("a", "", "", "0", "100", "1"),
			newBand("b", "", "", "0", "50", "1"),
			newBand("c", "", "", "-1", "100", "1"),
		}}},
		{"missing label", BandTable{Bands: []Band{newBand(" ", "", "", "0", "100", "1")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.table.Validate())
		})
	}
}

func TestBandTableByName(t *testing.T) {
	table, err := BandTableByName("")
	require.NoError(t, err)
	require.Equal(t, BandTableDefault, table.Name)

	table, err = BandTableByName("Legacy")
	require.NoError(t, err)
	require.Equal(t, BandTableLegacy, table.Name)

	_, err = BandTableByName("aggressive")
	require.Error(t, err)
}
