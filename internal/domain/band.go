package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	BandTableDefault = "default"
	BandTableLegacy  = "legacy"
)

// Band maps an inclusive sentiment range to a spend multiplier.
type Band struct {
	Label      string          `json:"label"`
	GraphLabel string          `json:"graph_label,omitempty"`
	Color      string          `json:"color,omitempty"`
	Min        decimal.Decimal `json:"min"`
	Max        decimal.Decimal `json:"max"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// Contains reports whether v lies within [Min, Max].
func (b Band) Contains(v decimal.Decimal) bool {
	return v.GreaterThanOrEqual(b.Min) && v.LessThanOrEqual(b.Max)
}

// BandTable is an ordered list of bands. Classification picks the first match.
type BandTable struct {
	Name  string `json:"name"`
	Bands []Band `json:"bands"`
}

// Classify returns the first band containing v. Values falling into gaps
// between bands (e.g. 49.995) resolve to the last band.
func (t BandTable) Classify(v decimal.Decimal) Band {
	for _, b := range t.Bands {
		if b.Contains(v) {
			return b
		}
	}
	return t.Bands[len(t.Bands)-1]
}

// Validate checks that the table can classify any value in [0, 100].
func (t BandTable) Validate() error {
	if len(t.Bands) == 0 {
		return fmt.Errorf("band table %q has no bands", t.Name)
	}

	for i, b := range t.Bands {
		if strings.TrimSpace(b.Label) == "" {
			return fmt.Errorf("band %d label is required", i)
		}
		if b.Min.GreaterThan(b.Max) {
			return fmt.Errorf("band %q min %s is greater than max %s", b.Label, b.Min, b.Max)
		}
		if !b.Multiplier.IsPositive() {
			return fmt.Errorf("band %q multiplier must be positive, got %s", b.Label, b.Multiplier)
		}
		if i > 0 && b.Min.LessThan(t.Bands[i-1].Min) {
			return fmt.Errorf("band %q is out of order", b.Label)
		}
	}

	if !t.Bands[0].Min.IsZero() {
		return fmt.Errorf("first band must start at 0, got %s", t.Bands[0].Min)
	}
	if last := t.Bands[len(t.Bands)-1]; !last.Max.Equal(hundred) {
		return fmt.Errorf("last band must end at 100, got %s", last.Max)
	}

	return nil
}

// DefaultBands is the canonical six-band table.
func DefaultBands() BandTable {
	return BandTable{
		Name: BandTableDefault,
		Bands: []Band{
			newBand("Max Buy", "0-49.99%", "purple", "0", "49.99", "3"),
			newBand("Strong Buy", "50-59.99%", "blue", "50", "59.99", "2"),
			newBand("Standard Buy", "60-69.99%", "green", "60", "69.99", "1"),
			newBand("Reduced Buy", "70-79.99%", "yellow", "70", "79.99", "0.5"),
			newBand("Very Reduced Buy", "80-97.99%", "orange", "80", "97.99", "0.25"),
			newBand("Minimal Buy", "98-100%", "red", "98", "100", "0.1"),
		},
	}
}

// LegacyBands is the earlier regime table. Adjacent bands share endpoints, so
// first-match keeps each boundary in the lower band (H <= 40 is capitulation).
func LegacyBands() BandTable {
	return BandTable{
		Name: BandTableLegacy,
		Bands: []Band{
			newBand("Extreme capitulation", "0-40%", "purple", "0", "40", "3"),
			newBand("Deep value", "40-50%", "blue", "40", "50", "2"),
			newBand("Fair value", "50-60%", "green", "50", "60", "1"),
			newBand("Mild overvaluation", "60-70%", "yellow", "60", "70", "0.7"),
			newBand("Euphoric", "70-80%", "orange", "70", "80", "0.4"),
			newBand("Blow-off top", "80-100%", "red", "80", "100", "0.2"),
		},
	}
}

// BandTableByName resolves a built-in table.
func BandTableByName(name string) (BandTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BandTableDefault:
		return DefaultBands(), nil
	case BandTableLegacy:
		return LegacyBands(), nil
	default:
		return BandTable{}, fmt.Errorf("unknown band table %q", name)
	}
}

func newBand(label, graphLabel, color, lo, hi, mult string) Band {
	return Band{
		Label:      label,
		GraphLabel: graphLabel,
		Color:      color,
		Min:        Percent(lo),
		Max:        Percent(hi),
		Multiplier: decimal.RequireFromString(mult),
	}
}
