// Package pricer fetches BTC price history, spot prices and short-term drawdowns.
package pricer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/domain"
)

// SpotPricer returns the current BTC price in USD.
type SpotPricer interface {
	SpotPrice(ctx context.Context) (decimal.Decimal, error)
}

// HistorySource returns daily BTC closes.
type HistorySource interface {
	History(ctx context.Context) (domain.PriceSeries, error)
}

// SnapshotSource returns the latest price with its recent drawdowns.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is the latest price and its percentage change over 24h and 72h.
type Snapshot struct {
	Price          decimal.Decimal `json:"price"`
	Drawdown24hPct decimal.Decimal `json:"drawdown_24h_pct"`
	Drawdown72hPct decimal.Decimal `json:"drawdown_72h_pct"`
	At             time.Time       `json:"at"`
}

// Point is a timestamped price.
type Point struct {
	At    time.Time
	Price decimal.Decimal
}

// snapshotFromPoints measures the change from the points nearest to 24h and 72h
// before the latest one. Points must be sorted by time.
func snapshotFromPoints(points []Point) (Snapshot, error) {
	if len(points) == 0 {
		return Snapshot{}, fmt.Errorf("no price points for snapshot")
	}

	latest := points[len(points)-1]
	if !latest.Price.IsPositive() {
		return Snapshot{}, fmt.Errorf("latest price is not positive: %s", latest.Price)
	}

	p24 := nearest(points, latest.At.Add(-24*time.Hour)).Price
	p72 := nearest(points, latest.At.Add(-72*time.Hour)).Price

	return Snapshot{
		Price:          domain.Round2(latest.Price),
		Drawdown24hPct: changePct(latest.Price, p24),
		Drawdown72hPct: changePct(latest.Price, p72),
		At:             latest.At,
	}, nil
}

func nearest(points []Point, target time.Time) Point {
	best := points[len(points)-1]
	bestDist := absDuration(best.At.Sub(target))

	for _, p := range points {
		if d := absDuration(p.At.Sub(target)); d < bestDist {
			best, bestDist = p, d
		}
	}
	return best
}

func changePct(now, then decimal.Decimal) decimal.Decimal {
	if !then.IsPositive() {
		return decimal.Zero
	}
	return domain.Round2(now.Sub(then).Div(then).Mul(decimal.NewFromInt(100)))
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
