package pricer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/clients"
)

const (
	DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

	snapshotDays  = 4
	snapshotHours = snapshotDays*24 + 1
)

// CoinGeckoSnapshot derives drawdowns from the hourly market chart.
type CoinGeckoSnapshot struct {
	rest     *clients.RESTClient
	baseURL  string
	currency string
}

// NewCoinGeckoSnapshot quotes bitcoin in currency (usd when empty).
func NewCoinGeckoSnapshot(rest *clients.RESTClient, baseURL, currency string) *CoinGeckoSnapshot {
	if baseURL == "" {
		baseURL = DefaultCoinGeckoURL
	}
	if currency == "" {
		currency = "usd"
	}
	return &CoinGeckoSnapshot{rest: rest, baseURL: strings.TrimRight(baseURL, "/"), currency: currency}
}

type marketChart struct {
	Prices [][2]json.Number `json:"prices"`
}

func (s *CoinGeckoSnapshot) Snapshot(ctx context.Context) (Snapshot, error) {
	url := fmt.Sprintf("%s/coins/bitcoin/market_chart?vs_currency=%s&days=%d&interval=hourly", s.baseURL, s.currency, snapshotDays)

	var chart marketChart
	if err := s.rest.GetJSON(ctx, url, nil, &chart); err != nil {
		return Snapshot{}, errors.Wrap(err, "coingecko market chart")
	}

	points := make([]Point, 0, len(chart.Prices))
	for _, raw := range chart.Prices {
		ts, err := raw[0].Float64()
		if err != nil {
			continue
		}
		price, err := decimal.NewFromString(raw[1].String())
		if err != nil {
			continue
		}
		points = append(points, Point{At: time.UnixMilli(int64(ts)).UTC(), Price: price})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })

	return snapshotFromPoints(points)
}

// BinanceSnapshot derives drawdowns from hourly klines.
type BinanceSnapshot struct {
	client *binance.Client
	symbol string
}

func NewBinanceSnapshot(client *binance.Client, symbol string) *BinanceSnapshot {
	if symbol == "" {
		symbol = defaultBinanceSymbol
	}
	return &BinanceSnapshot{client: client, symbol: symbol}
}

func (s *BinanceSnapshot) Snapshot(ctx context.Context) (Snapshot, error) {
	klines, err := s.client.NewKlinesService().
		Symbol(s.symbol).
		Interval("1h").
		Limit(snapshotHours).
		Do(ctx)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "binance klines for %s", s.symbol)
	}

	points := make([]Point, 0, len(klines))
	for _, k := range klines {
		price, err := decimal.NewFromString(k.Close)
		if err != nil {
			continue
		}
		points = append(points, Point{At: time.UnixMilli(k.CloseTime).UTC(), Price: price})
	}

	return snapshotFromPoints(points)
}
