// Package holders downloads the daily "holders in profit" dataset.
package holders

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/clients"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/pkg/cache"
	"go.uber.org/zap"
)

const (
	DefaultURL = "https://charts.bgeometrics.com/files/profit_loss.json"

	cacheKey = "holders_in_profit"
)

// Fetcher loads the sentiment series.
type Fetcher struct {
	rest   *clients.RESTClient
	url    string
	cache  *cache.TTL[[]domain.SentimentPoint]
	logger *zap.Logger
}

// NewFetcher creates a Fetcher. A nil cache gets a private one-hour cache.
func NewFetcher(rest *clients.RESTClient, url string, c *cache.TTL[[]domain.SentimentPoint], logger *zap.Logger) *Fetcher {
	if url == "" {
		url = DefaultURL
	}
	if c == nil {
		c = cache.NewTTL[[]domain.SentimentPoint](time.Hour)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{rest: rest, url: url, cache: c, logger: logger}
}

// Fetch returns the series sorted by date, one point per date.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.SentimentPoint, error) {
	return f.cache.GetOrLoad(ctx, cacheKey, func(ctx context.Context) ([]domain.SentimentPoint, error) {
		body, err := f.rest.Get(ctx, f.url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "download holders dataset")
		}

		series, err := Parse(body)
		if err != nil {
			return nil, err
		}

		f.logger.Info("holders dataset loaded", zap.Int("points", len(series)))
		return series, nil
	})
}

// Parse decodes a [[timestamp_ms, percent], ...] payload. Rows whose cells are
// missing, null, non-numeric or non-finite are dropped, timestamps map to UTC
// dates and the last value seen for a date wins.
func Parse(payload []byte) ([]domain.SentimentPoint, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, errors.Wrap(err, "decode holders dataset")
	}

	points := make([]domain.SentimentPoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}

		tsCell, ok := numberCell(row[0])
		if !ok {
			continue
		}
		ts, err := tsCell.Float64()
		if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
			continue
		}

		valueCell, ok := numberCell(row[1])
		if !ok {
			continue
		}
		value, err := decimal.NewFromString(valueCell.String())
		if err != nil {
			continue
		}

		points = append(points, domain.SentimentPoint{
			Date:  domain.DateOf(time.UnixMilli(int64(ts))),
			Value: value,
		})
	}

	return domain.NormalizeSentiment(points), nil
}

// numberCell accepts only a bare JSON number. Strings, booleans, nulls and
// nested values report false.
func numberCell(raw json.RawMessage) (json.Number, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' {
		return "", false
	}

	var n *json.Number
	if err := json.Unmarshal(raw, &n); err != nil || n == nil {
		return "", false
	}
	return *n, true
}
