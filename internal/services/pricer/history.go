package pricer

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/sentidca/internal/clients"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/pkg/cache"
	"go.uber.org/zap"
)

const (
	DefaultHistoryURL = "https://www.cryptodatadownload.com/cdd/Bitstamp_BTCUSD_d.csv"

	historyCacheKey = "btc_usd_daily"
)

var historyDateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"2006-01-02 15-PM",
	"2006-01-02 03-PM",
}

// CSVHistory downloads daily closes from a CSV export.
type CSVHistory struct {
	rest   *clients.RESTClient
	url    string
	cache  *cache.TTL[domain.PriceSeries]
	logger *zap.Logger
}

// NewCSVHistory creates a history source. The cache is shared with other consumers.
func NewCSVHistory(rest *clients.RESTClient, url string, c *cache.TTL[domain.PriceSeries], logger *zap.Logger) *CSVHistory {
	if url == "" {
		url = DefaultHistoryURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		c = cache.NewTTL[domain.PriceSeries](time.Hour)
	}
	return &CSVHistory{rest: rest, url: url, cache: c, logger: logger}
}

// History returns the cached series or downloads a fresh one.
func (h *CSVHistory) History(ctx context.Context) (domain.PriceSeries, error) {
	return h.cache.GetOrLoad(ctx, historyCacheKey, func(ctx context.Context) (domain.PriceSeries, error) {
		body, err := h.rest.Get(ctx, h.url, nil)
		if err != nil {
			return nil, errors.Wrap(err, "download price history")
		}

		series, err := ParsePriceCSV(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		h.logger.Info("price history loaded", zap.Int("days", len(series)), zap.String("url", h.url))
		return series, nil
	})
}

// ParsePriceCSV reads a CSV with date and close columns. Lines before the
// header (such as a source banner) are ignored, as are rows whose date or
// price cannot be parsed. When a date repeats, the later row wins.
func ParsePriceCSV(r io.Reader) (domain.PriceSeries, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	dateCol, closeCol := -1, -1
	series := make(domain.PriceSeries)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "read price csv")
		}

		if dateCol < 0 {
			dateCol, closeCol = headerColumns(record)
			continue
		}
		if len(record) <= dateCol || len(record) <= closeCol {
			continue
		}

		date, ok := parseHistoryDate(record[dateCol])
		if !ok {
			continue
		}
		price, err := decimal.NewFromString(strings.TrimSpace(record[closeCol]))
		if err != nil || !price.IsPositive() {
			continue
		}

		series[date] = price
	}

	if dateCol < 0 {
		return nil, errors.New("price csv has no header with date and close columns")
	}

	return series, nil
}

func headerColumns(record []string) (int, int) {
	dateCol, closeCol := -1, -1
	for i, name := range record {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return -1, -1
	}
	return dateCol, closeCol
}

func parseHistoryDate(s string) (domain.Date, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range historyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.DateOf(t), true
		}
	}
	return domain.Date{}, false
}
