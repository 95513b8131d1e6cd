package web

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/sentidca/internal/domain"
	"github.com/vadiminshakov/sentidca/internal/services/tracker"
	"github.com/vadiminshakov/sentidca/internal/storage/decisions"
	"github.com/vadiminshakov/sentidca/internal/storage/settings"
	"go.uber.org/zap"
)

type fakeTracker struct {
	snap   *tracker.Snapshot
	inputs *tracker.Inputs
}

func (f fakeTracker) Latest() (tracker.Snapshot, error) {
	if f.snap == nil {
		return tracker.Snapshot{}, tracker.ErrNotReady
	}
	return *f.snap, nil
}

func (f fakeTracker) Inputs() (tracker.Inputs, error) {
	if f.inputs == nil {
		return tracker.Inputs{}, tracker.ErrNotReady
	}
	return *f.inputs, nil
}

func flatInputs(days int, sentiment, price int64) *tracker.Inputs {
	d := domain.MustParseDate("2026-01-01")
	in := &tracker.Inputs{Prices: domain.PriceSeries{}, Trend: domain.PriceSeries{}}
	for i := 0; i < days; i++ {
		in.Holders = append(in.Holders, domain.SentimentPoint{Date: d.AddDays(i), Value: decimal.NewFromInt(sentiment)})
		in.Prices[d.AddDays(i)] = decimal.NewFromInt(price)
	}
	return in
}

func samplePlan() domain.LivePlan {
	d := domain.MustParseDate("2026-01-10")
	return domain.DefaultStrategy().PlanDay(domain.LiveInput{
		Date:          d,
		Sentiment:     decimal.NewFromInt(60),
		Price:         decimal.NewFromInt(50000),
		MonthlyBudget: decimal.NewFromInt(3000),
		Budget:        domain.NewBudgetState(d.Month()),
		Crash:         domain.DefaultCrashPolicy(),
	})
}

type fixture struct {
	server   *Server
	settings *settings.Store
	journal  *decisions.WALStore
}

func newFixture(t *testing.T, tr planSource) fixture {
	t.Helper()

	dir := t.TempDir()
	st, err := settings.Open(filepath.Join(dir, "settings.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	journal, err := decisions.NewWALStore(filepath.Join(dir, "wal"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	reg := prometheus.NewRegistry()
	tracker.NewMetrics(reg)

	srv := NewServer(":0", Deps{
		Tracker:  tr,
		Settings: st,
		Journal:  journal,
		Gatherer: reg,
	}, zap.NewNop())

	return fixture{server: srv, settings: st, journal: journal}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestBands(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	rec := f.do(t, http.MethodGet, "/api/bands", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var table domain.BandTable
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	assert.Len(t, table.Bands, 6)
}

func TestDecide(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	rec := f.do(t, http.MethodPost, "/api/decision", `{"sentiment": 60, "monthly_budget": 3000, "price": 50000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, "Standard Buy", decision.Band.Label)
	assert.True(t, decision.AdjustedDailyBudget.Equal(decimal.NewFromInt(100)))

	// falls back to the stored budget
	rec = f.do(t, http.MethodPost, "/api/decision", `{"sentiment": "60", "price": "50000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.True(t, decision.MonthlyBudget.Equal(decimal.NewFromInt(1100)))
}

func TestDecide_BadRequests(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	for _, body := range []string{
		`not json`,
		`{"sentiment": 120, "price": 1}`,
		`{"sentiment": 50, "price": 0}`,
		`{"sentiment": 50, "price": 1, "monthly_budget": -5}`,
	} {
		rec := f.do(t, http.MethodPost, "/api/decision", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestLatestDecision(t *testing.T) {
	f := newFixture(t, fakeTracker{})
	rec := f.do(t, http.MethodGet, "/api/decision/latest", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	snap := &tracker.Snapshot{Index: 7, Plan: samplePlan()}
	f = newFixture(t, fakeTracker{snap: snap})
	rec = f.do(t, http.MethodGet, "/api/decision/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got tracker.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint64(7), got.Index)
	assert.True(t, got.Plan.FinalBuy.Equal(decimal.NewFromInt(100)))
}

func TestBacktest(t *testing.T) {
	f := newFixture(t, fakeTracker{inputs: flatInputs(20, 60, 50000)})

	rec := f.do(t, http.MethodGet, "/api/backtest?budget=3000&summary=true", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	// 7-day warm-up leaves 14 executed days
	assert.EqualValues(t, 14, summary["days"])

	rec = f.do(t, http.MethodGet, "/api/backtest?budget=3000&start=2026-01-15", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Days []map[string]interface{} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Days, 6)
	assert.Equal(t, "2026-01-15", result.Days[0]["date"])

	rec = f.do(t, http.MethodGet, "/api/backtest?start=15-01-2026", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrices(t *testing.T) {
	in := flatInputs(3, 60, 42000)
	in.Trend[domain.MustParseDate("2026-01-03")] = decimal.NewFromInt(30000)
	f := newFixture(t, fakeTracker{inputs: in})

	rec := f.do(t, http.MethodGet, "/api/prices?from=2026-01-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []struct {
		Date  string  `json:"date"`
		Trend *string `json:"trend"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Nil(t, points[0].Trend)
	require.NotNil(t, points[1].Trend)
	assert.Equal(t, "30000", *points[1].Trend)
}

func TestBudgetOptions(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	rec := f.do(t, http.MethodGet, "/api/options/budget", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"monthly_budget":"1100"}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/options/budget", `{"monthly_budget": 2000}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/options/budget", "")
	assert.JSONEq(t, `{"monthly_budget":"2000"}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/options/budget", `{"monthly_budget": 0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurchasesCRUD(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	rec := f.do(t, http.MethodGet, "/api/purchases", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/purchases", `{"amount_btc": "0.002", "price": 50000, "date": "2026-01-05"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Purchase
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = f.do(t, http.MethodPut, "/api/purchases/"+created.ID, `{"amount_btc": "0.003", "price": 50000, "date": "2026-01-05"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list, err := f.settings.Purchases(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "0.003", list[0].AmountBTC.String())

	rec = f.do(t, http.MethodPost, "/api/purchases", `{"amount_btc": 0, "price": 50000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/purchases/nope", `{"amount_btc": 1, "price": 1, "date": "2026-01-05"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/purchases/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/purchases/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLatestHolders(t *testing.T) {
	snap := &tracker.Snapshot{
		Plan:          samplePlan(),
		LatestHolders: domain.SentimentPoint{Date: domain.MustParseDate("2026-01-09"), Value: decimal.RequireFromString("58.4")},
	}
	f := newFixture(t, fakeTracker{snap: snap})

	rec := f.do(t, http.MethodGet, "/api/holders/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"latest":{"date":"2026-01-09","value":"58.4"},"estimate_today":"60"}`, rec.Body.String())
}

func TestMetricsAndHealth(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sentidca_final_buy_usd")
}

func TestDecisionStream(t *testing.T) {
	f := newFixture(t, fakeTracker{})

	_, err := f.journal.Save(samplePlan())
	require.NoError(t, err)

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/decisions/stream", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 3 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimSpace(line))
	}

	assert.Equal(t, "id: 1", lines[0])
	assert.Equal(t, "event: decision", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "data: "))

	var plan domain.LivePlan
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(lines[2], "data: ")), &plan))
	assert.Equal(t, "2026-01-10", plan.Date.String())
}

func TestDecisionStream_BadIndex(t *testing.T) {
	f := newFixture(t, fakeTracker{})
	rec := f.do(t, http.MethodGet, "/api/decisions/stream?after=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
