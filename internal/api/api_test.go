package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockgame/internal/api/handlers"
	"github.com/wonny/stockgame/internal/contracts"
	"github.com/wonny/stockgame/internal/store"
	"github.com/wonny/stockgame/pkg/database"
	"github.com/wonny/stockgame/pkg/logger"
	"github.com/wonny/stockgame/pkg/redis"
)

type fakeReader struct {
	stocks    []contracts.Stock
	snapshots map[int64][]contracts.StockSnapshot
	lastQuery store.StockFilter
	err       error
}

func (f *fakeReader) ListStocks(_ context.Context, q store.StockFilter) ([]contracts.Stock, int, error) {
	f.lastQuery = q
	if f.err != nil {
		return nil, 0, f.err
	}
	var out []contracts.Stock
	for _, s := range f.stocks {
		if q.Category == "" || s.Category == q.Category {
			out = append(out, s)
		}
	}
	total := len(out)
	end := min(q.Offset+q.Limit, len(out))
	if q.Offset >= len(out) {
		return nil, total, nil
	}
	return out[q.Offset:end], total, nil
}

func (f *fakeReader) GetStockByTicker(_ context.Context, ticker string) (*contracts.Stock, error) {
	for _, s := range f.stocks {
		if s.Ticker == ticker {
			return &s, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeReader) ListSnapshots(_ context.Context, id int64) ([]contracts.StockSnapshot, error) {
	return f.snapshots[id], nil
}

func (f *fakeReader) CategoryCounts(context.Context) (map[string]int, error) {
	out := map[string]int{}
	for _, s := range f.stocks {
		out[s.Category]++
	}
	return out, f.err
}

type blockingRunner struct {
	mu      sync.Mutex
	stages  []string
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context, stage string) ([]*contracts.StageResult, error) {
	r.mu.Lock()
	r.stages = append(r.stages, stage)
	r.mu.Unlock()

	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []*contracts.StageResult{{RunID: "r1", Stage: contracts.Stage(stage), Succeeded: 2}}, nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(context.Context) (*database.HealthStatus, error) {
	return &database.HealthStatus{Healthy: f.err == nil}, f.err
}

type testServer struct {
	server   *httptest.Server
	reader   *fakeReader
	runner   *blockingRunner
	hub      *handlers.ProgressHub
	pipeline *handlers.PipelineHandler
}

func newTestServer(t *testing.T, health HealthChecker) *testServer {
	t.Helper()
	log := logger.Nop()
	cache := redis.NewCache(redis.Disabled(), "stockgame")

	reader := &fakeReader{
		stocks: []contracts.Stock{
			{ID: 1, Ticker: "AAPL", Company: "Apple Inc", Category: "Tech"},
			{ID: 2, Ticker: "JPM", Company: "JPMorgan Chase", Category: "Finance"},
			{ID: 3, Ticker: "MSFT", Company: "Microsoft", Category: "Tech"},
			{ID: 4, Ticker: "NEW", Company: "Newco", Category: contracts.CategoryUnclassified},
		},
		snapshots: map[int64][]contracts.StockSnapshot{
			1: {
				{StockID: 1, Week: 1, Price: decimal.NewFromFloat(101.5)},
				{StockID: 1, Week: 2, Price: decimal.NewFromFloat(105.2), MarketSentiment: contracts.SentimentPositive},
			},
		},
	}
	runner := &blockingRunner{release: make(chan struct{})}
	hub := handlers.NewProgressHub(log)
	ph := handlers.NewPipelineHandler(context.Background(), runner, cache, log)

	router := NewRouter(Handlers{
		Stocks:   handlers.NewStockHandler(reader, cache, log),
		Pipeline: ph,
		Progress: hub,
		Health:   health,
	}, log)

	ts := &testServer{server: httptest.NewServer(router), reader: reader, runner: runner, hub: hub, pipeline: ph}
	t.Cleanup(func() {
		hub.Close()
		ts.server.Close()
	})
	return ts
}

func getJSON(t *testing.T, url string, dest interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, fakeHealth{})
	var body map[string]interface{}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.server.URL+"/health", &body))
	assert.Equal(t, "ok", body["status"])

	down := newTestServer(t, fakeHealth{err: errors.New("connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, down.server.URL+"/health", &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestListStocks(t *testing.T) {
	ts := newTestServer(t, nil)

	var body struct {
		Success bool               `json:"success"`
		Data    handlers.StockPage `json:"data"`
	}
	status := getJSON(t, ts.server.URL+"/api/stocks?category=Tech&page=2&limit=1", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Total)
	require.Len(t, body.Data.Stocks, 1)
	assert.Equal(t, "MSFT", body.Data.Stocks[0].Ticker)
	assert.Equal(t, store.StockFilter{Category: "Tech", Limit: 1, Offset: 1}, ts.reader.lastQuery)
}

func TestListStocks_BadInput(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []string{
		"/api/stocks?category=Crypto",
		"/api/stocks?page=0",
		"/api/stocks?limit=abc",
	}
	for _, path := range tests {
		var body map[string]interface{}
		assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.server.URL+path, &body), path)
		assert.Equal(t, false, body["success"])
	}
}

func TestListStocks_LimitCapped(t *testing.T) {
	ts := newTestServer(t, nil)

	var body map[string]interface{}
	getJSON(t, ts.server.URL+"/api/stocks?limit=5000", &body)
	assert.Equal(t, 100, ts.reader.lastQuery.Limit)
}

func TestGetStock(t *testing.T) {
	ts := newTestServer(t, nil)

	var body struct {
		Data handlers.StockDetail `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.server.URL+"/api/stocks/aapl", &body))
	assert.Equal(t, "Apple Inc", body.Data.Stock.Company)
	require.Len(t, body.Data.Snapshots, 2)
	assert.Equal(t, "105.2", body.Data.Snapshots[1].Price.String())

	var missing map[string]interface{}
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.server.URL+"/api/stocks/ZZZ", &missing))
}

func TestGetCategories(t *testing.T) {
	ts := newTestServer(t, nil)

	var body struct {
		Data []handlers.CategoryCount `json:"data"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, ts.server.URL+"/api/categories", &body))

	require.Len(t, body.Data, len(contracts.Taxonomy)+2)
	counts := map[string]int{}
	for _, c := range body.Data {
		counts[c.Category] = c.Count
	}
	assert.Equal(t, 2, counts["Tech"])
	assert.Equal(t, 1, counts["Finance"])
	assert.Equal(t, 1, counts[contracts.CategoryUnclassified])
	assert.Equal(t, 0, counts[contracts.CategoryOthers])
	assert.Equal(t, contracts.CategoryUnclassified, body.Data[len(body.Data)-1].Category)
}

func post(t *testing.T, url string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTriggerPipeline(t *testing.T) {
	ts := newTestServer(t, nil)

	status, _ := post(t, ts.server.URL+"/api/pipeline/classify")
	assert.Equal(t, http.StatusAccepted, status)

	status, body := post(t, ts.server.URL+"/api/pipeline/simulate")
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, body["error"], "classify")

	status, _ = post(t, ts.server.URL+"/api/pipeline/deploy")
	assert.Equal(t, http.StatusBadRequest, status)

	close(ts.runner.release)
	ts.pipeline.Wait()

	var st struct {
		Data handlers.PipelineStatus `json:"data"`
	}
	getJSON(t, ts.server.URL+"/api/pipeline/status", &st)
	assert.Empty(t, st.Data.Running)
	require.Len(t, st.Data.LastResult, 1)
	assert.Equal(t, contracts.StageClassify, st.Data.LastResult[0].Stage)

	status, _ = post(t, ts.server.URL+"/api/pipeline/all")
	assert.Equal(t, http.StatusAccepted, status)
	ts.pipeline.Wait()

	assert.Equal(t, []string{"classify", "all"}, ts.runner.stages)
}

func TestProgressWebSocket(t *testing.T) {
	ts := newTestServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	ts.hub.Publish(contracts.ProgressEvent{RunID: "abc", Stage: contracts.StageIngest, Message: "page 1 stored", Processed: 10})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got contracts.ProgressEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "abc", got.RunID)
	assert.Equal(t, contracts.StageIngest, got.Stage)
	assert.Equal(t, 10, got.Processed)

	conn.Close()
	require.Eventually(t, func() bool { return ts.hub.Clients() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
