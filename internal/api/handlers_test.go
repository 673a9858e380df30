package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price_forecast/internal/cache"
	"price_forecast/internal/model"
	"price_forecast/internal/pipeline"
	"price_forecast/internal/store"
	"price_forecast/internal/ws"
)

var startTime = time.Date(2024, 11, 21, 0, 0, 0, 0, time.UTC)

type staticWeather struct{ err error }

func (s staticWeather) FetchWeather(context.Context) ([]model.WeatherPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.WeatherPoint, 36)
	for i := range out {
		out[i] = model.WeatherPoint{
			Time:        startTime.Add(time.Duration(i) * time.Hour),
			Temperature: -4 + float64(i%24)/4,
			IsForecast:  i >= 24,
		}
	}
	return out, nil
}

type staticPrices struct{}

func (staticPrices) FetchPrices(context.Context) ([]model.SpotPricePoint, error) {
	out := make([]model.SpotPricePoint, 24)
	for i := range out {
		out[i] = model.SpotPricePoint{
			Timestamp: startTime.Add(time.Duration(i) * time.Hour),
			Price:     35 + 15*float64((i%24)/6) - float64(i%4),
		}
	}
	return out, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router *gin.Engine
	engine *pipeline.Engine
	store  *store.Store
}

func newTestServer(t *testing.T, redis Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, _ := test.NewNullLogger()
	s := store.New(5)
	engine := pipeline.New(staticWeather{}, staticPrices{}, cache.NoopCache{}, s, nil, logger, pipeline.Options{})
	h := NewHandler(engine, s, redis, logger)

	return &testServer{
		router: NewRouter(h, nil),
		engine: engine,
		store:  s,
	}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "starting", resp.Status)
	assert.Equal(t, "pending", resp.Services["forecast"])
	assert.Equal(t, "disabled", resp.Services["redis"])

	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	resp = decode[HealthResponse](t, ts.do(t, http.MethodGet, "/health", ""))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "ready", resp.Services["forecast"])
}

func TestHealth_RedisDown(t *testing.T) {
	ts := newTestServer(t, fakePinger{err: errors.New("connection refused")})
	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	resp := decode[HealthResponse](t, ts.do(t, http.MethodGet, "/health", ""))
	assert.Equal(t, "degraded", resp.Status)
	assert.Contains(t, resp.Services["redis"], "connection refused")
}

func TestGetForecast_BeforeRefresh(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/api/forecast", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = ts.do(t, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRefreshAndGetForecast(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decode[ws.ForecastPayload](t, w)
	assert.Equal(t, uint64(1), refreshed.Seq)

	w = ts.do(t, http.MethodGet, "/api/forecast", "")
	require.Equal(t, http.StatusOK, w.Code)
	f := decode[ws.ForecastPayload](t, w)
	assert.Equal(t, "Gradient Boosting", f.Model)
	assert.Len(t, f.Points, 36)
	assert.Len(t, f.AllMetrics, 3)
	assert.NotNil(t, f.NextHour)
}

func TestGetForecast_OtherModelDoesNotSwitch(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/forecast?model=Linear+Regression", "")
	require.Equal(t, http.StatusOK, w.Code)
	lr := decode[ws.ForecastPayload](t, w)
	assert.Equal(t, "Linear Regression", lr.Model)
	assert.Len(t, lr.Points, 36)

	assert.Equal(t, model.ModelGradientBoosting, ts.engine.Model())

	w = ts.do(t, http.MethodGet, "/api/forecast?model=Prophet", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetForecast_Range(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/forecast?from=2024-11-21T22:00:00Z&to=2024-11-22T02:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	f := decode[ws.ForecastPayload](t, w)
	require.Len(t, f.Points, 4)
	assert.Equal(t, "2024-11-21T22:00:00Z", f.Points[0].Timestamp)
	assert.False(t, f.Points[1].IsFuture)
	assert.True(t, f.Points[2].IsFuture)

	w = ts.do(t, http.MethodGet, "/api/forecast?model=Linear+Regression&from=2024-11-21T22:00:00Z&to=2024-11-22T02:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	f = decode[ws.ForecastPayload](t, w)
	assert.Equal(t, "Linear Regression", f.Model)
	require.Len(t, f.Points, 4)
	assert.Equal(t, "2024-11-21T22:00:00Z", f.Points[0].Timestamp)

	w = ts.do(t, http.MethodGet, "/api/forecast?from=2024-11-22T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	f = decode[ws.ForecastPayload](t, w)
	require.NotEmpty(t, f.Points)
	assert.Equal(t, "2024-11-22T00:00:00Z", f.Points[0].Timestamp)

	// Ranged reads leave the published forecast whole.
	full := decode[ws.ForecastPayload](t, ts.do(t, http.MethodGet, "/api/forecast", ""))
	assert.Greater(t, len(full.Points), 4)

	w = ts.do(t, http.MethodGet, "/api/forecast?from=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/forecast?from=2024-11-22T00:00:00Z&to=2024-11-21T00:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestModels(t *testing.T) {
	ts := newTestServer(t, nil)

	p := decode[ws.ModelsPayload](t, ts.do(t, http.MethodGet, "/api/models", ""))
	assert.Equal(t, []string{"Linear Regression", "Random Forest", "Gradient Boosting"}, p.Models)
	assert.Equal(t, "Gradient Boosting", p.Current)

	// Before any data the selection is stored and acknowledged.
	w := ts.do(t, http.MethodPut, "/api/model", `{"model":"Random Forest"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, model.ModelRandomForest, ts.engine.Model())

	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	w = ts.do(t, http.MethodPut, "/api/model", `{"model":"Linear Regression"}`)
	require.Equal(t, http.StatusOK, w.Code)
	f := decode[ws.ForecastPayload](t, w)
	assert.Equal(t, "Linear Regression", f.Model)
	assert.Equal(t, uint64(2), f.Seq)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/model", `{"model":"Prophet"}`).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodPut, "/api/model", `{`).Code)
}

func TestGetMetrics(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := ts.engine.Refresh(context.Background())
	require.NoError(t, err)

	w := ts.do(t, http.MethodGet, "/api/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Model   string                   `json:"model"`
		Metrics ws.MetricsPayload        `json:"metrics"`
		Folds   []ws.FoldPayload         `json:"folds"`
		Models  []ws.ModelMetricsPayload `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Gradient Boosting", resp.Model)
	assert.Len(t, resp.Folds, 4)
	require.Len(t, resp.Models, 3)
	assert.True(t, resp.Metrics.MAE.Equal(resp.Models[2].Metrics.MAE))
}

func TestGetHistory(t *testing.T) {
	ts := newTestServer(t, nil)
	for range 3 {
		_, err := ts.engine.Refresh(context.Background())
		require.NoError(t, err)
	}

	var resp struct {
		History []HistoryEntry `json:"history"`
		Total   int            `json:"total"`
	}
	w := ts.do(t, http.MethodGet, "/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.History, 2)
	assert.Equal(t, uint64(3), resp.History[0].Seq)
	assert.Equal(t, uint64(2), resp.History[1].Seq)
	assert.Equal(t, 36, resp.History[0].Points)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/history?limit=0", "").Code)
}

func TestGetHorizon(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/horizon?price=50&temp=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HorizonResponse](t, w)
	// 50 + 0.35 * (15 - 5)
	assert.Equal(t, "53.5", resp.Predicted.String())

	w = ts.do(t, http.MethodGet, "/api/horizon?price=50&temp=20", "")
	resp = decode[HorizonResponse](t, w)
	assert.Equal(t, "50", resp.Predicted.String())

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/horizon?price=50", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/horizon?price=abc&temp=1", "").Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/horizon?price=NaN&temp=1", "").Code)
}
