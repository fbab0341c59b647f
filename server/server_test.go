package server

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sartorproj/fluxcast/bundle"
	"github.com/sartorproj/fluxcast/calendar"
	"github.com/sartorproj/fluxcast/exogenous"
	"github.com/sartorproj/fluxcast/history"
	"github.com/sartorproj/fluxcast/metrics"
	"github.com/sartorproj/fluxcast/registry"
	"github.com/sartorproj/fluxcast/sarima"
	"github.com/sartorproj/fluxcast/service"
	"github.com/sartorproj/fluxcast/trainer"
)

type stubBackend struct {
	budget      time.Duration
	start, end  time.Time
	forecastErr error
}

func (b *stubBackend) TrainOutlet(_ context.Context, outlet string, budget time.Duration) (*service.TrainReport, error) {
	b.budget = budget
	if outlet == "Pau" {
		return nil, &history.UnknownTargetError{Outlet: outlet}
	}
	return &service.TrainReport{
		Result: &trainer.Result{
			Outlet:   outlet,
			RunID:    "run-1",
			Order:    sarima.Order{P: 1, D: 1, Q: 1, M: 53},
			AIC:      512.5,
			Quality:  "good",
			Trials:   7,
			Duration: 1500 * time.Millisecond,
		},
		Weeks: 156,
	}, nil
}

func (b *stubBackend) TrainAll(_ context.Context, budget time.Duration) (*service.Summary, error) {
	b.budget = budget
	return &service.Summary{
		Outcomes: []service.Outcome{
			{Outlet: "Dax", RunID: "run-2", Order: "(1,1,1)(0,0,0)[53]"},
			{Outlet: "Pau", Error: "history: unknown target"},
		},
		Trained: 1,
		Failed:  1,
	}, nil
}

func (b *stubBackend) Forecast(_ context.Context, outlet string, start, end time.Time) (*service.Report, error) {
	b.start, b.end = start, end
	if b.forecastErr != nil {
		return nil, b.forecastErr
	}
	return &service.Report{
		Outlet: outlet,
		RunID:  "run-1",
		Order:  "(1,1,1)(0,0,0)[53]",
		Start:  start,
		End:    end,
		Weeks: []service.Week{{
			Date:        start,
			Year:        2025,
			Week:        10,
			Forecast:    720,
			Lower:       math.NaN(),
			Upper:       math.NaN(),
			LastYear:    700,
			TwoYearsAgo: math.NaN(),
			Source:      exogenous.SourceForecast,
		}},
		Total:      720,
		TotalLower: math.NaN(),
		TotalUpper: math.NaN(),
		Caveats:    []string{"confidence bounds unavailable"},
	}, nil
}

func newTestServer(t *testing.T, withCatalog bool) (*Server, *stubBackend) {
	t.Helper()
	backend := &stubBackend{}
	var catalog Catalog
	if withCatalog {
		reg, err := registry.OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { reg.Close() })
		catalog = reg
	}
	s := New(backend, catalog)
	s.Gatherer = prometheus.NewRegistry()
	return s, backend
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rr := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, false)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveForecast()
	s.Gatherer = reg

	rr := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "fluxcast_forecasts_total 1")
}

func TestTrainOutlet(t *testing.T) {
	s, backend := newTestServer(t, false)
	rr := do(t, s.Handler(), http.MethodPost, "/outlets/Dax/train?budget=90s", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 90*time.Second, backend.budget)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Dax", got["outlet"])
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "(1,1,1)(0,0,0)[53]", got["order"])
	assert.Equal(t, 512.5, got["aic"])
	assert.Equal(t, "1.5s", got["duration"])
	assert.Equal(t, []any{}, got["caveats"])
}

func TestTrainOutletErrors(t *testing.T) {
	s, _ := newTestServer(t, false)
	h := s.Handler()

	rr := do(t, h, http.MethodPost, "/outlets/Dax/train?budget=soon", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, h, http.MethodPost, "/outlets/Pau/train", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "Pau")

	rr = do(t, h, http.MethodGet, "/outlets/Dax/train", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestTrainAll(t *testing.T) {
	s, backend := newTestServer(t, false)
	rr := do(t, s.Handler(), http.MethodPost, "/train", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, backend.budget)

	var got service.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Trained)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, "Pau", got.Outcomes[1].Outlet)
}

func TestForecastEncodesMissingValuesAsNull(t *testing.T) {
	s, backend := newTestServer(t, false)
	rr := do(t, s.Handler(), http.MethodGet, "/outlets/Dax/forecast?start=2025-03-03&end=2025-03-09", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, calendar.Date(2025, 3, 3), backend.start)
	assert.Equal(t, calendar.Date(2025, 3, 9), backend.end)

	assert.JSONEq(t, `{
		"outlet": "Dax",
		"run_id": "run-1",
		"order": "(1,1,1)(0,0,0)[53]",
		"start": "2025-03-03",
		"end": "2025-03-09",
		"weeks": [{
			"date": "2025-03-03",
			"year": 2025,
			"week": 10,
			"forecast": 720,
			"lower": null,
			"upper": null,
			"last_year": 700,
			"two_years_ago": null,
			"source": "forecast"
		}],
		"total": 720,
		"total_lower": null,
		"total_upper": null,
		"caveats": ["confidence bounds unavailable"]
	}`, rr.Body.String())
}

func TestForecastErrors(t *testing.T) {
	s, backend := newTestServer(t, false)
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/outlets/Dax/forecast?start=2025-03-03", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	backend.forecastErr = fmt.Errorf("%w: nothing left to forecast", service.ErrRange)
	rr = do(t, h, http.MethodGet, "/outlets/Dax/forecast?start=2020-03-03&end=2020-03-09", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	backend.forecastErr = fmt.Errorf("%w: Dax", bundle.ErrNotFound)
	rr = do(t, h, http.MethodGet, "/outlets/Dax/forecast?start=2025-03-03&end=2025-03-09", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"bundle: not found: Dax"}`, rr.Body.String())
}

func TestRegistryRoutes(t *testing.T) {
	s, _ := newTestServer(t, true)
	h := s.Handler()

	rr := do(t, h, http.MethodGet, "/sectors", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/sectors", `{"name":"Landes"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var sector registry.Sector
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sector))
	assert.Equal(t, "Landes", sector.Name)

	rr = do(t, h, http.MethodPost, "/outlets", fmt.Sprintf(`{"name":"Dax","sector_id":%d}`, sector.ID))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = do(t, h, http.MethodPost, "/outlets", `{"name":"Pau","sector_id":999}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, h, http.MethodGet, "/outlets/Dax", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var outlet registry.Outlet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outlet))
	assert.Equal(t, "Landes", outlet.Sector)

	rr = do(t, h, http.MethodGet, fmt.Sprintf("/sectors/%d/outlets", sector.ID), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var outlets []registry.Outlet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outlets))
	require.Len(t, outlets, 1)
	assert.Equal(t, "Dax", outlets[0].Name)

	rr = do(t, h, http.MethodDelete, fmt.Sprintf("/sectors/%d", sector.ID), "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, h, http.MethodDelete, "/outlets/Dax", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodDelete, fmt.Sprintf("/sectors/%d", sector.ID), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodDelete, "/outlets/Dax", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRegistryRoutesWithoutCatalog(t *testing.T) {
	s, _ := newTestServer(t, false)
	rr := do(t, s.Handler(), http.MethodGet, "/outlets", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, s.Handler(), http.MethodPost, "/sectors", `{"name":`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBadRequestBody(t *testing.T) {
	s, _ := newTestServer(t, true)
	rr := do(t, s.Handler(), http.MethodPost, "/sectors", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, s.Handler(), http.MethodPost, "/sectors", `{}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
