package assignment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/store"
	"github.com/kilianp07/fleetassign/infra/logger"
)

func vehicle(id string, capacity float64) model.Vehicle {
	return model.Vehicle{ID: id, OperatorID: "op-" + id, CapacityKg: capacity, Rating: 5, Available: true, Status: model.VehicleAvailable}
}

func newServer(t *testing.T, fx store.Fixtures, token string) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	require.NoError(t, st.Seed(context.Background(), fx))
	m, err := dispatch.NewManager(dispatch.Config{}, st, nil, nil, nil, nil, logger.NopLogger{})
	require.NoError(t, err)
	ls, err := logging.NewJSONLStore(filepath.Join(t.TempDir(), "runs.log"))
	require.NoError(t, err)
	m.SetLogStore(ls)
	srv := httptest.NewServer(NewHandler(m, token, logger.NopLogger{}))
	t.Cleanup(srv.Close)
	return srv, st
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestAssignAutoEmptyPendingSet(t *testing.T) {
	srv, _ := newServer(t, store.Fixtures{Vehicles: []model.Vehicle{vehicle("v1", 1000)}}, "")
	resp, body := do(t, http.MethodPost, srv.URL+"/api/assign-auto", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))
}

func TestAssignAutoOutcomes(t *testing.T) {
	srv, _ := newServer(t, store.Fixtures{
		Vehicles: []model.Vehicle{vehicle("A", 400), vehicle("B", 600)},
		Orders: []model.Order{
			{ID: "o1", Weight: 500, Status: model.StatusPending, CreatedAt: time.Now().Add(-time.Hour)},
			{ID: "o2", Weight: 900, Status: model.StatusPending, CreatedAt: time.Now()},
		},
	}, "")
	resp, body := do(t, http.MethodPost, srv.URL+"/api/assign-auto", map[string]any{"strategy": "nearest"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Run-ID"))
	assert.JSONEq(t, `[
		{"order_id": "o1", "vehicle_id": "B", "score": 50, "reason": "assigned"},
		{"order_id": "o2", "vehicle_id": null, "score": 0, "reason": "no_eligible_vehicle"}
	]`, string(body))

	resp, body = do(t, http.MethodGet, srv.URL+"/api/assignment/logs?vehicle_id=B", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var recs []logging.LogRecord
	require.NoError(t, json.Unmarshal(body, &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "nearest", recs[0].Strategy)
}

func TestAssignAutoValidation(t *testing.T) {
	srv, _ := newServer(t, store.Fixtures{}, "")
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/assign-auto", map[string]any{"strategy": "fastest"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/assign-auto", map[string]any{"order_ids": []string{"ghost"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAssignOneStatusCodes(t *testing.T) {
	srv, st := newServer(t, store.Fixtures{
		Vehicles: []model.Vehicle{vehicle("v1", 1000), vehicle("tiny", 10)},
		Orders:   []model.Order{{ID: "o1", Weight: 100, Status: model.StatusPending, CreatedAt: time.Now()}},
	}, "")
	url := srv.URL + "/api/orders/o1/assign"

	resp, body := do(t, http.MethodPost, url, map[string]any{"vehicle_id": "tiny"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), `"ineligible_reason":"insufficient_capacity"`)

	resp, _ = do(t, http.MethodPost, url, map[string]any{"vehicle_id": "ghost"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = do(t, http.MethodPost, srv.URL+"/api/orders/ghost/assign", map[string]any{"vehicle_id": "v1"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodPost, url, map[string]any{"vehicle_id": "v1", "actor": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out dispatch.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, dispatch.ReasonAssigned, out.Reason)

	resp, body = do(t, http.MethodPost, url, map[string]any{"vehicle_id": "v1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), `"reason":"conflict"`)

	o, _ := st.GetOrder(context.Background(), "o1")
	assert.Equal(t, "v1", o.VehicleID)

	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewBufferString("{"))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScoreStatusAndTracking(t *testing.T) {
	srv, _ := newServer(t, store.Fixtures{
		Vehicles: []model.Vehicle{vehicle("B", 600)},
		Orders:   []model.Order{{ID: "o1", ClientID: "c1", Weight: 500, Status: model.StatusPending, CreatedAt: time.Now()}},
	}, "")

	resp, body := do(t, http.MethodGet, srv.URL+"/api/score?order_id=o1&vehicle_id=B", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rep dispatch.ScoreReport
	require.NoError(t, json.Unmarshal(body, &rep))
	assert.True(t, rep.Eligible)
	require.NotNil(t, rep.Breakdown)
	assert.Equal(t, 50.0, rep.Breakdown.Total)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/score?order_id=o1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/orders/o1/assign", map[string]any{"vehicle_id": "B"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/api/orders/o1/status", map[string]any{
		"status": "picked_up", "latitude": 48.85, "longitude": 2.35, "actor": "driver",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var o model.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, model.StatusPickedUp, o.Status)

	resp, _ = do(t, http.MethodPost, srv.URL+"/api/orders/o1/status", map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/api/orders/o1/tracking", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []model.TrackingEntry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	kinds := map[model.TrackingKind]model.TrackingEntry{}
	for _, e := range entries {
		kinds[e.Kind] = e
	}
	require.Contains(t, kinds, model.TrackVehicleAssigned)
	require.Contains(t, kinds, model.TrackPickedUp)
	assert.NotNil(t, kinds[model.TrackPickedUp].Position)
	assert.Equal(t, "driver", kinds[model.TrackPickedUp].Actor)

	resp, _ = do(t, http.MethodGet, srv.URL+"/api/orders/ghost/tracking", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTokenRequired(t *testing.T) {
	srv, _ := newServer(t, store.Fixtures{}, "tok")
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/assign-auto", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/assign-auto", nil)
	req.Header.Set("Authorization", "Bearer tok")
	r2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r2.Body.Close()
	assert.Equal(t, http.StatusOK, r2.StatusCode)
}

type downService struct{ Service }

func (downService) RunBatch(context.Context, dispatch.BatchRequest) (dispatch.BatchResult, error) {
	return dispatch.BatchResult{}, fmt.Errorf("list pending orders: %w", dispatch.ErrDependencyUnavailable)
}

func (downService) Logs(context.Context, logging.LogQuery) ([]logging.LogRecord, error) {
	return nil, fmt.Errorf("query: %w", dispatch.ErrDependencyUnavailable)
}

func TestDependencyFailureIs503(t *testing.T) {
	srv := httptest.NewServer(NewHandler(downService{}, "", logger.NopLogger{}))
	defer srv.Close()
	resp, _ := do(t, http.MethodPost, srv.URL+"/api/assign-auto", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/api/assignment/logs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	guard := fmt.Errorf("vehicle v1: %w: %w", store.ErrConflict, &dispatch.IneligibleError{VehicleID: "v1", Reason: dispatch.IneligibleMissionCap})
	assert.Equal(t, http.StatusConflict, statusFor(guard))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&dispatch.IneligibleError{VehicleID: "v1"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
