package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetassign/config"
	"github.com/kilianp07/fleetassign/core/dispatch"
)

const fixtures = `
vehicles:
  - id: A
    operator_id: op-a
    capacity_kg: 400
    rating: 5
    available: true
    status: available
  - id: B
    operator_id: op-b
    capacity_kg: 600
    rating: 5
    available: true
    status: available
orders:
  - id: o1
    client_id: c1
    weight: 500
    status: pending
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	fx := filepath.Join(dir, "fixtures.yaml")
	require.NoError(t, os.WriteFile(fx, []byte(fixtures), 0o600))
	cfg := config.Default()
	cfg.Store.Fixtures = fx
	cfg.Logging.Path = filepath.Join(dir, "assignments.log")
	cfg.HTTP.Address = "127.0.0.1:0"
	return cfg
}

func TestServiceHandler(t *testing.T) {
	svc, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/assign-auto", "application/json", strings.NewReader(`{"strategy":"nearest"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var outs []dispatch.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outs))
	require.Len(t, outs, 1)
	require.NotNil(t, outs[0].VehicleID)
	assert.Equal(t, "B", *outs[0].VehicleID)
	assert.Equal(t, 50.0, outs[0].Score)

	vr, err := http.Get(srv.URL + "/api/vehicles")
	require.NoError(t, err)
	defer vr.Body.Close()
	var roster []map[string]any
	require.NoError(t, json.NewDecoder(vr.Body).Decode(&roster))
	require.Len(t, roster, 2)
	assert.EqualValues(t, 1, roster[1]["active_missions"])

	hr, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	hr.Body.Close()
	assert.Equal(t, http.StatusNoContent, hr.StatusCode)
}

func TestServiceTokenProtectsRoutes(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Token = "secret"
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.IntervalSeconds = 3600
	svc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not stop")
	}
}

func TestNewRejectsMissingFixtures(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Fixtures = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewReleasesComponentsOnFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Workers = 4
	cfg.Logging.Path = filepath.Join(t.TempDir(), "missing", "assignments.log")

	before := runtime.NumGoroutine()
	svc, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assignment log")
	assert.Nil(t, svc)
	// notification workers must not outlive the failed construction
	require.Eventually(t, func() bool { return runtime.NumGoroutine() <= before }, 2*time.Second, 10*time.Millisecond)
}
