package vehicles

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/store"
)

func seeded(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	err := st.Seed(context.Background(), store.Fixtures{
		Vehicles: []model.Vehicle{
			{ID: "v2", CapacityKg: 500, Rating: 4, Status: model.VehicleMaintenance},
			{ID: "v1", CapacityKg: 1000, Rating: 5, Available: true, Status: model.VehicleAvailable},
		},
		Orders: []model.Order{
			{ID: "o1", Weight: 10, Status: model.StatusAssigned, VehicleID: "v1"},
			{ID: "o2", Weight: 10, Status: model.StatusInTransit, VehicleID: "v1"},
		},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return st
}

func serve(r Roster) *http.ServeMux {
	mux := http.NewServeMux()
	Register(mux, r, nil)
	return mux
}

func TestStatusHandler_Basic(t *testing.T) {
	mux := serve(seeded(t))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []Status
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 || out[0].ID != "v1" || out[1].ID != "v2" {
		t.Fatalf("unexpected output %#v", out)
	}
	if out[0].ActiveMissions != 2 || !out[0].Ready {
		t.Fatalf("v1 load not reported: %#v", out[0])
	}
	if out[1].Ready {
		t.Fatalf("vehicle in maintenance reported ready")
	}
}

func TestStatusHandler_Filter(t *testing.T) {
	mux := serve(seeded(t))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles?status=maintenance", nil))
	var out []Status
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out) != 1 || out[0].ID != "v2" {
		t.Fatalf("status filter bad %#v", out)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles?available=true", nil))
	out = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if len(out) != 1 || out[0].ID != "v1" {
		t.Fatalf("available filter bad %#v", out)
	}
}

func TestStatusHandler_Empty(t *testing.T) {
	mux := serve(store.NewMemoryStore())
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if rr.Body.String() != "[]\n" {
		t.Fatalf("expected empty array got %s", rr.Body.String())
	}
}

func TestPositionHandler(t *testing.T) {
	st := seeded(t)
	mux := serve(st)
	at := time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)
	body, _ := json.Marshal(map[string]any{"latitude": 48.85, "longitude": 2.35, "at": at})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/vehicles/v1/position", bytes.NewReader(body)))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	v, err := st.GetVehicle(context.Background(), "v1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Position == nil || v.Position.Lat != 48.85 || !v.PositionAt.Equal(at) {
		t.Fatalf("position not stored: %#v", v)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/vehicles/ghost/position", bytes.NewReader(body)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	bad := []byte(`{"latitude": 120, "longitude": 0}`)
	mux.ServeHTTP(rr, httptest.NewRequest("POST", "/api/vehicles/v1/position", bytes.NewReader(bad)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

type brokenRoster struct{}

func (brokenRoster) ListVehicles(context.Context) ([]model.Vehicle, error) {
	return nil, errors.New("db down")
}
func (brokenRoster) ActiveMissionCounts(context.Context) (map[string]int, error) { return nil, nil }
func (brokenRoster) UpdatePosition(context.Context, string, model.Coordinates, time.Time) error {
	return errors.New("db down")
}

func TestStatusHandler_StoreDown(t *testing.T) {
	mux := serve(brokenRoster{})
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest("GET", "/api/vehicles", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rr.Code)
	}
}
