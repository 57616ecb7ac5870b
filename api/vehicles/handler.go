// Package vehicles exposes the transporter roster over HTTP.
package vehicles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/kilianp07/fleetassign/core/model"
	"github.com/kilianp07/fleetassign/core/store"
)

// Roster is the part of store.Store used by the vehicle handlers.
type Roster interface {
	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	ActiveMissionCounts(ctx context.Context) (map[string]int, error)
	UpdatePosition(ctx context.Context, vehicleID string, pos model.Coordinates, at time.Time) error
}

// Status is a vehicle together with its current load.
type Status struct {
	model.Vehicle
	ActiveMissions int  `json:"active_missions"`
	Ready          bool `json:"ready"`
}

// NewStatusHandler returns an HTTP handler listing vehicles via GET /api/vehicles.
// The optional status and available query parameters filter the result.
func NewStatusHandler(r Roster) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		vehicles, err := r.ListVehicles(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		active, err := r.ActiveMissionCounts(req.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		status := req.URL.Query().Get("status")
		avail := req.URL.Query().Get("available")
		entries := make([]Status, 0, len(vehicles))
		for _, v := range vehicles {
			if status != "" && string(v.Status) != status {
				continue
			}
			if avail != "" && (avail == "true") != v.Available {
				continue
			}
			entries = append(entries, Status{Vehicle: v, ActiveMissions: active[v.ID], Ready: v.Ready()})
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

type positionRequest struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	At        *time.Time `json:"at"`
}

// NewPositionHandler records a GPS fix via POST /api/vehicles/{id}/position.
func NewPositionHandler(r Roster) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body positionRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
			http.Error(w, "invalid body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if body.Latitude < -90 || body.Latitude > 90 || body.Longitude < -180 || body.Longitude > 180 {
			http.Error(w, "coordinates out of range", http.StatusBadRequest)
			return
		}
		at := time.Now().UTC()
		if body.At != nil {
			at = *body.At
		}
		err := r.UpdatePosition(req.Context(), req.PathValue("id"), model.Coordinates{Lat: body.Latitude, Lon: body.Longitude}, at)
		switch {
		case errors.Is(err, store.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case err != nil:
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
}

// Register mounts the vehicle routes on mux behind the optional bearer token.
func Register(mux *http.ServeMux, r Roster, guard func(http.Handler) http.Handler) {
	if guard == nil {
		guard = func(h http.Handler) http.Handler { return h }
	}
	mux.Handle("GET /api/vehicles", guard(NewStatusHandler(r)))
	mux.Handle("POST /api/vehicles/{id}/position", guard(NewPositionHandler(r)))
}
