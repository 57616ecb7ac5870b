// Package assignment exposes the assignment engine over HTTP.
package assignment

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/kilianp07/fleetassign/core/dispatch"
	"github.com/kilianp07/fleetassign/core/dispatch/logging"
	"github.com/kilianp07/fleetassign/core/logger"
	"github.com/kilianp07/fleetassign/core/model"
)

// Service is the part of dispatch.Manager used by the handlers.
type Service interface {
	RunBatch(ctx context.Context, req dispatch.BatchRequest) (dispatch.BatchResult, error)
	AssignOne(ctx context.Context, orderID, vehicleID, actor string) (dispatch.Outcome, error)
	Score(ctx context.Context, orderID, vehicleID string) (dispatch.ScoreReport, error)
	ChangeStatus(ctx context.Context, req dispatch.StatusChange) (model.Order, error)
	Tracking(ctx context.Context, orderID string) ([]model.TrackingEntry, error)
	Logs(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error)
}

type handler struct {
	svc Service
	log logger.Logger
}

// Register mounts the assignment routes on mux. Requests must include an
// Authorization header with "Bearer <token>" when token is non-empty.
func Register(mux *http.ServeMux, svc Service, token string, log logger.Logger) {
	h := &handler{svc: svc, log: log}
	mux.Handle("POST /api/orders/{id}/assign", RequireToken(token, http.HandlerFunc(h.assignOne)))
	mux.Handle("POST /api/assign-auto", RequireToken(token, http.HandlerFunc(h.assignAuto)))
	mux.Handle("GET /api/score", RequireToken(token, http.HandlerFunc(h.score)))
	mux.Handle("POST /api/orders/{id}/status", RequireToken(token, http.HandlerFunc(h.changeStatus)))
	mux.Handle("GET /api/orders/{id}/tracking", RequireToken(token, http.HandlerFunc(h.tracking)))
	mux.Handle("GET /api/assignment/logs", RequireToken(token, NewLogHandler(svc)))
}

// NewHandler returns a mux serving only the assignment routes.
func NewHandler(svc Service, token string, log logger.Logger) http.Handler {
	mux := http.NewServeMux()
	Register(mux, svc, token, log)
	return mux
}

// RequireToken rejects requests without the expected bearer token. An empty
// token lets every request through.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type assignRequest struct {
	VehicleID string `json:"vehicle_id"`
	Actor     string `json:"actor"`
}

func (h *handler) assignOne(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decode(w, r, &req) {
		return
	}
	out, err := h.svc.AssignOne(r.Context(), r.PathValue("id"), req.VehicleID, req.Actor)
	if err != nil {
		h.fail(w, err, &out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type autoRequest struct {
	OrderIDs []string `json:"order_ids"`
	Strategy string   `json:"strategy"`
	Actor    string   `json:"actor"`
}

func (h *handler) assignAuto(w http.ResponseWriter, r *http.Request) {
	var req autoRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	res, err := h.svc.RunBatch(r.Context(), dispatch.BatchRequest{
		OrderIDs: req.OrderIDs,
		Strategy: req.Strategy,
		Trigger:  dispatch.TriggerAPI,
		Actor:    req.Actor,
	})
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	w.Header().Set("X-Run-ID", res.RunID)
	w.Header().Set("X-Strategy", string(res.Strategy))
	writeJSON(w, http.StatusOK, res.Outcomes)
}

func (h *handler) score(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rep, err := h.svc.Score(r.Context(), q.Get("order_id"), q.Get("vehicle_id"))
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type statusRequest struct {
	Status    string   `json:"status"`
	Note      string   `json:"note"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Actor     string   `json:"actor"`
}

func (h *handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	change := dispatch.StatusChange{
		OrderID: r.PathValue("id"),
		Status:  req.Status,
		Note:    req.Note,
		Actor:   req.Actor,
	}
	if req.Latitude != nil && req.Longitude != nil {
		change.Position = &model.Coordinates{Lat: *req.Latitude, Lon: *req.Longitude}
	}
	o, err := h.svc.ChangeStatus(r.Context(), change)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *handler) tracking(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Tracking(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{Error: "expected application/json"})
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.ContentLength == 0 {
		return true
	}
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
