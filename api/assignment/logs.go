package assignment

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/fleetassign/core/dispatch/logging"
)

// LogQuerier reads the assignment audit trail.
type LogQuerier interface {
	Logs(ctx context.Context, q logging.LogQuery) ([]logging.LogRecord, error)
}

// NewLogHandler returns an HTTP handler exposing assignment run records via
// GET /api/assignment/logs. Malformed time bounds are ignored.
func NewLogHandler(src LogQuerier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v := r.URL.Query()
		q := logging.LogQuery{
			OrderID:   v.Get("order_id"),
			VehicleID: v.Get("vehicle_id"),
			Strategy:  v.Get("strategy"),
		}
		if s := v.Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := v.Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		if s := v.Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				q.Limit = n
			}
		}
		records, err := src.Logs(r.Context(), q)
		if err != nil {
			writeJSON(w, statusFor(err), errorBody{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, records)
	})
}
