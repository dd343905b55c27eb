package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
)

var errGatewayNotReady = errors.New("discord gateway session not ready")

// Handlers holds dependencies for HTTP endpoints.
type Handlers struct {
	db           *sql.DB
	gatewayReady func() bool
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests: the database must answer
// and the Discord gateway session must have completed its handshake.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"gateway", func() error {
			if h.gatewayReady != nil && !h.gatewayReady() {
				return errGatewayNotReady
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

type statusResponse struct {
	TotalEvents   int64  `json:"total_events"`
	DistinctUsers int64  `json:"distinct_users"`
	LastMarkUTC   string `json:"last_mark_utc,omitempty"`
}

// HandleStatus reports store-level attendance counters.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var resp statusResponse

	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attendance`).Scan(&resp.TotalEvents); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT user_id) FROM attendance`).Scan(&resp.DistinctUsers); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var last sql.NullString
	if err := h.db.QueryRowContext(ctx, `SELECT MAX(ts_utc) FROM attendance`).Scan(&last); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if last.Valid {
		resp.LastMarkUTC = last.String
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
