package httpx

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves readiness checks. With no Pinger it only reports
// that the process is up.
type HealthHandler struct {
	DB      Pinger
	Timeout time.Duration
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, map[string]any{"ok": true, "status": "ok"}
	if h.DB != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, map[string]any{"ok": false, "status": "degraded", "error": "database_unreachable"}
		}
	}
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}
