package handler

import (
	"context"
	"log/slog"
	"net/http"
)

type pinger interface {
	Ping(ctx context.Context) error
	Location() string
}

// Health returns a health check handler that verifies the settings backend
// is reachable.
func Health(backend pinger) http.HandlerFunc {
	h := &BaseHandler{}
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		code := http.StatusOK

		if err := backend.Ping(r.Context()); err != nil {
			slog.Warn("health: settings backend unreachable", "location", backend.Location(), "err", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		err := h.writeJSON(w, code, apiResponse{
			Success: code == http.StatusOK,
			Data:    map[string]string{"status": status},
		}, nil)
		if err != nil {
			h.logError(r, err)
		}
	}
}
