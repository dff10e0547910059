package api

import (
	"context"
	"net/http"
	"time"

	"log/slog"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type SystemHandler struct {
	db Pinger
}

func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Database string `json:"database,omitempty"`
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Service: "skillswap"}
	if h.db == nil {
		writeJSON(w, resp, http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("health check: database unreachable", slog.Any("err", err))
		resp.Status = "degraded"
		resp.Database = "unreachable"
		writeJSON(w, resp, http.StatusServiceUnavailable)
		return
	}
	resp.Database = "ok"
	writeJSON(w, resp, http.StatusOK)
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": version, "buildTime": buildTime}, http.StatusOK)
	}
}
