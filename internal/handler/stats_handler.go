// internal/handler/stats_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/message-scheduler/internal/logging"
)

// StatsSource reports message counts per status.
type StatsSource interface {
	Stats(ctx context.Context) (map[string]int, error)
}

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type StatsHandler struct {
	Stats  StatsSource
	DB     Pinger
	Logger *zap.Logger
}

// GetStats returns {"success": true, "data": {"total":..,"pending":..,...}}.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.Stats(r.Context())
	if err != nil {
		logging.OrNop(h.Logger).Error("failed to fetch stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to fetch stats"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": stats})
}

// Healthz answers 200 when the database responds to a ping.
func (h *StatsHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			logging.OrNop(h.Logger).Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
