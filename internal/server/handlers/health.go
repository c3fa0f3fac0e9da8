package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// Pinger checks a dependency the server can't work without
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обрабатывает health check запросы
type HealthHandler struct {
	logger  *slog.Logger
	db      Pinger
	version string
}

// NewHealthHandler создает новый handler для health check
func NewHealthHandler(logger *slog.Logger, db Pinger, version string) *HealthHandler {
	return &HealthHandler{
		logger:  logger,
		db:      db,
		version: version,
	}
}

// Health обрабатывает GET /api/v1/health.
// Клиенты используют его как проверку связи: 503, если база недоступна.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := api.HealthResponse{
		Status:  "ok",
		Version: h.version,
		Time:    time.Now().UnixMilli(),
	}

	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Error("Database unavailable", "error", err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}

	writeJSON(h.logger, w, status, resp)
}
