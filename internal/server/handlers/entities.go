package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/storage"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// EntityHandler serves the current state of entities
type EntityHandler struct {
	logger  *slog.Logger
	storage storage.MutationStorage
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(logger *slog.Logger, s storage.MutationStorage) *EntityHandler {
	return &EntityHandler{logger: logger, storage: s}
}

// Get обрабатывает GET /api/v1/entities/{key}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		WriteError(h.logger, w, http.StatusUnauthorized, api.CodeUnauthorized, "missing user")
		return
	}

	key := r.PathValue("key")
	if key == "" {
		WriteError(h.logger, w, http.StatusBadRequest, api.CodeInvalidRequest, "entity key is required")
		return
	}

	e, err := h.storage.GetEntity(r.Context(), userID, key)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			WriteError(h.logger, w, http.StatusNotFound, api.CodeEntityNotFound, key)
			return
		}
		h.logger.Error("Failed to get entity", "entity", key, "error", err)
		WriteError(h.logger, w, http.StatusInternalServerError, api.CodeInternal, "failed to get entity")
		return
	}

	writeJSON(h.logger, w, http.StatusOK, api.EntityResponse{
		Key:       e.Key,
		Data:      e.Data,
		Version:   e.Version,
		UpdatedAt: e.UpdatedAt,
		Deleted:   e.Deleted,
	})
}
