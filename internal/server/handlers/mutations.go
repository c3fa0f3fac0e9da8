package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/storage"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// maxMutationBody предел размера тела запроса мутации
const maxMutationBody = 1 << 20

var (
	appliedTotal  = metrics.NewCounter(`offlinekit_server_mutations_total{result="applied"}`)
	replayedTotal = metrics.NewCounter(`offlinekit_server_mutations_total{result="replayed"}`)
	refusedTotal  = metrics.NewCounter(`offlinekit_server_mutations_total{result="refused"}`)
)

// MutationHandler applies client mutations
type MutationHandler struct {
	logger    *slog.Logger
	storage   storage.MutationStorage
	validator *PayloadValidator
}

// NewMutationHandler creates a new mutation handler
func NewMutationHandler(logger *slog.Logger, s storage.MutationStorage, v *PayloadValidator) *MutationHandler {
	return &MutationHandler{
		logger:    logger,
		storage:   s,
		validator: v,
	}
}

// Apply обрабатывает POST /api/v1/mutations.
// Мутация с уже применённым ID возвращает сохранённый результат с replayed=true.
func (h *MutationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		h.logger.Error("User ID not found in context")
		WriteError(h.logger, w, http.StatusUnauthorized, api.CodeUnauthorized, "missing user")
		return
	}

	var req api.MutationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMutationBody)).Decode(&req); err != nil {
		h.refuse(w, http.StatusBadRequest, api.CodeInvalidRequest, "invalid request body")
		return
	}

	if req.ID == "" || req.TargetEntity == "" {
		h.refuse(w, http.StatusBadRequest, api.CodeInvalidRequest, "id and target_entity are required")
		return
	}
	if key := r.Header.Get(api.IdempotencyKeyHeader); key != req.ID {
		h.refuse(w, http.StatusBadRequest, api.CodeKeyMismatch, api.IdempotencyKeyHeader+" must equal the mutation id")
		return
	}

	kind := models.MutationKind(req.Kind)
	if !kind.Valid() {
		h.refuse(w, http.StatusBadRequest, api.CodeInvalidRequest, "unknown kind "+req.Kind)
		return
	}
	if err := h.validator.Validate(kind, req.TargetEntity, req.Payload); err != nil {
		h.logger.Warn("Mutation payload rejected", "mutation_id", req.ID, "entity", req.TargetEntity, "error", err)
		h.refuse(w, http.StatusUnprocessableEntity, api.CodeValidationFailed, err.Error())
		return
	}

	applied, err := h.storage.ApplyMutation(r.Context(), &storage.Mutation{
		ID:           req.ID,
		UserID:       userID,
		Kind:         kind,
		TargetEntity: req.TargetEntity,
		Payload:      req.Payload,
	})
	if err != nil {
		h.storageError(w, req, err)
		return
	}

	status := http.StatusCreated
	if applied.Replayed {
		status = http.StatusOK
		replayedTotal.Inc()
		h.logger.Info("Mutation replayed", "mutation_id", req.ID, "user_id", userID)
	} else {
		appliedTotal.Inc()
		h.logger.Debug("Mutation applied",
			"mutation_id", req.ID, "user_id", userID, "entity", req.TargetEntity, "version", applied.Version)
	}

	writeJSON(h.logger, w, status, api.MutationResponse{
		ID:           applied.MutationID,
		TargetEntity: applied.TargetEntity,
		Version:      applied.Version,
		AppliedAt:    applied.AppliedAt,
		Replayed:     applied.Replayed,
	})
}

func (h *MutationHandler) storageError(w http.ResponseWriter, req api.MutationRequest, err error) {
	switch {
	case errors.Is(err, storage.ErrDuplicateEntity):
		h.refuse(w, http.StatusConflict, api.CodeDuplicateEntity, err.Error())
	case errors.Is(err, storage.ErrEntityNotFound):
		h.refuse(w, http.StatusNotFound, api.CodeEntityNotFound, err.Error())
	case errors.Is(err, storage.ErrKeyReused):
		h.refuse(w, http.StatusUnprocessableEntity, api.CodeKeyReused, err.Error())
	case errors.Is(err, storage.ErrInvalidMutation):
		h.refuse(w, http.StatusBadRequest, api.CodeInvalidRequest, err.Error())
	default:
		h.logger.Error("Failed to apply mutation", "mutation_id", req.ID, "error", err)
		WriteError(h.logger, w, http.StatusInternalServerError, api.CodeInternal, "failed to apply mutation")
	}
}

func (h *MutationHandler) refuse(w http.ResponseWriter, status int, code, msg string) {
	refusedTotal.Inc()
	WriteError(h.logger, w, status, code, msg)
}
