package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/storage"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupValidator(t *testing.T) *PayloadValidator {
	t.Helper()
	v, err := NewPayloadValidator()
	require.NoError(t, err)
	return v
}

func mutationRequest(t *testing.T, body api.MutationRequest, key string, userID string) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mutations", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(api.IdempotencyKeyHeader, key)
	}
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	return req
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestMutationHandler_Apply(t *testing.T) {
	store := &storage.MutationStorageMock{
		ApplyMutationFunc: func(ctx context.Context, m *storage.Mutation) (*storage.Applied, error) {
			return &storage.Applied{MutationID: m.ID, TargetEntity: m.TargetEntity, Version: 1, AppliedAt: 1000}, nil
		},
	}
	h := NewMutationHandler(setupTestLogger(), store, setupValidator(t))

	w := httptest.NewRecorder()
	h.Apply(w, mutationRequest(t, api.MutationRequest{
		ID:           "m-1",
		Kind:         "create",
		TargetEntity: "task:1",
		Payload:      json.RawMessage(`{"title":"buy milk"}`),
	}, "m-1", "user-1"))

	require.Equal(t, http.StatusCreated, w.Code)
	var resp api.MutationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "m-1", resp.ID)
	assert.Equal(t, int64(1), resp.Version)
	assert.False(t, resp.Replayed)

	calls := store.ApplyMutationCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "user-1", calls[0].M.UserID)
	assert.JSONEq(t, `{"title":"buy milk"}`, string(calls[0].M.Payload))
}

func TestMutationHandler_Replay(t *testing.T) {
	store := &storage.MutationStorageMock{
		ApplyMutationFunc: func(ctx context.Context, m *storage.Mutation) (*storage.Applied, error) {
			return &storage.Applied{MutationID: m.ID, TargetEntity: m.TargetEntity, Version: 3, Replayed: true}, nil
		},
	}
	h := NewMutationHandler(setupTestLogger(), store, setupValidator(t))

	w := httptest.NewRecorder()
	h.Apply(w, mutationRequest(t, api.MutationRequest{
		ID: "m-1", Kind: "delete", TargetEntity: "task:1",
	}, "m-1", "user-1"))

	require.Equal(t, http.StatusOK, w.Code)
	var resp api.MutationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.True(t, resp.Replayed)
	assert.Equal(t, int64(3), resp.Version)
}

func TestMutationHandler_Refused(t *testing.T) {
	valid := api.MutationRequest{ID: "m-1", Kind: "update", TargetEntity: "task:1", Payload: json.RawMessage(`{"done":true}`)}

	tests := []struct {
		storeErr   error
		name       string
		key        string
		userID     string
		wantCode   string
		req        api.MutationRequest
		wantStatus int
		wantStored bool
	}{
		{
			name: "no user", req: valid, key: "m-1",
			wantStatus: http.StatusUnauthorized, wantCode: api.CodeUnauthorized,
		},
		{
			name: "missing idempotency key", req: valid, userID: "u",
			wantStatus: http.StatusBadRequest, wantCode: api.CodeKeyMismatch,
		},
		{
			name: "idempotency key mismatch", req: valid, key: "m-2", userID: "u",
			wantStatus: http.StatusBadRequest, wantCode: api.CodeKeyMismatch,
		},
		{
			name: "missing target", req: api.MutationRequest{ID: "m-1", Kind: "create"}, key: "m-1", userID: "u",
			wantStatus: http.StatusBadRequest, wantCode: api.CodeInvalidRequest,
		},
		{
			name: "unknown kind", req: api.MutationRequest{ID: "m-1", Kind: "upsert", TargetEntity: "task:1"}, key: "m-1", userID: "u",
			wantStatus: http.StatusBadRequest, wantCode: api.CodeInvalidRequest,
		},
		{
			name:       "schema violation",
			req:        api.MutationRequest{ID: "m-1", Kind: "create", TargetEntity: "task:1", Payload: json.RawMessage(`{"title":""}`)},
			key:        "m-1",
			userID:     "u",
			wantStatus: http.StatusUnprocessableEntity, wantCode: api.CodeValidationFailed,
		},
		{
			name: "duplicate entity", req: valid, key: "m-1", userID: "u", storeErr: storage.ErrDuplicateEntity,
			wantStatus: http.StatusConflict, wantCode: api.CodeDuplicateEntity, wantStored: true,
		},
		{
			name: "entity not found", req: valid, key: "m-1", userID: "u", storeErr: storage.ErrEntityNotFound,
			wantStatus: http.StatusNotFound, wantCode: api.CodeEntityNotFound, wantStored: true,
		},
		{
			name: "key reused", req: valid, key: "m-1", userID: "u", storeErr: storage.ErrKeyReused,
			wantStatus: http.StatusUnprocessableEntity, wantCode: api.CodeKeyReused, wantStored: true,
		},
		{
			name: "storage failure", req: valid, key: "m-1", userID: "u", storeErr: errors.New("disk full"),
			wantStatus: http.StatusInternalServerError, wantCode: api.CodeInternal, wantStored: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &storage.MutationStorageMock{
				ApplyMutationFunc: func(ctx context.Context, m *storage.Mutation) (*storage.Applied, error) {
					return nil, tt.storeErr
				},
			}
			h := NewMutationHandler(setupTestLogger(), store, setupValidator(t))

			w := httptest.NewRecorder()
			h.Apply(w, mutationRequest(t, tt.req, tt.key, tt.userID))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, w).Code)
			assert.Equal(t, tt.wantStored, len(store.ApplyMutationCalls()) == 1)
		})
	}
}

func TestMutationHandler_MalformedBody(t *testing.T) {
	h := NewMutationHandler(setupTestLogger(), &storage.MutationStorageMock{}, setupValidator(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/mutations", bytes.NewReader([]byte(`{not json`)))
	req = req.WithContext(WithUserID(req.Context(), "u"))
	w := httptest.NewRecorder()
	h.Apply(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, api.CodeInvalidRequest, decodeError(t, w).Code)
}
