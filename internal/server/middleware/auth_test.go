package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/handlers"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/server/jwt"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

const testSecret = "test-secret-key-test-secret-key!"

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	return slog.New(slog.NewTextHandler(io.Discard, opts))
}

// testHandler is a simple handler that checks context values
func testHandler(t *testing.T, expectedUserID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := handlers.GetUserID(r.Context())
		require.True(t, ok, "user_id should be in context")
		assert.Equal(t, expectedUserID, userID)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

func TestAuthMiddleware_Success(t *testing.T) {
	tokens := jwt.NewService(testSecret, 15*time.Minute)
	token, _, err := tokens.Issue("user123")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), tokens)(testHandler(t, "user123"))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestAuthMiddleware_Rejected(t *testing.T) {
	tokens := jwt.NewService(testSecret, 15*time.Minute)
	valid, _, err := tokens.Issue("user123")
	require.NoError(t, err)

	foreign, _, err := jwt.NewService("another-secret-another-secret-!!", time.Minute).Issue("user123")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic " + valid},
		{name: "no token", header: "Bearer "},
		{name: "no separator", header: "Bearer" + valid},
		{name: "foreign secret", header: "Bearer " + foreign},
		{name: "garbage", header: "Bearer abc.def.ghi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := AuthMiddleware(setupTestLogger(), tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var resp api.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, api.CodeUnauthorized, resp.Code)
		})
	}
}

func TestAuthMiddleware_CaseInsensitiveScheme(t *testing.T) {
	tokens := jwt.NewService(testSecret, time.Minute)
	token, _, err := tokens.Issue("u")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), tokens)(testHandler(t, "u"))
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
