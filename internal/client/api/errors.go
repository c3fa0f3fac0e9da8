package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// ErrUnavailable indicates that the server could not be reached
var ErrUnavailable = errors.New("server unavailable")

// RemoteError describes a failed call. Kind tells the queue whether the
// change never arrived (transport) or was refused (rejected, auth).
type RemoteError struct {
	Err        error
	Kind       models.FailureKind
	Code       string
	Message    string
	StatusCode int // 0 для сетевых ошибок
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Code != "":
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
}

func (e *RemoteError) Unwrap() error { return e.Err }

// FailureKind lets the queue classify the error without importing this package.
func (e *RemoteError) FailureKind() models.FailureKind { return e.Kind }

// Retryable reports whether the same request may succeed later unchanged.
func (e *RemoteError) Retryable() bool { return e.Kind == models.FailureTransport }

// classifyStatus maps an HTTP status onto a failure kind.
func classifyStatus(status int) models.FailureKind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return models.FailureAuth
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return models.FailureTransport
	default:
		// 400, 404, 409, 422 и прочие 4xx: сервер отверг изменение
		return models.FailureRejected
	}
}

func transportError(err error) *RemoteError {
	return &RemoteError{
		Kind: models.FailureTransport,
		Err:  fmt.Errorf("%w: %w", ErrUnavailable, err),
	}
}
