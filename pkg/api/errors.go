package api

// Коды ошибок сервера
const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidationFailed = "validation_failed"
	CodeDuplicateEntity  = "duplicate_entity"
	CodeEntityNotFound   = "entity_not_found"
	CodeKeyMismatch      = "idempotency_key_mismatch"
	CodeKeyReused        = "idempotency_key_reused"
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal_error"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Code    string `json:"code,omitempty"`    // машинно-читаемый код
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
