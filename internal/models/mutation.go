package models

import "encoding/json"

// MutationKind тип операции записи
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// Valid reports whether k is one of the known mutation kinds.
func (k MutationKind) Valid() bool {
	switch k {
	case MutationCreate, MutationUpdate, MutationDelete:
		return true
	}
	return false
}

// MutationStatus статус мутации в очереди
type MutationStatus string

const (
	StatusPending   MutationStatus = "pending"
	StatusInFlight  MutationStatus = "in-flight"
	StatusFailed    MutationStatus = "failed"
	StatusAbandoned MutationStatus = "abandoned"
)

// FailureKind classifies the last failed delivery attempt.
// Empty when the mutation never failed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureTransport FailureKind = "transport" // сеть недоступна, таймаут, 5xx
	FailureRejected  FailureKind = "rejected"  // сервер отклонил изменение (валидация)
	FailureAuth      FailureKind = "auth"      // 401/403
)

// QueuedMutation представляет запись, отправленную пользователем,
// но ещё не подтверждённую сервером.
// ID стабилен на всё время жизни мутации и используется как idempotency key.
type QueuedMutation struct {
	ID           string          `json:"id"`                      // ID уникальный идентификатор (UUID), не меняется при повторах
	Kind         MutationKind    `json:"kind"`                    // Kind create/update/delete
	TargetEntity string          `json:"target_entity"`           // TargetEntity логический ресурс ("task:42")
	Payload      json.RawMessage `json:"payload,omitempty"`       // Payload непрозрачные данные сущности
	CreatedAt    int64           `json:"created_at"`              // CreatedAt epoch ms
	Seq          int64           `json:"seq"`                     // Seq порядковый номер для устойчивого порядка при равных CreatedAt
	AttemptCount int             `json:"attempt_count"`           // AttemptCount количество неудачных попыток
	LastError    string          `json:"last_error,omitempty"`    // LastError текст последней ошибки ("" = null)
	FailureKind  FailureKind     `json:"failure_kind,omitempty"`  // FailureKind класс последней ошибки
	Status       MutationStatus  `json:"status"`                  // Status pending/in-flight/failed/abandoned
	OriginTabID  string          `json:"origin_tab_id,omitempty"` // OriginTabID вкладка, создавшая мутацию
	UpdatedAt    int64           `json:"updated_at"`              // UpdatedAt epoch ms последнего изменения статуса
}

// Eligible reports whether the mutation may be picked up by a sync pass.
func (m *QueuedMutation) Eligible() bool {
	return m.Status == StatusPending || m.Status == StatusFailed
}

// Rejected reports whether the remote refused the change itself
// (as opposed to the change not reaching it).
func (m *QueuedMutation) Rejected() bool {
	return m.FailureKind == FailureRejected || m.FailureKind == FailureAuth
}

// Before определяет порядок создания: сначала CreatedAt, затем Seq, затем ID.
func (m *QueuedMutation) Before(other *QueuedMutation) bool {
	if m.CreatedAt != other.CreatedAt {
		return m.CreatedAt < other.CreatedAt
	}
	if m.Seq != other.Seq {
		return m.Seq < other.Seq
	}
	return m.ID < other.ID
}

// Clone создает глубокую копию мутации
func (m *QueuedMutation) Clone() *QueuedMutation {
	c := *m
	if m.Payload != nil {
		c.Payload = append(json.RawMessage(nil), m.Payload...)
	}
	return &c
}
