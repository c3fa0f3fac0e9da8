package api

import "encoding/json"

// IdempotencyKeyHeader заголовок с ключом идемпотентности (равен ID мутации)
const IdempotencyKeyHeader = "Idempotency-Key"

// MutationRequest представляет одну мутацию, отправляемую на сервер
type MutationRequest struct {
	ID           string          `json:"id"`            // ID мутации, он же ключ идемпотентности
	Kind         string          `json:"kind"`          // create, update, delete
	TargetEntity string          `json:"target_entity"` // логический ресурс ("task:42")
	Payload      json.RawMessage `json:"payload,omitempty"`
	OriginTabID  string          `json:"origin_tab_id,omitempty"`
	CreatedAt    int64           `json:"created_at"` // epoch ms на клиенте
}

// MutationResponse представляет результат применения мутации
type MutationResponse struct {
	ID           string `json:"id"`
	TargetEntity string `json:"target_entity"`
	Version      int64  `json:"version"`    // версия сущности после применения
	AppliedAt    int64  `json:"applied_at"` // epoch ms на сервере
	Replayed     bool   `json:"replayed"`   // true, если мутация уже применялась ранее
}

// EntityResponse текущее состояние сущности на сервере
type EntityResponse struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data,omitempty"`
	Version   int64           `json:"version"`
	UpdatedAt int64           `json:"updated_at"`
	Deleted   bool            `json:"deleted"`
}

// HealthResponse ответ проверки доступности
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    int64  `json:"time"`
}
