package api

import "encoding/json"

// Типы межвкладочных сообщений
const (
	TabMessageUpdate = "update"
	TabMessageSignal = "signal"
)

// TabMessage сообщение межвкладочной шины.
// Сервер пересылает его всем соединениям того же пользователя, кроме отправителя.
type TabMessage struct {
	Kind      string          `json:"kind"`
	PageType  string          `json:"page_type,omitempty"`
	PageID    string          `json:"page_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Signal    string          `json:"signal,omitempty"` // имя сигнала, например mutation-synced
	Resolved  bool            `json:"resolved,omitempty"` // значение выбрано при разрешении конфликта
	TabID     string          `json:"tab_id"`
	Timestamp int64           `json:"timestamp"`
}
