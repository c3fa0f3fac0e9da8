package models

import "encoding/json"

// Snapshot is a frozen copy of one side of a conflict.
type Snapshot struct {
	Data        json.RawMessage `json:"data"`
	Timestamp   int64           `json:"timestamp"`
	OriginTabID string          `json:"origin_tab_id,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// Clone копирует данные снимка, чтобы он не зависел от исходного буфера
func (s Snapshot) Clone() Snapshot {
	if s.Data != nil {
		s.Data = append(json.RawMessage(nil), s.Data...)
	}
	return s
}

// ConflictDescriptor описывает расхождение двух вкладок по одному ключу.
// Никогда не сохраняется: существует только до решения пользователя.
type ConflictDescriptor struct {
	PageType   string   `json:"page_type"`
	PageID     string   `json:"page_id,omitempty"` // "" = null
	Local      Snapshot `json:"local"`
	Remote     Snapshot `json:"remote"`
	DetectedAt int64    `json:"detected_at"`
}

// Gap returns the absolute distance between both timestamps in ms.
func (c *ConflictDescriptor) Gap() int64 {
	d := c.Local.Timestamp - c.Remote.Timestamp
	if d < 0 {
		return -d
	}
	return d
}

// Resolution выбор пользователя при разрешении конфликта
type Resolution string

const (
	ResolveLocal  Resolution = "local"
	ResolveRemote Resolution = "remote"
)
