package models

import "encoding/json"

// DraftSource tags the code path a draft was recovered from.
type DraftSource string

const (
	DraftSourceForm         DraftSource = "draft"         // формальное пространство draft:<key>
	DraftSourceQuickCapture DraftSource = "quick-capture" // текст быстрого ввода
	DraftSourceTaskEdit     DraftSource = "task-edit"     // незавершённое редактирование задачи
	DraftSourceEmergency    DraftSource = "emergency"     // аварийные снимки
)

// Draft представляет несохранённый ввод пользователя.
// Принадлежит вкладке, которая его создала, пока не будет отправлен или удалён.
type Draft struct {
	ID        string          `json:"id"`        // ID ключ черновика (без префикса пространства)
	Data      json.RawMessage `json:"data"`      // Data содержимое формы
	Timestamp int64           `json:"timestamp"` // Timestamp epoch ms последнего сохранения
	Source    DraftSource     `json:"source"`    // Source откуда восстановлен черновик
	Key       string          `json:"-"`         // Key полный ключ хранилища
}
