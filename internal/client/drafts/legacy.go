package drafts

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// shape is one historical layout of a draft value. parse reports false when
// the value does not have that layout.
type shape func(raw json.RawMessage) (data json.RawMessage, ts int64, ok bool)

// variants maps a key family to the layouts it was written in, most recent
// first. A value that matches none of them is kept as-is.
var variants = map[models.DraftSource][]shape{
	models.DraftSourceForm:         {formEnvelope},
	models.DraftSourceQuickCapture: {quickCaptureText, quickCaptureObject},
	models.DraftSourceTaskEdit:     {taskEdit},
	models.DraftSourceEmergency:    {emergencyData, emergencyContent},
}

func sourceOf(key string) (models.DraftSource, string) {
	switch {
	case strings.HasPrefix(key, Prefix):
		return models.DraftSourceForm, strings.TrimPrefix(key, Prefix)
	case key == KeyQuickCapture:
		return models.DraftSourceQuickCapture, key
	case strings.HasPrefix(key, PrefixTaskEdit):
		return models.DraftSourceTaskEdit, key
	case strings.HasPrefix(key, PrefixEmergency):
		return models.DraftSourceEmergency, key
	default:
		return "", key
	}
}

// normalize maps a stored record of any known key family into a Draft.
func normalize(key string, rec *models.StorageRecord) (models.Draft, bool) {
	source, id := sourceOf(key)
	if source == "" || len(bytes.TrimSpace(rec.Payload)) == 0 {
		return models.Draft{}, false
	}

	d := models.Draft{
		ID:        id,
		Key:       key,
		Data:      rec.Payload,
		Timestamp: rec.SavedAt,
		Source:    source,
	}

	// Формальные черновики, записанные текущей версией, уже нормализованы
	if source == models.DraftSourceForm && rec.SchemaVersion != "" {
		return d, true
	}

	for _, parse := range variants[source] {
		data, ts, ok := parse(rec.Payload)
		if !ok {
			continue
		}
		d.Data = data
		if ts > 0 {
			d.Timestamp = ts
		}
		return d, true
	}

	// Неизвестная форма: сохраняем как есть
	return d, true
}

// formEnvelope: {"data": ..., "timestamp": ...} from before versioned records
func formEnvelope(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var v struct {
		Data      json.RawMessage `json:"data"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Data == nil || v.Timestamp == nil {
		return nil, 0, false
	}
	ts, _ := parseTimestamp(v.Timestamp)
	return v.Data, ts, true
}

// quickCaptureText: a bare JSON string
func quickCaptureText(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var text string
	if json.Unmarshal(raw, &text) != nil {
		return nil, 0, false
	}
	return textData(text), 0, true
}

// quickCaptureObject: {"text": "...", "savedAt": ...}
func quickCaptureObject(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var v struct {
		Text    *string         `json:"text"`
		SavedAt json.RawMessage `json:"savedAt"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Text == nil {
		return nil, 0, false
	}
	ts, _ := parseTimestamp(v.SavedAt)
	return textData(*v.Text), ts, true
}

// taskEdit: {"task": {...}, "updatedAt": ...}
func taskEdit(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var v struct {
		Task      json.RawMessage `json:"task"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Task == nil {
		return nil, 0, false
	}
	ts, _ := parseTimestamp(v.UpdatedAt)
	return v.Task, ts, true
}

// emergencyData: {"data": ..., "timestamp": ...}
func emergencyData(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var v struct {
		Data      json.RawMessage `json:"data"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Data == nil {
		return nil, 0, false
	}
	ts, _ := parseTimestamp(v.Timestamp)
	return v.Data, ts, true
}

// emergencyContent: {"content": ..., "ts": ...}
func emergencyContent(raw json.RawMessage) (json.RawMessage, int64, bool) {
	var v struct {
		Content json.RawMessage `json:"content"`
		TS      json.RawMessage `json:"ts"`
	}
	if json.Unmarshal(raw, &v) != nil || v.Content == nil {
		return nil, 0, false
	}
	ts, _ := parseTimestamp(v.TS)
	return v.Content, ts, true
}

func textData(text string) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"text": text})
	return data
}

// parseTimestamp accepts epoch milliseconds or an RFC 3339 string.
func parseTimestamp(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var ms float64
	if json.Unmarshal(raw, &ms) == nil {
		return int64(ms), ms > 0
	}

	var s string
	if json.Unmarshal(raw, &s) != nil {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}
