package models

import "encoding/json"

// SchemaVersion текущая версия формата StorageRecord
const SchemaVersion = "1"

// StorageRecord is the envelope every locally persisted value is wrapped in.
// SavedAt never goes backwards for a key written from the same tab.
type StorageRecord struct {
	Key           string          `json:"key"`
	Payload       json.RawMessage `json:"payload"`
	SavedAt       int64           `json:"saved_at"`       // epoch ms
	SchemaVersion string          `json:"schema_version"` // "" у записей, сохранённых до появления версии
}

// Decode unmarshals the payload into v.
func (r *StorageRecord) Decode(v any) error {
	return json.Unmarshal(r.Payload, v)
}
