package tiered

import (
	"encoding/json"
	"fmt"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// envelope mirrors StorageRecord with optional fields so a bare legacy
// value can be told apart from a wrapped one.
type envelope struct {
	Payload       json.RawMessage `json:"payload"`
	SchemaVersion *string         `json:"schema_version"`
	Key           string          `json:"key"`
	SavedAt       int64           `json:"saved_at"`
}

// decodeRecord parses a stored value. Valid JSON that is not an envelope
// was written before records were versioned; it is returned as the payload
// with an empty schema version.
func decodeRecord(key string, data []byte) (*models.StorageRecord, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.SchemaVersion == nil || env.Payload == nil {
		return &models.StorageRecord{
			Key:     key,
			Payload: append(json.RawMessage(nil), data...),
		}, nil
	}

	return &models.StorageRecord{
		Key:           key,
		Payload:       env.Payload,
		SavedAt:       env.SavedAt,
		SchemaVersion: *env.SchemaVersion,
	}, nil
}
