package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

func TestPayloadValidator(t *testing.T) {
	v := setupValidator(t)

	tests := []struct {
		name    string
		kind    models.MutationKind
		target  string
		payload string
		wantErr bool
	}{
		{name: "task ok", kind: models.MutationCreate, target: "task:1", payload: `{"title":"x","done":false}`},
		{name: "task extra fields", kind: models.MutationUpdate, target: "task:1", payload: `{"title":"x","priority":3}`},
		{name: "task empty title", kind: models.MutationCreate, target: "task:1", payload: `{"title":""}`, wantErr: true},
		{name: "task done not bool", kind: models.MutationUpdate, target: "task:1", payload: `{"done":"yes"}`, wantErr: true},
		{name: "note text", kind: models.MutationCreate, target: "note:a", payload: `{"text":"hello"}`},
		{name: "note text not string", kind: models.MutationCreate, target: "note:a", payload: `{"text":1}`, wantErr: true},
		{name: "unknown type object", kind: models.MutationCreate, target: "widget:1", payload: `{"any":"thing"}`},
		{name: "unknown type array", kind: models.MutationCreate, target: "widget:1", payload: `[1,2]`, wantErr: true},
		{name: "no prefix", kind: models.MutationCreate, target: "plain", payload: `{}`},
		{name: "create without payload", kind: models.MutationCreate, target: "task:1", wantErr: true},
		{name: "delete without payload", kind: models.MutationDelete, target: "task:1"},
		{name: "delete with payload", kind: models.MutationDelete, target: "task:1", payload: `{}`},
		{name: "not json", kind: models.MutationCreate, target: "task:1", payload: `{oops`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var payload json.RawMessage
			if tt.payload != "" {
				payload = json.RawMessage(tt.payload)
			}
			err := v.Validate(tt.kind, tt.target, payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			assert.NoError(t, err)
		})
	}
}
