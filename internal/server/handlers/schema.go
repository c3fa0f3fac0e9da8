package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

//go:embed schemas/*.json
var embedSchemas embed.FS

// defaultSchema применяется к типам сущностей без собственной схемы
const defaultSchema = "default"

// ErrInvalidPayload indicates that the payload does not match its schema
var ErrInvalidPayload = errors.New("invalid payload")

// PayloadValidator checks mutation payloads against the JSON schema of the
// entity type. The type is the target prefix before ':' ("task:42" → task).
type PayloadValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewPayloadValidator compiles the embedded schemas.
func NewPayloadValidator() (*PayloadValidator, error) {
	files, err := fs.Glob(embedSchemas, "schemas/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	c := jsonschema.NewCompiler()
	names := make([]string, 0, len(files))
	for _, file := range files {
		raw, err := embedSchemas.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", file, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", file, err)
		}
		if err := c.AddResource(file, doc); err != nil {
			return nil, fmt.Errorf("failed to add schema %s: %w", file, err)
		}
		names = append(names, file)
	}

	v := &PayloadValidator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, file := range names {
		sch, err := c.Compile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", file, err)
		}
		v.schemas[strings.TrimSuffix(path.Base(file), ".json")] = sch
	}

	if _, ok := v.schemas[defaultSchema]; !ok {
		return nil, fmt.Errorf("schema %s.json is missing", defaultSchema)
	}
	return v, nil
}

// Validate checks the payload of a mutation. Deletes may omit the payload.
func (v *PayloadValidator) Validate(kind models.MutationKind, target string, payload json.RawMessage) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		if kind == models.MutationDelete {
			return nil
		}
		return fmt.Errorf("%w: payload is required for %s", ErrInvalidPayload, kind)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if err := v.schemaFor(target).Validate(inst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

func (v *PayloadValidator) schemaFor(target string) *jsonschema.Schema {
	entityType, _, _ := strings.Cut(target, ":")
	if sch, ok := v.schemas[entityType]; ok {
		return sch
	}
	return v.schemas[defaultSchema]
}
