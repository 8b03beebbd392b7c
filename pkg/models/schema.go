package models

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// definitionSchema validates raw workflow definition documents on import,
// before they are unmarshaled and structurally checked by the editor.
const definitionSchema = `{
	"type": "object",
	"required": ["id", "name", "stages", "initial_stage"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 3},
		"version": {"type": "integer", "minimum": 0},
		"stages": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		},
		"initial_stage": {"type": "string", "minLength": 1},
		"transitions": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["to"],
					"properties": {
						"to": {"type": "string", "minLength": 1},
						"allowed_roles": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		},
		"required_approvals": {
			"type": "object",
			"additionalProperties": {"type": "array", "items": {"type": "string"}}
		},
		"file_requirements": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["label"],
					"properties": {
						"label": {"type": "string", "minLength": 1},
						"required": {"type": "boolean"},
						"min_count": {"type": "integer", "minimum": 0},
						"accepted_types": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		},
		"notifications": {
			"type": "object",
			"additionalProperties": {"type": "array", "items": {"type": "string"}}
		},
		"visibility": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"properties": {
					"everyone": {"type": "array", "items": {"type": "string"}},
					"per_role": {
						"type": "object",
						"additionalProperties": {"type": "array", "items": {"type": "string"}}
					}
				}
			}
		}
	}
}`

// ValidateDefinitionDocument validates a raw JSON definition document against
// the definition schema. Returns a single error aggregating every violation.
func ValidateDefinitionDocument(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(definitionSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate definition document: %w", err)
	}

	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return fmt.Errorf("invalid definition document: %s", strings.Join(violations, "; "))
}
