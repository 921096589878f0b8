package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// documentSchema is the JSON schema for the on-disk config document. It
// catches type mistakes (string ports, misspelled providers) before viper
// silently coerces them.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "ai": {
      "type": "object",
      "properties": {
        "profiles": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "id": {"type": "string"},
              "provider": {"type": "string", "enum": ["openai", "anthropic"]},
              "api_key": {"type": "string"},
              "priority": {"type": "integer"}
            },
            "required": ["id", "provider", "api_key"]
          }
        }
      }
    },
    "agent": {
      "type": "object",
      "properties": {
        "model": {"type": "string"},
        "mode": {"type": "string", "enum": ["default", "async", "plan"]},
        "temperature": {"type": "number", "minimum": 0, "maximum": 1},
        "max_tokens": {"type": "integer", "minimum": 0},
        "max_turns": {"type": "integer", "minimum": 0},
        "instructions_file": {"type": "string"}
      }
    },
    "logging": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["trace", "debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "redaction": {"type": "boolean"}
      }
    },
    "gateway": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535}
      }
    },
    "history": {
      "type": "object",
      "properties": {
        "enabled": {"type": "boolean"},
        "path": {"type": "string"}
      }
    },
    "repo_path": {"type": "string"},
    "data_dir": {"type": "string"}
  }
}`

// ValidateDocument validates a raw config document against the schema.
func ValidateDocument(raw []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewBytesLoader(raw)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("failed to validate config document: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("invalid config document: %s", strings.Join(problems, "; "))
	}

	return nil
}
