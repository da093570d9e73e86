package daemon

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"corrflow/internal/services"
)

const schemaCreate = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["subject"],
  "properties": {
    "number": { "type": "string", "maxLength": 64 },
    "type": { "type": "string", "maxLength": 100 },
    "subject": { "type": "string", "minLength": 1, "maxLength": 500 },
    "content": { "type": "string" },
    "priority": { "type": "string", "enum": ["normal", "important", "urgent"] },
    "receiverId": { "type": "integer", "minimum": 0 },
    "dueDate": { "type": "string" },
    "draft": { "type": "boolean" },
    "cc": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": { "type": "string", "enum": ["user", "custom"] },
          "recipientId": { "type": "integer", "minimum": 1 },
          "name": { "type": "string", "maxLength": 200 }
        },
        "additionalProperties": false
      }
    },
    "attachments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["fileName", "filePath"],
        "properties": {
          "fileName": { "type": "string", "minLength": 1 },
          "filePath": { "type": "string", "minLength": 1 },
          "fileSize": { "type": "integer", "minimum": 0 },
          "fileType": { "type": "string" }
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

const schemaUpdate = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "minProperties": 1,
  "properties": {
    "type": { "type": "string", "maxLength": 100 },
    "subject": { "type": "string", "minLength": 1, "maxLength": 500 },
    "content": { "type": "string" },
    "priority": { "type": "string", "enum": ["normal", "important", "urgent"] },
    "receiverId": { "type": "integer", "minimum": 0 },
    "dueDate": { "type": "string" }
  },
  "additionalProperties": false
}`

const schemaSign = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["decision"],
  "properties": {
    "decision": { "type": "string", "minLength": 1, "maxLength": 100 },
    "notes": { "type": "string", "maxLength": 2000 }
  },
  "additionalProperties": false
}`

const schemaComment = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": { "type": "string", "minLength": 1, "maxLength": 5000 }
  },
  "additionalProperties": false
}`

const schemaManager = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["managerId"],
  "properties": {
    "managerId": { "type": "integer", "minimum": 0 }
  },
  "additionalProperties": false
}`

var (
	createLoader  = gojsonschema.NewStringLoader(schemaCreate)
	updateLoader  = gojsonschema.NewStringLoader(schemaUpdate)
	signLoader    = gojsonschema.NewStringLoader(schemaSign)
	commentLoader = gojsonschema.NewStringLoader(schemaComment)
	managerLoader = gojsonschema.NewStringLoader(schemaManager)
)

// validateBody checks body against schema and reports every violation as a
// single validation error.
func validateBody(schema gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "malformed JSON", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return services.Wrap(services.ErrValidation, "api", "decode body",
		fmt.Sprintf("request does not conform to schema: %s", strings.Join(problems, "; ")), nil)
}
