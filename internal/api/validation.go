package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const maxBodySize = 1 << 20 // 1 MiB

const serviceConfigSchema = `{
	"type": "object",
	"required": ["service_name", "primary_node_ids", "standby_node_ids"],
	"properties": {
		"service_name": {"type": "string", "minLength": 1},
		"mode": {"enum": ["automatic", "manual", "disabled"]},
		"health_check_interval": {"type": "integer", "minimum": 0},
		"failure_threshold": {"type": "integer", "minimum": 0},
		"recovery_threshold": {"type": "integer", "minimum": 0},
		"enable_state_sync": {"type": "boolean"},
		"state_sync_interval": {"type": "integer", "minimum": 0},
		"primary_node_ids": {"type": "array", "items": {"type": "string"}, "minItems": 1},
		"standby_node_ids": {"type": "array", "items": {"type": "string"}, "minItems": 1}
	},
	"additionalProperties": false
}`

const nodeSchema = `{
	"type": "object",
	"required": ["id", "endpoint"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"role": {"enum": ["primary", "standby"]},
		"status": {"enum": ["healthy", "degraded", "unhealthy", "failed"]},
		"endpoint": {"type": "string", "minLength": 1},
		"metadata": {"type": "object", "additionalProperties": {"type": "string"}}
	},
	"additionalProperties": false
}`

const failoverRequestSchema = `{
	"type": "object",
	"properties": {
		"target_node_id": {"type": "string"}
	},
	"additionalProperties": false
}`

const enabledSchema = `{
	"type": "object",
	"required": ["enabled"],
	"properties": {
		"enabled": {"type": "boolean"}
	},
	"additionalProperties": false
}`

const loginSchema = `{
	"type": "object",
	"required": ["username", "password"],
	"properties": {
		"username": {"type": "string", "minLength": 1},
		"password": {"type": "string", "minLength": 1}
	},
	"additionalProperties": false
}`

const alertRuleSchema = `{
	"type": "object",
	"required": ["name", "condition"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"condition": {"type": "string", "minLength": 1},
		"severity": {"enum": ["info", "warning", "critical"]},
		"duration": {"type": "integer", "minimum": 0},
		"labels": {"type": "object", "additionalProperties": {"type": "string"}},
		"annotations": {"type": "object", "additionalProperties": {"type": "string"}}
	},
	"additionalProperties": false
}`

const silenceSchema = `{
	"type": "object",
	"required": ["rule_name", "starts_at", "ends_at"],
	"properties": {
		"rule_name": {"type": "string", "minLength": 1},
		"starts_at": {"type": "string"},
		"ends_at": {"type": "string"},
		"created_by": {"type": "string"},
		"comment": {"type": "string"}
	},
	"additionalProperties": false
}`

// readValidatedBody reads the request body and checks it against the
// schema, returning the raw bytes for decoding
func readValidatedBody(r *http.Request, schema string) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}
	return body, nil
}
