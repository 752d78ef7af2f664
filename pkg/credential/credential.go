// Package credential defines the parsed form of a streaming-client secret and
// the read-only snapshot exposed to the consuming application.
//
// A secret store entry is a small JSON document carrying exactly two fields:
// an identifier ("key") and its matching secret string ("secret"). Anything
// else - missing fields, extra fields, non-string values, empty strings, or
// payloads that are not JSON objects - is a parse failure. Parsing is pure:
// the same raw payload always yields the same Value.
package credential

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Value is a parsed credential pair. Immutable once constructed; equality is
// structural.
type Value struct {
	// Key is the credential identifier (e.g. a SASL username or API key ID).
	Key string `json:"key"`

	// Secret is the matching secret string. Never log this field.
	Secret string `json:"secret"`
}

// Equal reports whether two values are structurally identical.
func (v Value) Equal(other Value) bool {
	return v.Key == other.Key && v.Secret == other.Secret
}

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool {
	return v.Key == "" && v.Secret == ""
}

// String implements Stringer without exposing the secret.
func (v Value) String() string {
	return fmt.Sprintf("credential{key: %s, secret: [REDACTED]}", v.Key)
}

// ParseError describes a payload that failed validation.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid credential payload: " + e.Reason
}

const payloadSchema = `{
	"type": "object",
	"properties": {
		"key":    {"type": "string", "minLength": 1},
		"secret": {"type": "string", "minLength": 1}
	},
	"required": ["key", "secret"],
	"additionalProperties": false
}`

var compiledSchema *gojsonschema.Schema

func init() {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(payloadSchema))
	if err != nil {
		panic(fmt.Sprintf("credential: invalid payload schema: %v", err))
	}
	compiledSchema = schema
}

// Parse interprets a raw secret store payload as a credential Value.
func Parse(raw string) (Value, error) {
	if raw == "" {
		return Value{}, &ParseError{Reason: "empty payload"}
	}

	result, err := compiledSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		// Loader errors mean the payload is not valid JSON at all.
		return Value{}, &ParseError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if !result.Valid() {
		return Value{}, &ParseError{Reason: schemaFailureReason(result)}
	}

	var v Value
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Value{}, &ParseError{Reason: fmt.Sprintf("decode failed: %v", err)}
	}

	return v, nil
}

func schemaFailureReason(result *gojsonschema.Result) string {
	errs := result.Errors()
	if len(errs) == 0 {
		return "schema validation failed"
	}
	// First violation is enough context; the raw payload is never echoed back.
	return errs[0].String()
}
