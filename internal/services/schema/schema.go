// Package schema checks inbound evaluation payloads against an embedded
// JSON schema before they are decoded into domain types.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed evaluate_request.schema.json
var evaluateRequestSchema []byte

const evaluateRequestURL = "https://betpulse.local/schema/evaluate_request.json"

// ErrInvalidPayload is matched by every validation failure.
var ErrInvalidPayload = errors.New("invalid payload")

// PayloadError carries the schema violation details.
type PayloadError struct {
	Detail string
}

func (e *PayloadError) Error() string { return "invalid payload: " + e.Detail }

func (e *PayloadError) Is(target error) bool { return target == ErrInvalidPayload }

// Validator validates raw JSON against one compiled schema. It is safe for
// concurrent use.
type Validator struct {
	schema *jsonschema.Schema
}

// NewEvaluateRequestValidator compiles the embedded evaluation request schema.
func NewEvaluateRequestValidator() (*Validator, error) {
	return compile(evaluateRequestURL, evaluateRequestSchema)
}

func compile(url string, doc []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	if err := compiler.AddResource(url, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: s}, nil
}

// Validate checks raw against the schema.
func (v *Validator) Validate(raw []byte) error {
	var payload any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return &PayloadError{Detail: "malformed json: " + err.Error()}
	}
	if err := v.schema.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return &PayloadError{Detail: ve.Error()}
		}
		return &PayloadError{Detail: err.Error()}
	}
	return nil
}

// Decode validates raw and then unmarshals it into dst.
func (v *Validator) Decode(raw []byte, dst any) error {
	if err := v.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &PayloadError{Detail: err.Error()}
	}
	return nil
}
