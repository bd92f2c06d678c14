package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// CompileSchema compiles a raw JSON Schema map (as published by a provider)
// into a resolved validator. The map is not mutated.
func CompileSchema(schemaMap map[string]any) (*jsonschema.Resolved, error) {
	data, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return s.Resolve(nil)
}

// ValidateArguments checks raw call arguments against the descriptor's input
// schema. A nil or empty schema accepts anything; schemas that fail to
// compile are skipped rather than blocking the call, since the provider is
// the authority on its own contract. A validation failure is returned as a
// KindInvalidArguments error so the caller can turn it into an error outcome
// without dispatching.
func ValidateArguments(d Descriptor, args json.RawMessage) error {
	if len(d.InputSchema) == 0 {
		return nil
	}
	resolved, err := CompileSchema(d.InputSchema)
	if err != nil {
		return nil
	}
	var instance any
	if len(args) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(args, &instance); err != nil {
		return &Error{
			Kind:    KindInvalidArguments,
			Tool:    d.Name,
			Message: fmt.Sprintf("arguments are not valid JSON: %v", err),
			Err:     err,
		}
	}
	if err := resolved.Validate(instance); err != nil {
		return &Error{
			Kind:    KindInvalidArguments,
			Tool:    d.Name,
			Message: err.Error(),
			Err:     err,
		}
	}
	return nil
}
