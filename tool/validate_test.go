package tool

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []any{"path"},
	}
}

func TestValidateArguments_EmptySchemaAcceptsAll(t *testing.T) {
	d := Descriptor{Name: "anything"}
	assert.NoError(t, ValidateArguments(d, json.RawMessage(`{"whatever": 1}`)))
	assert.NoError(t, ValidateArguments(d, nil))
}

func TestValidateArguments_Valid(t *testing.T) {
	d := Descriptor{Name: "read_file", InputSchema: pathSchema()}
	assert.NoError(t, ValidateArguments(d, json.RawMessage(`{"path": "/tmp/x"}`)))
}

func TestValidateArguments_MissingRequired(t *testing.T) {
	d := Descriptor{Name: "read_file", InputSchema: pathSchema()}
	err := ValidateArguments(d, json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, KindInvalidArguments, KindOf(err))
}

func TestValidateArguments_WrongType(t *testing.T) {
	d := Descriptor{Name: "read_file", InputSchema: pathSchema()}
	err := ValidateArguments(d, json.RawMessage(`{"path": 42}`))
	require.Error(t, err)
	assert.Equal(t, KindInvalidArguments, KindOf(err))
}

func TestValidateArguments_MalformedJSON(t *testing.T) {
	d := Descriptor{Name: "read_file", InputSchema: pathSchema()}
	err := ValidateArguments(d, json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.Equal(t, KindInvalidArguments, KindOf(err))
}

func TestValidateArguments_UncompilableSchemaSkipped(t *testing.T) {
	d := Descriptor{
		Name:        "odd",
		InputSchema: map[string]any{"type": 12345},
	}
	assert.NoError(t, ValidateArguments(d, json.RawMessage(`{"x": true}`)))
}
