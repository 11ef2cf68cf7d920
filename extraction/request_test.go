package extraction

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	req, err := NewBuilder(0).Build("  Patient: [PATIENT NAME]\nDx: Hypertension  ")
	require.NoError(t, err)

	assert.Contains(t, req.System, "JSON")
	assert.Contains(t, req.User, "Patient: [PATIENT NAME]\nDx: Hypertension")
	assert.Contains(t, req.User, `"lab_results"`)
	assert.False(t, req.Truncated)
	assert.Equal(t, len("Patient: [PATIENT NAME]\nDx: Hypertension"), req.InputChars)
	assert.NotNil(t, req.Schema["properties"])
}

func TestBuild_EmptyInput(t *testing.T) {
	for _, in := range []string{"", " \n\t "} {
		_, err := NewBuilder(0).Build(in)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}
}

func TestBuild_Truncates(t *testing.T) {
	text := strings.Repeat("word ", 100)

	req, err := NewBuilder(50).Build(text)
	require.NoError(t, err)

	assert.True(t, req.Truncated)
	assert.LessOrEqual(t, req.InputChars, 50+len(truncationMarker))
	assert.Contains(t, req.User, "document truncated")
}

func TestResponseSchema_Compiles(t *testing.T) {
	compiler := jsonschema.NewCompiler()
	require.NoError(t, compiler.AddResource("reply.json", strings.NewReader(ResponseSchemaJSON())))
	schema, err := compiler.Compile("reply.json")
	require.NoError(t, err)

	var sample any
	require.NoError(t, json.NewDecoder(bytes.NewReader([]byte(
		`{"diagnoses":[{"description":"Hypertension","code":"I10","date":null}],"clinical_notes":null}`,
	))).Decode(&sample))
	assert.NoError(t, schema.Validate(sample))

	var bad any
	require.NoError(t, json.Unmarshal([]byte(`{"diagnoses":[{"code":"I10"}]}`), &bad))
	assert.Error(t, schema.Validate(bad), "description is required")
}
