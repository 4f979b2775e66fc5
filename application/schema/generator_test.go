package schema

import (
	"encoding/json"
	"testing"

	"github.com/reglet-dev/scripthost/domain/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeSchema(t *testing.T, raw []byte) map[string]any {
	t.Helper()
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return decoded
}

func TestGenerateSchema_NestedStructInlined(t *testing.T) {
	type ServerConfig struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	type Config struct {
		Server  ServerConfig `json:"server"`
		Timeout int          `json:"timeout"`
	}

	raw, err := GenerateSchema(Config{})
	require.NoError(t, err)

	decoded := decodeSchema(t, raw)
	assert.NotContains(t, decoded, "$defs")
	assert.NotContains(t, decoded, "$id")

	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok, "properties should be a map")
	server, ok := props["server"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, server["properties"], "host")
}

func TestGenerateSchema_Required(t *testing.T) {
	type HTTPConfig struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers,omitempty"`
		Body    *string           `json:"body,omitempty"`
	}

	raw, err := GenerateSchema(HTTPConfig{})
	require.NoError(t, err)
	required, ok := decodeSchema(t, raw)["required"].([]any)
	require.True(t, ok, "required should be an array")
	assert.ElementsMatch(t, []any{"url", "method"}, required)

	raw, err = GenerateSchema(HTTPConfig{}, Partial())
	require.NoError(t, err)
	assert.NotContains(t, decodeSchema(t, raw), "required")
}

func TestGenerateSchema_Surface(t *testing.T) {
	raw, err := GenerateSchema(entities.Surface{})
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"entries"`)
	assert.Contains(t, s, `"visibility"`)
	assert.Contains(t, s, `"precedence"`)
}

func TestValidator(t *testing.T) {
	type Limits struct {
		Depth int `json:"depth" jsonschema:"minimum=1"`
	}
	type Doc struct {
		Name   string `json:"name" jsonschema:"enum=a,enum=b"`
		Limits Limits `json:"limits"`
	}

	v, err := NewValidator(Doc{}, Partial())
	require.NoError(t, err)

	require.NoError(t, v.Validate(map[string]any{"name": "a"}))
	require.NoError(t, v.Validate(map[string]any{"limits": map[string]any{"depth": 3}}))

	err = v.Validate(map[string]any{"name": "c", "limits": map[string]any{"depth": 0}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	paths := make([]string, len(ve.Violations))
	for i, viol := range ve.Violations {
		paths[i] = viol.Path
	}
	assert.ElementsMatch(t, []string{"/name", "/limits/depth"}, paths)
	assert.Contains(t, err.Error(), "schema validation failed")

	err = v.Validate(map[string]any{"unknown": true})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Error(), "unknown")
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile([]byte(`{"type": 12}`))
	require.Error(t, err)

	_, err = Compile([]byte(`not json`))
	require.Error(t, err)
}
