package schemas

import (
	"errors"
	"testing"

	rootschemas "github.com/jonathan/property-analyzer/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedSchemas(t *testing.T) {
	for _, name := range []string{rootschemas.PropertyAnalysis, rootschemas.FinancialAnalysis} {
		t.Run(name, func(t *testing.T) {
			first, err := Load(name)
			require.NoError(t, err)
			second, err := Load(name)
			require.NoError(t, err)
			assert.Same(t, first, second, "compiled schema should be cached")
		})
	}
}

func TestLoad_UnknownSchema(t *testing.T) {
	_, err := Load("nonexistent.schema.json")
	require.Error(t, err)

	var loadErr *SchemaLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "nonexistent.schema.json", loadErr.Path)
	assert.Contains(t, err.Error(), "schema not found")
}

func TestValidate_PropertyAnalysis(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantError bool
		wantField string
	}{
		{
			name: "valid analysis",
			doc: `{"price_summary":"8.5万円","location_summary":"渋谷駅徒歩5分",
				"strengths":["駅近"],"concerns":[],"price_assessment":"不明","summary":"総評"}`,
		},
		{
			name:      "missing required field",
			doc:       `{"price_summary":"8.5万円","strengths":[],"concerns":[],"price_assessment":"適正","summary":"総評"}`,
			wantError: true,
			wantField: "(root)",
		},
		{
			name: "wrong type",
			doc: `{"price_summary":"8.5万円","location_summary":"渋谷",
				"strengths":"駅近","concerns":[],"price_assessment":"適正","summary":"総評"}`,
			wantError: true,
			wantField: "strengths",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(rootschemas.PropertyAnalysis, tt.doc)
			if !tt.wantError {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			validationErr, ok := err.(*ValidationError)
			require.True(t, ok, "error should be ValidationError type, got %T", err)
			require.NotEmpty(t, validationErr.Errors)
			assert.Equal(t, tt.wantField, validationErr.Errors[0].Field)
		})
	}
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(rootschemas.PropertyAnalysis, "{ invalid json }")
	require.Error(t, err)
	_, isValidation := err.(*ValidationError)
	assert.False(t, isValidation)
	assert.Contains(t, err.Error(), "failed to parse document")
}

func TestValidateJSONString_Valid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"name": "test"}`

	err := ValidateJSONString(schemaContent, jsonContent)
	assert.NoError(t, err)
}

func TestValidateJSONString_Invalid(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string"}
		}
	}`
	jsonContent := `{"age": 30}`

	err := ValidateJSONString(schemaContent, jsonContent)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	assert.Greater(t, len(validationErr.Errors), 0)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "price_assessment", Message: "must be one of the following"},
			{Field: "summary", Message: "is required"},
		},
	}

	errorMsg := err.Error()
	assert.Contains(t, errorMsg, "validation failed")
	assert.Contains(t, errorMsg, "1. price_assessment")
	assert.Contains(t, errorMsg, "2. summary")
}

func TestValidateJSONString_NestedFieldValidation(t *testing.T) {
	schemaContent := `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type": "object",
		"required": ["indicators"],
		"properties": {
			"indicators": {
				"type": "object",
				"required": ["debt_ratio"],
				"properties": {
					"debt_ratio": {"type": "string"}
				}
			}
		}
	}`

	err := ValidateJSONString(schemaContent, `{"indicators": {}}`)
	require.Error(t, err)

	validationErr, ok := err.(*ValidationError)
	require.True(t, ok)
	require.NotEmpty(t, validationErr.Errors)
	assert.Equal(t, "indicators", validationErr.Errors[0].Field)
}

func TestSchemaLoadError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &SchemaLoadError{Path: "x.json", Message: "invalid schema", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load schema x.json: invalid schema: boom", err.Error())
}
