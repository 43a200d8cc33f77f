package validation

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["payerName", "amount"],
  "properties": {
    "payerName": {"type": "string", "minLength": 1},
    "amount": {"type": "number", "minimum": 0}
  }
}`

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"schemas/w2.json":   {Data: []byte(testSchema)},
		"schemas/README.md": {Data: []byte("ignored")},
	}
}

func TestLoadSchemaSet(t *testing.T) {
	set, err := LoadSchemaSet(testFS(), "schemas")
	require.NoError(t, err)
	assert.Equal(t, []string{"w2"}, set.Names())
}

func TestLoadSchemaSet_InvalidSchema(t *testing.T) {
	fsys := fstest.MapFS{"schemas/bad.json": {Data: []byte(`{"type": 12}`)}}
	_, err := LoadSchemaSet(fsys, "schemas")
	assert.Error(t, err)
}

func TestSchemaSet_Validate(t *testing.T) {
	set, err := LoadSchemaSet(testFS(), "schemas")
	require.NoError(t, err)

	tests := []struct {
		name       string
		document   string
		valid      bool
		errorField string
	}{
		{name: "valid document", document: `{"payerName":"Acme","amount":100}`, valid: true},
		{name: "missing required", document: `{"payerName":"Acme"}`, valid: false, errorField: "(root)"},
		{name: "negative amount", document: `{"payerName":"Acme","amount":-1}`, valid: false, errorField: "amount"},
		{name: "wrong type", document: `{"payerName":7,"amount":1}`, valid: false, errorField: "payerName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := set.Validate("w2", []byte(tt.document))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if !tt.valid {
				require.NotEmpty(t, result.Errors)
				assert.Equal(t, tt.errorField, result.Errors[0].Field)
				assert.NotEmpty(t, result.Error())
			}
		})
	}
}

func TestSchemaSet_UnknownSchema(t *testing.T) {
	set, err := LoadSchemaSet(testFS(), "schemas")
	require.NoError(t, err)

	_, err = set.Validate("paystub", []byte(`{}`))
	assert.Error(t, err)
}
