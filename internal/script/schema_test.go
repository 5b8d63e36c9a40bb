package script

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	if err != nil {
		t.Fatalf("GenerateSchema() error = %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}

	if schema["$id"] != GetSchemaID() {
		t.Errorf("$id = %v, want %v", schema["$id"], GetSchemaID())
	}

	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatal("schema has no properties object")
	}
	for _, field := range []string{"name", "version", "entry", "host-api", "description"} {
		if _, ok := props[field]; !ok {
			t.Errorf("schema missing property %q", field)
		}
	}
}

func TestValidateSchema_Valid(t *testing.T) {
	ResetSchemaCache()
	data := []byte("name: greeter\nversion: 1.0.0\nentry: ext.greeter\n")
	if err := ValidateSchema(data); err != nil {
		t.Errorf("ValidateSchema() error = %v", err)
	}
}

func TestValidateSchema_MissingRequired(t *testing.T) {
	data := []byte("entry: ext.greeter\n")
	if err := ValidateSchema(data); err == nil {
		t.Error("expected error for manifest missing name and version")
	}
}

func TestValidateSchema_WrongType(t *testing.T) {
	data := []byte("name: greeter\nversion: 1.0.0\ndescription: [a, b]\n")
	if err := ValidateSchema(data); err == nil {
		t.Error("expected error for non-string description")
	}
}

func TestValidateSchema_UnknownField(t *testing.T) {
	data := []byte("name: greeter\nversion: 1.0.0\nbogus: true\n")
	if err := ValidateSchema(data); err == nil {
		t.Error("expected error for unknown manifest field")
	}
}

func TestValidateSchema_Empty(t *testing.T) {
	if err := ValidateSchema(nil); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestValidateSchema_InvalidYAML(t *testing.T) {
	if err := ValidateSchema([]byte("name: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestFormatSchemaError(t *testing.T) {
	if got := FormatSchemaError(nil); got != "" {
		t.Errorf("FormatSchemaError(nil) = %q, want empty", got)
	}

	err := ValidateSchema([]byte("entry: ext.greeter\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := FormatSchemaError(err)
	if strings.Contains(msg, "schema validation failed:") {
		t.Errorf("FormatSchemaError() kept the prefix: %q", msg)
	}
}
