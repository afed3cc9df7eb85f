package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var builtinSchema []byte

// BuiltinSchema returns the JSON schema for the parameter file.
func BuiltinSchema() []byte {
	return append([]byte(nil), builtinSchema...)
}

// Result is the outcome of validating one document.
type Result struct {
	OK         bool
	Diagnostic string
	// Locations lists the JSON pointers of every failing value.
	Locations []string
}

// Validate checks a YAML (or JSON) document against a JSON schema. Documents
// that violate the schema give OK=false with a diagnostic; the error return
// is reserved for inputs that cannot be parsed at all.
func Validate(doc, schema []byte) (Result, error) {
	compiler := jsonschema.NewCompiler()
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
	if err != nil {
		return Result{}, fmt.Errorf("parse schema: %w", err)
	}
	if err := compiler.AddResource("schema.json", schemaDoc); err != nil {
		return Result{}, fmt.Errorf("load schema: %w", err)
	}
	sch, err := compiler.Compile("schema.json")
	if err != nil {
		return Result{}, fmt.Errorf("compile schema: %w", err)
	}

	instance, err := yamlToJSON(doc)
	if err != nil {
		return Result{}, err
	}

	err = sch.Validate(instance)
	if err == nil {
		return Result{OK: true}, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return Result{}, fmt.Errorf("validate: %w", err)
	}
	return Result{
		Diagnostic: ve.Error(),
		Locations:  leafLocations(ve),
	}, nil
}

// ValidateFile checks a parameter file against the built-in schema, or the
// schema at schemaPath when it is not empty.
func ValidateFile(path, schemaPath string) (Result, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read config: %w", err)
	}
	schema := builtinSchema
	if schemaPath != "" {
		schema, err = os.ReadFile(schemaPath)
		if err != nil {
			return Result{}, fmt.Errorf("read schema: %w", err)
		}
	}
	return Validate(doc, schema)
}

// yamlToJSON decodes YAML and re-reads it through the validator's JSON
// decoder so numbers keep their exact representation.
func yamlToJSON(doc []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(doc, &v); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	data, err := json.Marshal(normalize(v))
	if err != nil {
		return nil, fmt.Errorf("convert document: %w", err)
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

// normalize turns map[any]any, which JSON cannot encode, into map[string]any.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	default:
		return v
	}
}

func leafLocations(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		return []string{"/" + strings.Join(ve.InstanceLocation, "/")}
	}
	var out []string
	for _, c := range ve.Causes {
		out = append(out, leafLocations(c)...)
	}
	return out
}
