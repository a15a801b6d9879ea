package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Payload kinds with schemas in the schema directory.
const (
	PayloadScreenplay = "screenplay"
	PayloadOrderBrief = "order_brief"
)

// ErrValidation wraps schema violations so handlers can map them to 422.
var ErrValidation = errors.New("validation failed")

// Validator compiles the JSON Schemas found in a schema directory and
// validates inbound payloads against them.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator loads every *.json file from schemaDir; the filename (minus a
// trailing version suffix like ".v1") names the payload kind.
func NewValidator(schemaDir string) (*Validator, error) {
	entries, err := os.ReadDir(schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %q: %w", schemaDir, err)
	}
	schemas := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		kind := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		kind = strings.TrimSuffix(kind, ".v1")
		path := filepath.Join(schemaDir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		id := "https://lumiere.studio/schemas/" + kind
		schemas[kind], err = jsonschema.CompileString(id, string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", kind, err)
		}
	}
	if len(schemas) == 0 {
		return nil, fmt.Errorf("no schemas found in %q", schemaDir)
	}
	return &Validator{schemas: schemas}, nil
}

// Validate checks payload against the schema for kind. Unknown kinds are an
// error; schema violations wrap ErrValidation.
func (v *Validator) Validate(kind string, payload []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("no schema for payload kind %q", kind)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}
