// Package schema validates the analysis document against the embedded
// JSON Schema before anything is written to disk. The gate is strict:
// a document that fails validation produces no output at all.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"lesion-report/internal/errs"
)

//go:embed analysis_schema.json
var analysisSchema []byte

// Gate holds a compiled schema ready for repeated validation.
type Gate struct {
	schema *gojsonschema.Schema
}

// NewGate compiles the embedded analysis schema.
func NewGate() (*Gate, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(analysisSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling analysis schema: %w", err)
	}
	return &Gate{schema: s}, nil
}

// Validate checks doc against the analysis schema. doc may be a struct or a
// raw JSON byte slice. On failure it returns a ValidationError enumerating
// every violation, not just the first.
func (g *Gate) Validate(doc interface{}) error {
	var loader gojsonschema.JSONLoader
	switch d := doc.(type) {
	case []byte:
		loader = gojsonschema.NewBytesLoader(d)
	default:
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("marshaling document for validation: %w", err)
		}
		loader = gojsonschema.NewBytesLoader(raw)
	}

	result, err := g.schema.Validate(loader)
	if err != nil {
		return fmt.Errorf("running schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	sort.Strings(violations)
	return errs.NewValidationError(violations)
}
