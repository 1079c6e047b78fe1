package providers

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schemas validates decoded payloads against the expected shape per category.
type Schemas struct {
	byCategory map[Category]*jsonschema.Schema
}

// LoadSchemas compiles the embedded schema for every known category.
func LoadSchemas() (*Schemas, error) {
	s := &Schemas{byCategory: make(map[Category]*jsonschema.Schema)}

	for _, c := range AllCategories {
		data, err := schemaFS.ReadFile("schemas/" + string(c) + ".json")
		if err != nil {
			return nil, fmt.Errorf("failed to read schema for %s: %w", c, err)
		}
		schema, err := jsonschema.NewCompiler().Compile(data)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", c, err)
		}
		s.byCategory[c] = schema
	}
	return s, nil
}

// Validate checks v against the category schema. Categories without a schema pass.
func (s *Schemas) Validate(c Category, v any) error {
	if s == nil {
		return nil
	}
	schema, ok := s.byCategory[c]
	if !ok {
		return nil
	}

	result := schema.Validate(v)
	if result.IsValid() {
		return nil
	}

	var messages []string
	for field, evalErr := range result.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(messages)
	return fmt.Errorf("payload does not match %s schema: %s", c, strings.Join(messages, "; "))
}
