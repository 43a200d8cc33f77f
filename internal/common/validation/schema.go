package validation

import (
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (r *ValidationResult) Error() string {
	if r == nil || r.Valid {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return strings.Join(msgs, "; ")
}

// SchemaSet holds compiled JSON schemas addressed by name.
type SchemaSet struct {
	schemas map[string]*gojsonschema.Schema
}

// LoadSchemaSet compiles every *.json file under dir in fsys. The schema name
// is the file name without extension.
func LoadSchemaSet(fsys fs.FS, dir string) (*SchemaSet, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir: %w", err)
	}

	set := &SchemaSet{schemas: make(map[string]*gojsonschema.Schema)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		set.schemas[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return set, nil
}

func (s *SchemaSet) Names() []string {
	names := make([]string, 0, len(s.schemas))
	for name := range s.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks document against the named schema. An unknown schema name
// is reported as an error, not as an invalid document.
func (s *SchemaSet) Validate(name string, document []byte) (*ValidationResult, error) {
	schema, ok := s.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}
