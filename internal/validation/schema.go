package validation

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/qri-io/jsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ProfileUpdateSchema validates PUT /v1/users/{id} documents.
const ProfileUpdateSchema = "profile_update"

// Schemas holds compiled JSON schemas keyed by file name without extension.
type Schemas struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

var (
	defaultSchemas     *Schemas
	defaultSchemasErr  error
	defaultSchemasOnce sync.Once
)

// DefaultSchemas returns the schemas embedded in the binary.
func DefaultSchemas() (*Schemas, error) {
	defaultSchemasOnce.Do(func() {
		defaultSchemas, defaultSchemasErr = LoadSchemas(schemaFS, "schemas")
	})
	return defaultSchemas, defaultSchemasErr
}

// LoadSchemas compiles every *.json file in dir.
func LoadSchemas(fsys fs.FS, dir string) (*Schemas, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read schemas dir: %w", err)
	}

	cache := make(map[string]*jsonschema.Schema)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", e.Name(), err)
		}

		rs := &jsonschema.Schema{}
		if err := json.Unmarshal(b, rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", e.Name(), err)
		}
		cache[strings.TrimSuffix(e.Name(), ".json")] = rs
	}

	return &Schemas{cache: cache}, nil
}

// Get returns a compiled schema by name.
func (s *Schemas) Get(name string) (*jsonschema.Schema, bool) {
	s.mu.RLock()
	rs, ok := s.cache[name]
	s.mu.RUnlock()

	return rs, ok
}

// ValidateDocument checks body against the named schema. Violations come
// back as a *RequestValidationError.
func (s *Schemas) ValidateDocument(ctx context.Context, name string, body []byte) error {
	rs, ok := s.Get(name)
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}

	keyErrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return &RequestValidationError{Fields: []FieldError{{Field: "body", Tag: "json", Message: "body must be a valid JSON document"}}}
	}
	if len(keyErrs) == 0 {
		return nil
	}

	fields := make([]FieldError, len(keyErrs))
	for i, ke := range keyErrs {
		field := strings.TrimPrefix(ke.PropertyPath, "/")
		if field == "" {
			field = "body"
		}
		fields[i] = FieldError{Field: field, Tag: "schema", Message: fmt.Sprintf("%s: %s", field, ke.Message)}
	}
	return &RequestValidationError{Fields: fields}
}
