// Package template loads named, parameterizable collection blueprints and
// materializes them into concrete schema definitions.
//
// The template source is a declarative YAML document listing named field
// groups, named index templates, named collection templates and named base
// connection configs. It is loaded once at startup and read-only thereafter.
package template

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// Sentinel errors for template resolution.
var (
	// ErrTemplateNotFound is returned when a template name is unknown.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrInvalidTemplate indicates a structurally broken template document.
	ErrInvalidTemplate = errors.New("invalid template document")
)

//go:embed templates.yaml
var builtinTemplates []byte

// Overrides parameterize template resolution. Zero values leave the template
// untouched.
type Overrides struct {
	// CollectionName replaces the template's collection name.
	CollectionName string

	// Dimension rewrites the dimension of EVERY vector-typed field in the
	// resolved definition.
	Dimension int

	// Host, Port and ConnectionString override base connection configs.
	Host             string
	Port             int
	ConnectionString string
}

// collectionTemplate is the on-disk shape of one collection blueprint.
// Fields may be listed inline or pulled in by field-group reference; group
// fields are flattened ahead of inline fields during resolution.
type collectionTemplate struct {
	Description   string                 `koanf:"description"`
	FieldGroups   []string               `koanf:"field_groups"`
	Fields        []schema.FieldSpec     `koanf:"fields"`
	DynamicFields bool                   `koanf:"dynamic_fields"`
	Index         string                 `koanf:"index"`
	Partitions    schema.PartitionPolicy `koanf:"partitions"`
}

// document is the full template source.
type document struct {
	FieldGroups    map[string][]schema.FieldSpec            `koanf:"field_groups"`
	IndexTemplates map[string]schema.IndexSpec              `koanf:"index_templates"`
	Collections    map[string]collectionTemplate            `koanf:"collection_templates"`
	Connections    map[string]schema.EngineConnectionConfig `koanf:"connections"`
}

// Registry holds the parsed template document. Safe for concurrent reads.
type Registry struct {
	doc    document
	logger *zap.Logger
}

// Load reads a template document from path. An empty path loads the builtin
// document compiled into the binary.
func Load(path string, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	raw := builtinTemplates
	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading template document %s: %w", path, err)
		}
		raw = content
	}
	return LoadBytes(raw, logger)
}

// LoadBytes parses a template document from raw YAML.
func LoadBytes(raw []byte, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(raw), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	var doc document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}

	r := &Registry{doc: doc, logger: logger}
	if err := r.validate(); err != nil {
		return nil, err
	}

	logger.Info("template registry loaded",
		zap.Int("collection_templates", len(doc.Collections)),
		zap.Int("field_groups", len(doc.FieldGroups)),
		zap.Int("index_templates", len(doc.IndexTemplates)),
		zap.Int("connections", len(doc.Connections)))

	return r, nil
}

// validate cross-checks every reference in the document up front so a broken
// document fails at load time, not mid-bootstrap.
func (r *Registry) validate() error {
	for name, tpl := range r.doc.Collections {
		for _, group := range tpl.FieldGroups {
			if _, ok := r.doc.FieldGroups[group]; !ok {
				return fmt.Errorf("%w: collection template %s references unknown field group %s",
					ErrInvalidTemplate, name, group)
			}
		}
		if tpl.Index != "" {
			if _, ok := r.doc.IndexTemplates[tpl.Index]; !ok {
				return fmt.Errorf("%w: collection template %s references unknown index template %s",
					ErrInvalidTemplate, name, tpl.Index)
			}
		}
		if len(tpl.FieldGroups) == 0 && len(tpl.Fields) == 0 {
			return fmt.Errorf("%w: collection template %s declares no fields", ErrInvalidTemplate, name)
		}
	}
	return nil
}

// Templates returns the names of all collection templates, sorted.
func (r *Registry) Templates() []string {
	names := make([]string, 0, len(r.doc.Collections))
	for name := range r.doc.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve materializes the named collection template into a concrete
// definition, flattening field-group references and applying overrides.
//
// Resolution is deterministic: the same (name, overrides) pair always yields
// structurally equal definitions. All returned data is deep-copied; callers
// own the result.
func (r *Registry) Resolve(name string, ov Overrides) (*schema.CollectionDefinition, error) {
	tpl, ok := r.doc.Collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	def := &schema.CollectionDefinition{
		Name:          name,
		Description:   tpl.Description,
		DynamicFields: tpl.DynamicFields,
		Partitions:    tpl.Partitions.Clone(),
	}
	if ov.CollectionName != "" {
		def.Name = ov.CollectionName
	}

	// Group fields flatten in declaration order, ahead of inline fields.
	for _, group := range tpl.FieldGroups {
		def.Fields = append(def.Fields, r.doc.FieldGroups[group]...)
	}
	def.Fields = append(def.Fields, tpl.Fields...)

	if tpl.Index != "" {
		def.Index = r.doc.IndexTemplates[tpl.Index].Clone()
	}

	// A dimension override rewrites every vector field, however many the
	// template declares.
	if ov.Dimension > 0 {
		for _, i := range def.VectorFields() {
			def.Fields[i].Dimension = ov.Dimension
		}
	}

	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("resolving template %s: %w", name, err)
	}
	return def, nil
}

// Connection returns the named base connection config with host, port and
// connection-string overrides applied.
func (r *Registry) Connection(name string, ov Overrides) (schema.EngineConnectionConfig, error) {
	conn, ok := r.doc.Connections[name]
	if !ok {
		return schema.EngineConnectionConfig{}, fmt.Errorf("%w: connection %s", ErrTemplateNotFound, name)
	}
	if ov.Host != "" {
		conn.Host = ov.Host
	}
	if ov.Port > 0 {
		conn.Port = ov.Port
	}
	if ov.ConnectionString != "" {
		conn.ConnectionString = ov.ConnectionString
	}
	return conn, nil
}
