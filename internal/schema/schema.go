// Package schema defines the backend-agnostic description of a vector
// collection: its fields, index, partition policy and the connection
// parameters of the engine it is created on.
//
// The types here are pure data plus validation. Translating them into a
// concrete engine's create calls is the job of the backend adapters.
package schema

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for schema validation and translation.
var (
	// ErrInvalidDefinition indicates a structurally invalid collection definition.
	ErrInvalidDefinition = errors.New("invalid collection definition")

	// ErrUnsupportedFieldType is returned by an adapter when a generic data
	// type has no mapping for its engine family. Never retried.
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// EngineID identifies a supported storage engine family.
//
// The set is closed: adapters are registered statically at startup, there is
// no runtime module lookup.
type EngineID string

const (
	// EngineQdrant is the Qdrant gRPC engine family.
	EngineQdrant EngineID = "qdrant"

	// EngineChromem is the embedded chromem-go engine family.
	EngineChromem EngineID = "chromem"

	// EngineRedis is the Redis (RediSearch FT index) engine family.
	EngineRedis EngineID = "redis"
)

// Engines returns all supported engine families in a stable order.
func Engines() []EngineID {
	return []EngineID{EngineQdrant, EngineChromem, EngineRedis}
}

// Valid reports whether the engine ID names a supported family.
func (e EngineID) Valid() bool {
	switch e {
	case EngineQdrant, EngineChromem, EngineRedis:
		return true
	}
	return false
}

// DataType is the generic data type of a field.
type DataType string

const (
	DataTypeBool        DataType = "bool"
	DataTypeInt64       DataType = "int64"
	DataTypeFloat       DataType = "float"
	DataTypeVarchar     DataType = "varchar"
	DataTypeJSON        DataType = "json"
	DataTypeFloatVector DataType = "float_vector"
)

// IsVector reports whether the data type carries an embedding dimension.
func (d DataType) IsVector() bool {
	return d == DataTypeFloatVector
}

// Valid reports whether the data type is a known generic type.
func (d DataType) Valid() bool {
	switch d {
	case DataTypeBool, DataTypeInt64, DataTypeFloat, DataTypeVarchar, DataTypeJSON, DataTypeFloatVector:
		return true
	}
	return false
}

// FieldSpec describes a single field of a collection.
type FieldSpec struct {
	// Name is the field name.
	Name string `koanf:"name" json:"name"`

	// DataType is the generic data type. Adapters translate it to their
	// engine's native type; a type with no mapping is a fatal error.
	DataType DataType `koanf:"data_type" json:"data_type"`

	// IsPrimary marks the primary-key field. Exactly one per collection.
	IsPrimary bool `koanf:"is_primary" json:"is_primary"`

	// AutoID lets the engine generate primary-key values.
	AutoID bool `koanf:"auto_id" json:"auto_id"`

	// MaxLength bounds varchar fields. Zero means engine default.
	MaxLength int `koanf:"max_length" json:"max_length,omitempty"`

	// Dimension is the embedding dimensionality. Required (>0) for vector
	// types, ignored otherwise.
	Dimension int `koanf:"dimension" json:"dimension,omitempty"`

	// Nullable allows null values for this field.
	Nullable bool `koanf:"nullable" json:"nullable"`

	// DefaultValue is the engine-side default, if any.
	DefaultValue any `koanf:"default_value" json:"default_value,omitempty"`
}

// Validate checks a single field in isolation.
func (f FieldSpec) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: field name required", ErrInvalidDefinition)
	}
	if !f.DataType.Valid() {
		return fmt.Errorf("%w: field %s has unknown data type %q", ErrInvalidDefinition, f.Name, f.DataType)
	}
	if f.DataType.IsVector() && f.Dimension <= 0 {
		return fmt.Errorf("%w: vector field %s requires a positive dimension, got %d",
			ErrInvalidDefinition, f.Name, f.Dimension)
	}
	if f.AutoID && !f.IsPrimary {
		return fmt.Errorf("%w: field %s has auto_id but is not primary", ErrInvalidDefinition, f.Name)
	}
	return nil
}

// IndexSpec describes the vector index to build on a collection.
//
// IndexType and MetricType are structural here; the adapter for the target
// engine family is authoritative about which combinations it supports.
type IndexSpec struct {
	IndexType  string         `koanf:"index_type" json:"index_type"`
	MetricType string         `koanf:"metric_type" json:"metric_type"`
	Params     map[string]any `koanf:"params" json:"params,omitempty"`
}

// Clone returns a deep copy.
func (i IndexSpec) Clone() IndexSpec {
	out := IndexSpec{IndexType: i.IndexType, MetricType: i.MetricType}
	if i.Params != nil {
		out.Params = make(map[string]any, len(i.Params))
		for k, v := range i.Params {
			out.Params[k] = v
		}
	}
	return out
}

// PartitionPolicy describes how a collection is partitioned.
type PartitionPolicy struct {
	Enabled           bool     `koanf:"enabled" json:"enabled"`
	PartitionKeyField string   `koanf:"partition_key_field" json:"partition_key_field,omitempty"`
	DefaultPartitions []string `koanf:"default_partitions" json:"default_partitions,omitempty"`
}

// Clone returns a deep copy.
func (p PartitionPolicy) Clone() PartitionPolicy {
	out := PartitionPolicy{Enabled: p.Enabled, PartitionKeyField: p.PartitionKeyField}
	if p.DefaultPartitions != nil {
		out.DefaultPartitions = append([]string(nil), p.DefaultPartitions...)
	}
	return out
}

// CollectionDefinition is the complete, engine-agnostic description of one
// vector collection. Instances are built transiently per bootstrap attempt
// from a template plus overrides and are never persisted.
type CollectionDefinition struct {
	Name          string          `koanf:"name" json:"name"`
	Description   string          `koanf:"description" json:"description,omitempty"`
	Fields        []FieldSpec     `koanf:"fields" json:"fields"`
	DynamicFields bool            `koanf:"dynamic_fields" json:"dynamic_fields"`
	Index         IndexSpec       `koanf:"index" json:"index"`
	Partitions    PartitionPolicy `koanf:"partitions" json:"partitions"`
}

// Validate checks the definition's structural invariants: non-empty fields,
// exactly one primary-key field, at least one vector field, and per-field
// validity.
func (d *CollectionDefinition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: collection name required", ErrInvalidDefinition)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: collection %s has no fields", ErrInvalidDefinition, d.Name)
	}

	primaries := 0
	vectors := 0
	for _, f := range d.Fields {
		if err := f.Validate(); err != nil {
			return err
		}
		if f.IsPrimary {
			primaries++
		}
		if f.DataType.IsVector() {
			vectors++
		}
	}

	if primaries != 1 {
		return fmt.Errorf("%w: collection %s must have exactly one primary field, got %d",
			ErrInvalidDefinition, d.Name, primaries)
	}
	if vectors == 0 {
		return fmt.Errorf("%w: collection %s must have at least one vector field",
			ErrInvalidDefinition, d.Name)
	}
	if d.Partitions.Enabled && d.Partitions.PartitionKeyField != "" {
		if d.FieldByName(d.Partitions.PartitionKeyField) == nil {
			return fmt.Errorf("%w: partition key field %s not declared in collection %s",
				ErrInvalidDefinition, d.Partitions.PartitionKeyField, d.Name)
		}
	}
	return nil
}

// Clone returns a deep copy of the definition.
func (d *CollectionDefinition) Clone() *CollectionDefinition {
	out := &CollectionDefinition{
		Name:          d.Name,
		Description:   d.Description,
		DynamicFields: d.DynamicFields,
		Index:         d.Index.Clone(),
		Partitions:    d.Partitions.Clone(),
	}
	out.Fields = append([]FieldSpec(nil), d.Fields...)
	return out
}

// VectorFields returns the indices of all vector-typed fields.
func (d *CollectionDefinition) VectorFields() []int {
	var out []int
	for i, f := range d.Fields {
		if f.DataType.IsVector() {
			out = append(out, i)
		}
	}
	return out
}

// FieldByName returns the field with the given name, or nil.
func (d *CollectionDefinition) FieldByName(name string) *FieldSpec {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i]
		}
	}
	return nil
}

// PrimaryField returns the primary-key field, or nil if none is declared.
func (d *CollectionDefinition) PrimaryField() *FieldSpec {
	for i := range d.Fields {
		if d.Fields[i].IsPrimary {
			return &d.Fields[i]
		}
	}
	return nil
}

// EngineConnectionConfig holds connection parameters for one engine family.
//
// Exactly one concrete shape is active at a time: the host/port form
// (networked engines), the path form (embedded engines) or the single
// connection-string form.
type EngineConnectionConfig struct {
	// Host and Port address a networked engine.
	Host string `koanf:"host" json:"host,omitempty"`
	Port int    `koanf:"port" json:"port,omitempty"`

	// Path is the data directory of an embedded engine.
	Path string `koanf:"path" json:"path,omitempty"`

	// ConnectionString is the single-string form (e.g. redis://host:port/0).
	// When set it takes precedence over the host/port fields.
	ConnectionString string `koanf:"connection_string" json:"connection_string,omitempty"`

	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"-"`
	APIKey   string `koanf:"api_key" json:"-"`

	UseTLS   bool `koanf:"use_tls" json:"use_tls,omitempty"`
	Compress bool `koanf:"compress" json:"compress,omitempty"`
	Database int  `koanf:"database" json:"database,omitempty"`

	// Timeout bounds connection establishment. Probe timeouts are configured
	// separately and are intentionally shorter.
	Timeout time.Duration `koanf:"timeout" json:"timeout,omitempty"`
}

// IsConfigured reports whether any connection shape has been set.
func (c EngineConnectionConfig) IsConfigured() bool {
	return c != EngineConnectionConfig{}
}

// Validate checks that at least one connection shape is usable.
func (c EngineConnectionConfig) Validate() error {
	if c.ConnectionString != "" || c.Path != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("%w: connection requires host, path or connection_string", ErrInvalidDefinition)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidDefinition, c.Port)
	}
	return nil
}
