package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

func TestLoad_Builtin(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{"document_collection", "knowledge_base_collection"}, r.Templates())
}

func TestLoad_FromFile(t *testing.T) {
	doc := `
collection_templates:
  minimal:
    fields:
      - name: id
        data_type: varchar
        is_primary: true
      - name: embedding
        data_type: float_vector
        dimension: 128
`
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	def, err := r.Resolve("minimal", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "minimal", def.Name)
	require.Len(t, def.Fields, 2)
	assert.Equal(t, 128, def.Fields[1].Dimension)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/templates.yaml", zap.NewNop())
	require.Error(t, err)
}

func TestLoadBytes_BrokenReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown field group",
			doc: `
collection_templates:
  broken:
    field_groups: [missing_group]
`,
		},
		{
			name: "unknown index template",
			doc: `
collection_templates:
  broken:
    fields:
      - name: id
        data_type: varchar
        is_primary: true
    index: missing_index
`,
		},
		{
			name: "no fields at all",
			doc: `
collection_templates:
  broken:
    description: nothing here
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBytes([]byte(tt.doc), zap.NewNop())
			require.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestResolve_FlattensGroupsAheadOfInlineFields(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	def, err := r.Resolve("document_collection", Overrides{})
	require.NoError(t, err)

	// document_base, then tenancy, then the inline field.
	names := make([]string, len(def.Fields))
	for i, f := range def.Fields {
		names[i] = f.Name
	}
	assert.Equal(t, []string{"id", "content", "embedding", "tenant_id", "created_at", "source"}, names)

	assert.Equal(t, "HNSW", def.Index.IndexType)
	assert.Equal(t, "COSINE", def.Index.MetricType)
	assert.True(t, def.Partitions.Enabled)
	assert.Equal(t, "tenant_id", def.Partitions.PartitionKeyField)
}

func TestResolve_DimensionOverrideRewritesAllVectorFields(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	// knowledge_base_collection declares two vector fields.
	def, err := r.Resolve("knowledge_base_collection", Overrides{Dimension: 1536})
	require.NoError(t, err)

	vectors := def.VectorFields()
	require.Len(t, vectors, 2)
	for _, i := range vectors {
		assert.Equal(t, 1536, def.Fields[i].Dimension, "field %s", def.Fields[i].Name)
	}
}

func TestResolve_CollectionNameOverride(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	def, err := r.Resolve("document_collection", Overrides{CollectionName: "tenant_42_docs"})
	require.NoError(t, err)
	assert.Equal(t, "tenant_42_docs", def.Name)
}

func TestResolve_Deterministic(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	ov := Overrides{Dimension: 768}
	first, err := r.Resolve("document_collection", ov)
	require.NoError(t, err)
	second, err := r.Resolve("document_collection", ov)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// Results are independent copies: mutating one must not leak into the
	// registry or later resolutions.
	first.Fields[0].Name = "mutated"
	first.Index.Params["m"] = 9999
	third, err := r.Resolve("document_collection", ov)
	require.NoError(t, err)
	assert.Equal(t, second, third)
}

func TestResolve_UnknownTemplate(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	_, err = r.Resolve("nope", Overrides{})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}

func TestConnection_Overrides(t *testing.T) {
	r, err := Load("", zap.NewNop())
	require.NoError(t, err)

	conn, err := r.Connection("qdrant_local", Overrides{})
	require.NoError(t, err)
	assert.Equal(t, schema.EngineConnectionConfig{Host: "localhost", Port: 6334}, conn)

	conn, err = r.Connection("qdrant_local", Overrides{Host: "qdrant.internal", Port: 7000})
	require.NoError(t, err)
	assert.Equal(t, "qdrant.internal", conn.Host)
	assert.Equal(t, 7000, conn.Port)

	conn, err = r.Connection("redis_local", Overrides{ConnectionString: "redis://cache:6380/1"})
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6380/1", conn.ConnectionString)

	_, err = r.Connection("nope", Overrides{})
	require.ErrorIs(t, err, ErrTemplateNotFound)
}
