package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

func chromemTestDefinition() *schema.CollectionDefinition {
	return &schema.CollectionDefinition{
		Name:        "documents",
		Description: "test collection",
		Fields: []schema.FieldSpec{
			{Name: "id", DataType: schema.DataTypeVarchar, IsPrimary: true},
			{Name: "content", DataType: schema.DataTypeVarchar},
			{Name: "embedding", DataType: schema.DataTypeFloatVector, Dimension: 384},
		},
		Index: schema.IndexSpec{IndexType: "HNSW", MetricType: "COSINE"},
	}
}

func newTestChromem(t *testing.T) *ChromemAdapter {
	t.Helper()
	adapter, err := NewChromemAdapter(schema.EngineConnectionConfig{Path: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, adapter.Connect(context.Background()))
	t.Cleanup(func() { _ = adapter.Disconnect() })
	return adapter
}

func TestChromemAdapter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	adapter := newTestChromem(t)

	exists, err := adapter.CollectionExists(ctx, "documents")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, adapter.CreateCollection(ctx, chromemTestDefinition()))

	exists, err = adapter.CollectionExists(ctx, "documents")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, adapter.CreatePartition(ctx, "documents", "shared"))
	require.NoError(t, adapter.LoadCollection(ctx, "documents"))
	require.NoError(t, adapter.Probe(ctx))

	require.NoError(t, adapter.DropCollection(ctx, "documents"))
	exists, err = adapter.CollectionExists(ctx, "documents")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemAdapter_RequiresPath(t *testing.T) {
	_, err := NewChromemAdapter(schema.EngineConnectionConfig{}, nil)
	require.ErrorIs(t, err, schema.ErrInvalidDefinition)
}

func TestChromemAdapter_RequiresConnection(t *testing.T) {
	adapter, err := NewChromemAdapter(schema.EngineConnectionConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)

	_, err = adapter.CollectionExists(context.Background(), "documents")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, adapter.Probe(context.Background()), ErrNotConnected)
}

func TestChromemCheckFields(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		dim, err := chromemCheckFields(chromemTestDefinition())
		require.NoError(t, err)
		assert.Equal(t, 384, dim)
	})

	t.Run("two vector fields", func(t *testing.T) {
		def := chromemTestDefinition()
		def.Fields = append(def.Fields, schema.FieldSpec{
			Name: "summary_embedding", DataType: schema.DataTypeFloatVector, Dimension: 384,
		})
		_, err := chromemCheckFields(def)
		require.ErrorIs(t, err, schema.ErrUnsupportedFieldType)
	})

	t.Run("json field", func(t *testing.T) {
		def := chromemTestDefinition()
		def.Fields = append(def.Fields, schema.FieldSpec{Name: "meta", DataType: schema.DataTypeJSON})
		_, err := chromemCheckFields(def)
		require.ErrorIs(t, err, schema.ErrUnsupportedFieldType)
	})

	t.Run("non-varchar primary", func(t *testing.T) {
		def := chromemTestDefinition()
		def.Fields[0].DataType = schema.DataTypeInt64
		_, err := chromemCheckFields(def)
		require.ErrorIs(t, err, schema.ErrUnsupportedFieldType)
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	for _, id := range schema.Engines() {
		assert.True(t, r.Supports(id), "engine %s", id)
	}
	assert.False(t, r.Supports("milvus"))

	adapter, err := r.New(schema.EngineChromem, schema.EngineConnectionConfig{Path: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, schema.EngineChromem, adapter.Engine())

	_, err = r.New("milvus", schema.EngineConnectionConfig{})
	require.ErrorIs(t, err, ErrUnknownEngine)
}
