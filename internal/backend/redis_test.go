package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

func redisTestDefinition() *schema.CollectionDefinition {
	return &schema.CollectionDefinition{
		Name: "documents",
		Fields: []schema.FieldSpec{
			{Name: "id", DataType: schema.DataTypeVarchar, IsPrimary: true},
			{Name: "content", DataType: schema.DataTypeVarchar},
			{Name: "tenant_id", DataType: schema.DataTypeVarchar},
			{Name: "created_at", DataType: schema.DataTypeInt64},
			{Name: "score", DataType: schema.DataTypeFloat},
			{Name: "archived", DataType: schema.DataTypeBool},
			{Name: "embedding", DataType: schema.DataTypeFloatVector, Dimension: 384},
		},
		Index: schema.IndexSpec{
			IndexType:  "HNSW",
			MetricType: "COSINE",
			Params:     map[string]any{"m": 16, "ef_construction": 200},
		},
		Partitions: schema.PartitionPolicy{
			Enabled:           true,
			PartitionKeyField: "tenant_id",
		},
	}
}

func TestBuildCreateArgs(t *testing.T) {
	args, err := buildCreateArgs(redisTestDefinition())
	require.NoError(t, err)

	want := []string{
		"documents", "ON", "HASH", "PREFIX", "1", "documents:", "SCHEMA",
		// id is the hash key itself, not an indexed field
		"content", "TEXT",
		"tenant_id", "TAG", // partition key indexes as TAG for exact filters
		"created_at", "NUMERIC",
		"score", "NUMERIC",
		"archived", "TAG",
		"embedding", "VECTOR", "HNSW", "10",
		"TYPE", "FLOAT32",
		"DIM", "384",
		"DISTANCE_METRIC", "COSINE",
		"M", "16",
		"EF_CONSTRUCTION", "200",
	}
	assert.Equal(t, want, args)
}

func TestBuildCreateArgs_NoHnswParams(t *testing.T) {
	def := redisTestDefinition()
	def.Index.Params = nil

	args, err := buildCreateArgs(def)
	require.NoError(t, err)

	// Attribute count shrinks to the three mandatory pairs.
	assert.Contains(t, args, "VECTOR")
	i := indexOf(args, "VECTOR")
	assert.Equal(t, "HNSW", args[i+1])
	assert.Equal(t, "6", args[i+2])
}

func TestBuildCreateArgs_JSONFieldUnsupported(t *testing.T) {
	def := redisTestDefinition()
	def.Fields = append(def.Fields, schema.FieldSpec{Name: "extra", DataType: schema.DataTypeJSON})

	_, err := buildCreateArgs(def)
	require.ErrorIs(t, err, schema.ErrUnsupportedFieldType)
}

func TestRedisMetric(t *testing.T) {
	tests := []struct {
		metric string
		want   string
	}{
		{"", "COSINE"},
		{"COSINE", "COSINE"},
		{"cosine", "COSINE"},
		{"L2", "L2"},
		{"EUCLID", "L2"},
		{"IP", "IP"},
		{"DOT", "IP"},
	}
	for _, tt := range tests {
		got, err := redisMetric(tt.metric)
		require.NoError(t, err, tt.metric)
		assert.Equal(t, tt.want, got)
	}

	_, err := redisMetric("HAMMING")
	require.ErrorIs(t, err, schema.ErrUnsupportedFieldType)
}

func TestIsRedisErr(t *testing.T) {
	assert.True(t, isRedisErr(errors.New("Unknown index name"), "unknown index name"))
	assert.False(t, isRedisErr(errors.New("WRONGTYPE"), "unknown index name"))
	assert.False(t, isRedisErr(nil, "unknown index name"))
}

func TestRedisAdapter_RequiresConnection(t *testing.T) {
	adapter, err := NewRedisAdapter(schema.EngineConnectionConfig{Host: "localhost", Port: 6379}, nil)
	require.NoError(t, err)

	_, err = adapter.CollectionExists(t.Context(), "documents")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, adapter.CreateCollection(t.Context(), redisTestDefinition()), ErrNotConnected)
	assert.ErrorIs(t, adapter.DropCollection(t.Context(), "documents"), ErrNotConnected)
	assert.ErrorIs(t, adapter.Probe(t.Context()), ErrNotConnected)
	assert.NoError(t, adapter.Disconnect())
}

func indexOf(args []string, want string) int {
	for i, a := range args {
		if a == want {
			return i
		}
	}
	return -1
}
