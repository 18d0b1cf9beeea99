package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9464, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Log.Level)

	ai := cfg.VectorDatabase.AutoInit
	assert.True(t, ai.Enabled)
	assert.Equal(t, schema.EngineQdrant, ai.PrimaryEngine)
	assert.Equal(t, []schema.EngineID{schema.EngineChromem}, ai.FallbackEngines)
	assert.Equal(t, []string{"document_collection"}, ai.AutoCreateCollections)
	assert.Equal(t, 3, ai.RetryAttempts)
	assert.Equal(t, 5*time.Second, ai.RetryDelay)
	assert.Equal(t, 30*time.Second, ai.HealthCheckInterval)
	assert.Equal(t, 3*time.Second, ai.ProbeTimeout)
	assert.True(t, ai.AutoFailover)
	assert.Equal(t, 3, ai.FailoverThreshold)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	content := `
server:
  port: 8080
vector_database:
  dimension: 768
  auto_init:
    primary_engine: redis
    fallback_engines: [qdrant, chromem]
    retry_attempts: 5
  redis:
    connection:
      connection_string: redis://localhost:6379/0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 768, cfg.VectorDatabase.Dimension)

	ai := cfg.VectorDatabase.AutoInit
	assert.Equal(t, schema.EngineRedis, ai.PrimaryEngine)
	assert.Equal(t, []schema.EngineID{schema.EngineQdrant, schema.EngineChromem}, ai.FallbackEngines)
	assert.Equal(t, 5, ai.RetryAttempts)

	// Keys the file does not touch keep their defaults.
	assert.Equal(t, 5*time.Second, ai.RetryDelay)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFileIsSkipped(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9464, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	content := `
server:
  port: 8080
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("VECTORD_SERVER_PORT", "9090")
	t.Setenv("VECTORD_AUTO_INIT_PRIMARY_ENGINE", "chromem")
	t.Setenv("VECTORD_AUTO_INIT_FALLBACK_ENGINES", "qdrant, chromem")
	t.Setenv("VECTORD_AUTO_INIT_DROP_EXISTING", "true")
	t.Setenv("VECTORD_AUTO_INIT_RETRY_DELAY", "250ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)

	ai := cfg.VectorDatabase.AutoInit
	assert.Equal(t, schema.EngineChromem, ai.PrimaryEngine)
	assert.Equal(t, []schema.EngineID{schema.EngineQdrant, schema.EngineChromem}, ai.FallbackEngines)
	assert.True(t, ai.DropExisting)
	assert.Equal(t, 250*time.Millisecond, ai.RetryDelay)
}

func TestLoad_UnknownEnvVarsIgnored(t *testing.T) {
	t.Setenv("VECTORD_NO_SUCH_KEY", "whatever")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9464, cfg.Server.Port)
}

func TestCoerceEnvValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"false", false},
		{"6334", 6334},
		{"0.5", 0.5},
		{"a,b, c", []string{"a", "b", "c"}},
		{"30s", "30s"},
		{"qdrant", "qdrant"},
		{"redis://localhost:6379/0", "redis://localhost:6379/0"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, coerceEnvValue(tt.raw))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("primary engine required", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.PrimaryEngine = ""
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("unknown engine family", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.FallbackEngines = []schema.EngineID{"milvus"}
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("candidate without connection config", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.FallbackEngines = []schema.EngineID{schema.EngineRedis}
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("retry attempts below one", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.RetryAttempts = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("probe timeout must be positive", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.HealthCheckEnabled = true
		cfg.VectorDatabase.AutoInit.ProbeTimeout = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("failover threshold below one", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.FailoverThreshold = 0
		require.ErrorIs(t, cfg.Validate(), ErrInvalidPolicy)
	})

	t.Run("disabled auto-init skips policy checks", func(t *testing.T) {
		cfg := base()
		cfg.VectorDatabase.AutoInit.Enabled = false
		cfg.VectorDatabase.AutoInit.PrimaryEngine = ""
		require.NoError(t, cfg.Validate())
	})

	t.Run("bad server port", func(t *testing.T) {
		cfg := base()
		cfg.Server.Port = 0
		require.Error(t, cfg.Validate())
	})
}

func TestAutoInitConfig_Candidates(t *testing.T) {
	ai := AutoInitConfig{
		PrimaryEngine:   schema.EngineQdrant,
		FallbackEngines: []schema.EngineID{schema.EngineChromem, schema.EngineRedis},
	}
	assert.Equal(t,
		[]schema.EngineID{schema.EngineQdrant, schema.EngineChromem, schema.EngineRedis},
		ai.Candidates())

	assert.Empty(t, AutoInitConfig{}.Candidates())
}
