// Package config resolves the effective vectord configuration from compiled
// defaults, an optional YAML file and environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// ErrInvalidPolicy indicates a statically broken auto-init policy. Fatal to
// the operation, never retried.
var ErrInvalidPolicy = errors.New("invalid auto-init policy")

// Config holds the complete vectord configuration.
type Config struct {
	Server         ServerConfig         `koanf:"server"`
	Log            LogConfig            `koanf:"log"`
	VectorDatabase VectorDatabaseConfig `koanf:"vector_database"`
}

// ServerConfig holds the admin HTTP surface configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// VectorDatabaseConfig is the root of the vector database keyspace: the
// auto-init policy plus one connection subsection per engine family.
type VectorDatabaseConfig struct {
	TemplatesPath string `koanf:"templates_path"`

	// Dimension, when positive, overrides the embedding dimension of every
	// vector field in every resolved collection template.
	Dimension int `koanf:"dimension"`

	AutoInit AutoInitConfig `koanf:"auto_init"`

	Qdrant  EngineSection `koanf:"qdrant"`
	Chromem EngineSection `koanf:"chromem"`
	Redis   EngineSection `koanf:"redis"`
}

// EngineSection wraps the connection parameters of one engine family.
type EngineSection struct {
	Connection schema.EngineConnectionConfig `koanf:"connection"`
}

// AutoInitConfig is the auto-initialization policy: which engine is primary,
// the ordered fallbacks, the collections to create, and the retry and
// health-check parameters.
type AutoInitConfig struct {
	Enabled bool `koanf:"enabled"`

	PrimaryEngine   schema.EngineID   `koanf:"primary_engine"`
	FallbackEngines []schema.EngineID `koanf:"fallback_engines"`

	// AutoCreateCollections lists the collection template names created on
	// every engine attempt.
	AutoCreateCollections []string `koanf:"auto_create_collections"`

	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	// DropExisting, CreatePartitions and LoadAfterCreate are passed through
	// to the standard initializer.
	DropExisting     bool `koanf:"drop_existing"`
	CreatePartitions bool `koanf:"create_partitions"`
	LoadAfterCreate  bool `koanf:"load_after_create"`

	HealthCheckEnabled  bool          `koanf:"health_check_enabled"`
	HealthCheckInterval time.Duration `koanf:"health_check_interval"`

	// ProbeTimeout bounds a single liveness probe. Deliberately shorter than
	// the connection timeout.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`

	AutoFailover      bool `koanf:"auto_failover"`
	FailoverThreshold int  `koanf:"failover_threshold"`
}

// Candidates returns the engine candidate list in priority order:
// the primary engine followed by the configured fallbacks.
func (a AutoInitConfig) Candidates() []schema.EngineID {
	out := make([]schema.EngineID, 0, 1+len(a.FallbackEngines))
	if a.PrimaryEngine != "" {
		out = append(out, a.PrimaryEngine)
	}
	out = append(out, a.FallbackEngines...)
	return out
}

// EngineConnection returns the connection config for an engine family and
// whether any connection shape has been configured for it.
func (c *Config) EngineConnection(id schema.EngineID) (schema.EngineConnectionConfig, bool) {
	var conn schema.EngineConnectionConfig
	switch id {
	case schema.EngineQdrant:
		conn = c.VectorDatabase.Qdrant.Connection
	case schema.EngineChromem:
		conn = c.VectorDatabase.Chromem.Connection
	case schema.EngineRedis:
		conn = c.VectorDatabase.Redis.Connection
	default:
		return schema.EngineConnectionConfig{}, false
	}
	return conn, conn.IsConfigured()
}

// Validate validates the effective configuration.
//
// Returns ErrInvalidPolicy when auto-init is enabled without a primary
// engine, when an unknown engine family is named, or when a candidate engine
// has no corresponding connection config.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	ai := c.VectorDatabase.AutoInit
	if !ai.Enabled {
		return nil
	}

	if ai.PrimaryEngine == "" {
		return fmt.Errorf("%w: primary engine required when auto-init is enabled", ErrInvalidPolicy)
	}
	for _, id := range ai.Candidates() {
		if !id.Valid() {
			return fmt.Errorf("%w: unknown engine family %q", ErrInvalidPolicy, id)
		}
		if _, ok := c.EngineConnection(id); !ok {
			return fmt.Errorf("%w: engine %s has no connection config", ErrInvalidPolicy, id)
		}
	}
	if ai.RetryAttempts < 1 {
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalidPolicy)
	}
	if ai.HealthCheckEnabled && ai.HealthCheckInterval <= 0 {
		return fmt.Errorf("%w: health_check_interval must be positive", ErrInvalidPolicy)
	}
	if ai.HealthCheckEnabled && ai.ProbeTimeout <= 0 {
		return fmt.Errorf("%w: probe_timeout must be positive", ErrInvalidPolicy)
	}
	if ai.AutoFailover && ai.FailoverThreshold < 1 {
		return fmt.Errorf("%w: failover_threshold must be at least 1", ErrInvalidPolicy)
	}
	return nil
}
