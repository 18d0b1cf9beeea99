package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// envPrefix is the prefix shared by every vectord environment variable.
const envPrefix = "VECTORD_"

// envKeyMap is the documented fixed mapping from environment variables to
// configuration keys. Every key in the layered keyspace is overridable
// through exactly one variable; unknown VECTORD_* variables are ignored.
var envKeyMap = map[string]string{
	"VECTORD_SERVER_PORT":             "server.port",
	"VECTORD_SERVER_SHUTDOWN_TIMEOUT": "server.shutdown_timeout",
	"VECTORD_LOG_LEVEL":               "log.level",
	"VECTORD_LOG_FORMAT":              "log.format",

	"VECTORD_TEMPLATES_PATH": "vector_database.templates_path",
	"VECTORD_DIMENSION":      "vector_database.dimension",

	"VECTORD_AUTO_INIT_ENABLED":               "vector_database.auto_init.enabled",
	"VECTORD_AUTO_INIT_PRIMARY_ENGINE":        "vector_database.auto_init.primary_engine",
	"VECTORD_AUTO_INIT_FALLBACK_ENGINES":      "vector_database.auto_init.fallback_engines",
	"VECTORD_AUTO_INIT_COLLECTIONS":           "vector_database.auto_init.auto_create_collections",
	"VECTORD_AUTO_INIT_RETRY_ATTEMPTS":        "vector_database.auto_init.retry_attempts",
	"VECTORD_AUTO_INIT_RETRY_DELAY":           "vector_database.auto_init.retry_delay",
	"VECTORD_AUTO_INIT_DROP_EXISTING":         "vector_database.auto_init.drop_existing",
	"VECTORD_AUTO_INIT_CREATE_PARTITIONS":     "vector_database.auto_init.create_partitions",
	"VECTORD_AUTO_INIT_LOAD_AFTER_CREATE":     "vector_database.auto_init.load_after_create",
	"VECTORD_AUTO_INIT_HEALTH_CHECK_ENABLED":  "vector_database.auto_init.health_check_enabled",
	"VECTORD_AUTO_INIT_HEALTH_CHECK_INTERVAL": "vector_database.auto_init.health_check_interval",
	"VECTORD_AUTO_INIT_PROBE_TIMEOUT":         "vector_database.auto_init.probe_timeout",
	"VECTORD_AUTO_INIT_AUTO_FAILOVER":         "vector_database.auto_init.auto_failover",
	"VECTORD_AUTO_INIT_FAILOVER_THRESHOLD":    "vector_database.auto_init.failover_threshold",

	"VECTORD_QDRANT_HOST":    "vector_database.qdrant.connection.host",
	"VECTORD_QDRANT_PORT":    "vector_database.qdrant.connection.port",
	"VECTORD_QDRANT_API_KEY": "vector_database.qdrant.connection.api_key",
	"VECTORD_QDRANT_USE_TLS": "vector_database.qdrant.connection.use_tls",
	"VECTORD_QDRANT_TIMEOUT": "vector_database.qdrant.connection.timeout",

	"VECTORD_CHROMEM_PATH":     "vector_database.chromem.connection.path",
	"VECTORD_CHROMEM_COMPRESS": "vector_database.chromem.connection.compress",

	"VECTORD_REDIS_HOST":              "vector_database.redis.connection.host",
	"VECTORD_REDIS_PORT":              "vector_database.redis.connection.port",
	"VECTORD_REDIS_USERNAME":          "vector_database.redis.connection.username",
	"VECTORD_REDIS_PASSWORD":          "vector_database.redis.connection.password",
	"VECTORD_REDIS_DATABASE":          "vector_database.redis.connection.database",
	"VECTORD_REDIS_CONNECTION_STRING": "vector_database.redis.connection.connection_string",
	"VECTORD_REDIS_TIMEOUT":           "vector_database.redis.connection.timeout",
}

// Load resolves the effective configuration.
//
// Merge order, lowest to highest precedence:
//  1. compiled defaults
//  2. YAML config file (skipped when configPath is empty or missing)
//  3. environment variables (see envKeyMap)
//
// A later source fully overwrites a key set by an earlier one. Load has no
// side effects and may be called repeatedly to pick up changed environment
// or file contents.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath != "" {
		if info, err := os.Stat(configPath); err == nil {
			if info.Size() > maxConfigFileSize {
				return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
			}
			content, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envTransform maps one environment variable through envKeyMap and coerces
// its value. Returning an empty key drops the variable.
func envTransform(key, value string) (string, any) {
	mapped, ok := envKeyMap[key]
	if !ok {
		return "", nil
	}
	return mapped, coerceEnvValue(value)
}

// coerceEnvValue applies the documented coercion rules to a raw environment
// value: literal booleans, all-digit integers, dotted numbers, comma lists,
// otherwise string. Durations ("30s") stay strings and are parsed during
// unmarshaling.
func coerceEnvValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if isAllDigits(raw) {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			out = append(out, strings.TrimSpace(p))
		}
		return out
	}
	return raw
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// defaults holds the compiled-in configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"server.port":             9464,
		"server.shutdown_timeout": "10s",

		"log.level":  "info",
		"log.format": "console",

		"vector_database.auto_init.enabled":                 true,
		"vector_database.auto_init.primary_engine":          "qdrant",
		"vector_database.auto_init.fallback_engines":        []string{"chromem"},
		"vector_database.auto_init.auto_create_collections": []string{"document_collection"},
		"vector_database.auto_init.retry_attempts":          3,
		"vector_database.auto_init.retry_delay":             "5s",
		"vector_database.auto_init.create_partitions":       true,
		"vector_database.auto_init.load_after_create":       true,
		"vector_database.auto_init.health_check_enabled":    true,
		"vector_database.auto_init.health_check_interval":   "30s",
		"vector_database.auto_init.probe_timeout":           "3s",
		"vector_database.auto_init.auto_failover":           true,
		"vector_database.auto_init.failover_threshold":      3,

		"vector_database.qdrant.connection.host":    "localhost",
		"vector_database.qdrant.connection.port":    6334,
		"vector_database.qdrant.connection.timeout": "10s",

		"vector_database.chromem.connection.path":     "~/.local/share/vectord/chromem",
		"vector_database.chromem.connection.compress": true,
	}
}
