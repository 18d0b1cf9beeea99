package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// RedisAdapter implements Adapter on Redis 8+ FT indexes via rueidis.
//
// A collection maps to one FT index over hash keys with the collection name
// as key prefix. Partitions are prefix-based and implicit; json fields have
// no mapping.
type RedisAdapter struct {
	conn   schema.EngineConnectionConfig
	client rueidis.Client
	logger *zap.Logger
}

// NewRedisAdapter builds an unconnected Redis adapter.
func NewRedisAdapter(conn schema.EngineConnectionConfig, logger *zap.Logger) (*RedisAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return &RedisAdapter{conn: conn, logger: logger}, nil
}

// Engine returns the engine family.
func (a *RedisAdapter) Engine() schema.EngineID {
	return schema.EngineRedis
}

// Connect creates the rueidis client and verifies reachability with PING.
// The connection-string form takes precedence over host/port.
func (a *RedisAdapter) Connect(ctx context.Context) error {
	var opt rueidis.ClientOption
	if a.conn.ConnectionString != "" {
		parsed, err := rueidis.ParseURL(a.conn.ConnectionString)
		if err != nil {
			return fmt.Errorf("%w: parsing connection string: %v", ErrConnectionFailed, err)
		}
		opt = parsed
	} else {
		port := a.conn.Port
		if port == 0 {
			port = 6379
		}
		opt = rueidis.ClientOption{
			InitAddress: []string{fmt.Sprintf("%s:%d", a.conn.Host, port)},
			Username:    a.conn.Username,
			Password:    a.conn.Password,
			SelectDB:    a.conn.Database,
		}
	}
	opt.DisableCache = true

	client, err := rueidis.NewClient(opt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return fmt.Errorf("%w: ping: %v", ErrConnectionFailed, err)
	}

	a.client = client
	a.logger.Info("redis connected")
	return nil
}

// Disconnect shuts down the client.
func (a *RedisAdapter) Disconnect() error {
	if a.client != nil {
		a.client.Close()
		a.client = nil
	}
	return nil
}

// CollectionExists probes index existence via FT.INFO; "unknown index name"
// means absent.
func (a *RedisAdapter) CollectionExists(ctx context.Context, name string) (bool, error) {
	if a.client == nil {
		return false, ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	cmd := a.client.B().Arbitrary("FT.INFO").Args(name).Build()
	if err := a.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return false, nil
		}
		return false, fmt.Errorf("checking index %s: %w", name, err)
	}
	return true, nil
}

// CreateCollection creates an FT index from the definition.
func (a *RedisAdapter) CreateCollection(ctx context.Context, def *schema.CollectionDefinition) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(def.Name); err != nil {
		return err
	}

	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	cmd := a.client.B().Arbitrary("FT.CREATE").Args(args...).Build()
	if err := a.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("creating index %s: %w", def.Name, err)
	}

	a.logger.Info("redis index created", zap.String("collection", def.Name))
	return nil
}

// DropCollection removes the FT index and its documents.
func (a *RedisAdapter) DropCollection(ctx context.Context, name string) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	cmd := a.client.B().Arbitrary("FT.DROPINDEX").Args(name, "DD").Build()
	if err := a.client.Do(ctx, cmd).Error(); err != nil {
		if isRedisErr(err, "unknown index name") {
			return nil
		}
		return fmt.Errorf("dropping index %s: %w", name, err)
	}
	return nil
}

// CreatePartition is implicit: Redis partitions by key prefix.
func (a *RedisAdapter) CreatePartition(ctx context.Context, collection, partition string) error {
	a.logger.Debug("redis partitions are prefix-based, create is implicit",
		zap.String("collection", collection),
		zap.String("partition", partition))
	return nil
}

// LoadCollection is a no-op: Redis indexes are always query-ready.
func (a *RedisAdapter) LoadCollection(ctx context.Context, name string) error {
	return nil
}

// Probe checks connectivity with PING.
func (a *RedisAdapter) Probe(ctx context.Context) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if err := a.client.Do(ctx, a.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("redis probe: %w", err)
	}
	return nil
}

// buildCreateArgs translates a definition into FT.CREATE arguments.
func buildCreateArgs(def *schema.CollectionDefinition) ([]string, error) {
	args := []string{def.Name, "ON", "HASH", "PREFIX", "1", def.Name + ":", "SCHEMA"}

	for _, f := range def.Fields {
		if f.IsPrimary {
			// The primary key is the hash key itself, not an indexed field.
			continue
		}
		fieldArgs, err := buildFieldArgs(def, f)
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

// buildFieldArgs maps one generic field onto FT schema arguments.
func buildFieldArgs(def *schema.CollectionDefinition, f schema.FieldSpec) ([]string, error) {
	switch f.DataType {
	case schema.DataTypeInt64, schema.DataTypeFloat:
		return []string{f.Name, "NUMERIC"}, nil

	case schema.DataTypeBool:
		return []string{f.Name, "TAG"}, nil

	case schema.DataTypeVarchar:
		// The partition key field filters exact values, so it indexes as TAG.
		if def.Partitions.Enabled && def.Partitions.PartitionKeyField == f.Name {
			return []string{f.Name, "TAG"}, nil
		}
		return []string{f.Name, "TEXT"}, nil

	case schema.DataTypeFloatVector:
		return buildVectorFieldArgs(def.Index, f)

	default:
		return nil, fmt.Errorf("%w: field %s: %s has no redis mapping",
			schema.ErrUnsupportedFieldType, f.Name, f.DataType)
	}
}

// buildVectorFieldArgs emits a VECTOR HNSW clause. The attribute count after
// the algorithm name is the number of key-value strings that follow.
func buildVectorFieldArgs(index schema.IndexSpec, f schema.FieldSpec) ([]string, error) {
	metric, err := redisMetric(index.MetricType)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}

	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.Dimension),
		"DISTANCE_METRIC", metric,
	}
	if m, ok := uintParam(index.Params, "m"); ok {
		attrs = append(attrs, "M", strconv.FormatUint(m, 10))
	}
	if ef, ok := uintParam(index.Params, "ef_construction"); ok {
		attrs = append(attrs, "EF_CONSTRUCTION", strconv.FormatUint(ef, 10))
	}

	args := []string{f.Name, "VECTOR", "HNSW", strconv.Itoa(len(attrs))}
	return append(args, attrs...), nil
}

// redisMetric maps a generic metric type onto an FT distance metric.
func redisMetric(metric string) (string, error) {
	switch strings.ToUpper(metric) {
	case "", "COSINE":
		return "COSINE", nil
	case "L2", "EUCLID":
		return "L2", nil
	case "IP", "DOT":
		return "IP", nil
	default:
		return "", fmt.Errorf("%w: metric type %q has no redis mapping", schema.ErrUnsupportedFieldType, metric)
	}
}

// isRedisErr checks a server error message, case-insensitively.
func isRedisErr(err error, msg string) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), msg)
}
