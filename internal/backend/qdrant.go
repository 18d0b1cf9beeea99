package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// QdrantAdapter implements Adapter against an external Qdrant server using
// the official gRPC client. Qdrant payloads are schemaless, so every generic
// scalar type maps; vector fields map to (named) vector params.
//
// Qdrant has no explicit partitions: the partition key field lives in the
// payload, so CreatePartition is implicit. Collections are always
// query-ready, so LoadCollection is a no-op as well.
type QdrantAdapter struct {
	conn   schema.EngineConnectionConfig
	client *qdrant.Client
	logger *zap.Logger
}

// NewQdrantAdapter builds an unconnected Qdrant adapter.
func NewQdrantAdapter(conn schema.EngineConnectionConfig, logger *zap.Logger) (*QdrantAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	return &QdrantAdapter{conn: conn, logger: logger}, nil
}

// Engine returns the engine family.
func (a *QdrantAdapter) Engine() schema.EngineID {
	return schema.EngineQdrant
}

// Connect creates the gRPC client and verifies reachability with a health
// check bounded by the caller's context.
func (a *QdrantAdapter) Connect(ctx context.Context) error {
	port := a.conn.Port
	if port == 0 {
		port = 6334 // gRPC port, not the 6333 HTTP port
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   a.conn.Host,
		Port:   port,
		APIKey: a.conn.APIKey,
		UseTLS: a.conn.UseTLS,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	a.client = client
	a.logger.Info("qdrant connected",
		zap.String("host", a.conn.Host),
		zap.Int("port", port),
		zap.Bool("use_tls", a.conn.UseTLS))
	return nil
}

// Disconnect closes the gRPC connection.
func (a *QdrantAdapter) Disconnect() error {
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

// CollectionExists checks collection existence via GetCollectionInfo;
// a NotFound status means absent.
func (a *QdrantAdapter) CollectionExists(ctx context.Context, name string) (bool, error) {
	if a.client == nil {
		return false, ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}

	info, err := a.client.GetCollectionInfo(ctx, name)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
			return false, nil
		}
		return false, fmt.Errorf("checking collection %s: %w", name, err)
	}
	return info != nil, nil
}

// CreateCollection translates the definition into a Qdrant create call.
// The index spec maps onto the collection's HNSW config; multiple vector
// fields become named vectors.
func (a *QdrantAdapter) CreateCollection(ctx context.Context, def *schema.CollectionDefinition) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(def.Name); err != nil {
		return err
	}

	distance, err := qdrantDistance(def.Index.MetricType)
	if err != nil {
		return err
	}

	hnsw := qdrantHnswConfig(def.Index)

	vectorIdx := def.VectorFields()
	create := &qdrant.CreateCollection{
		CollectionName: def.Name,
		HnswConfig:     hnsw,
	}
	if len(vectorIdx) == 1 {
		f := def.Fields[vectorIdx[0]]
		create.VectorsConfig = qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(f.Dimension),
			Distance: distance,
		})
	} else {
		params := make(map[string]*qdrant.VectorParams, len(vectorIdx))
		for _, i := range vectorIdx {
			f := def.Fields[i]
			params[f.Name] = &qdrant.VectorParams{
				Size:     uint64(f.Dimension),
				Distance: distance,
			}
		}
		create.VectorsConfig = qdrant.NewVectorsConfigMap(params)
	}

	if err := a.client.CreateCollection(ctx, create); err != nil {
		return fmt.Errorf("creating collection %s: %w", def.Name, err)
	}

	a.logger.Info("qdrant collection created",
		zap.String("collection", def.Name),
		zap.Int("vector_fields", len(vectorIdx)),
		zap.String("metric", def.Index.MetricType))
	return nil
}

// DropCollection deletes a collection and all its points.
func (a *QdrantAdapter) DropCollection(ctx context.Context, name string) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := a.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	return nil
}

// CreatePartition is implicit: Qdrant partitions by payload field.
func (a *QdrantAdapter) CreatePartition(ctx context.Context, collection, partition string) error {
	a.logger.Debug("qdrant partitions are payload-based, create is implicit",
		zap.String("collection", collection),
		zap.String("partition", partition))
	return nil
}

// LoadCollection is a no-op: Qdrant collections are always query-ready.
func (a *QdrantAdapter) LoadCollection(ctx context.Context, name string) error {
	return nil
}

// Probe performs a lightweight liveness check.
func (a *QdrantAdapter) Probe(ctx context.Context) error {
	if a.client == nil {
		return ErrNotConnected
	}
	if _, err := a.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant probe: %w", err)
	}
	return nil
}

// qdrantDistance maps a generic metric type onto a Qdrant distance.
func qdrantDistance(metric string) (qdrant.Distance, error) {
	switch strings.ToUpper(metric) {
	case "", "COSINE":
		return qdrant.Distance_Cosine, nil
	case "L2", "EUCLID":
		return qdrant.Distance_Euclid, nil
	case "IP", "DOT":
		return qdrant.Distance_Dot, nil
	case "MANHATTAN":
		return qdrant.Distance_Manhattan, nil
	default:
		return 0, fmt.Errorf("%w: metric type %q has no qdrant mapping", schema.ErrUnsupportedFieldType, metric)
	}
}

// qdrantHnswConfig lifts HNSW parameters out of a generic index spec.
// Non-HNSW index types fall back to Qdrant's own defaults.
func qdrantHnswConfig(index schema.IndexSpec) *qdrant.HnswConfigDiff {
	if !strings.EqualFold(index.IndexType, "HNSW") {
		return nil
	}
	cfg := &qdrant.HnswConfigDiff{}
	if m, ok := uintParam(index.Params, "m"); ok {
		cfg.M = qdrant.PtrOf(m)
	}
	if ef, ok := uintParam(index.Params, "ef_construction"); ok {
		cfg.EfConstruct = qdrant.PtrOf(ef)
	}
	return cfg
}

// uintParam reads a numeric index parameter that YAML may have decoded as
// int, int64 or float64.
func uintParam(params map[string]any, key string) (uint64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		if n > 0 {
			return uint64(n), true
		}
	case int64:
		if n > 0 {
			return uint64(n), true
		}
	case float64:
		if n > 0 {
			return uint64(n), true
		}
	}
	return 0, false
}
