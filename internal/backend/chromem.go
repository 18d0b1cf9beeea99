package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// ChromemAdapter implements Adapter on an embedded chromem-go database.
//
// Mapping constraints of this family:
//   - the primary-key field must be varchar (chromem document IDs are strings)
//   - exactly one vector field (one embedding per document)
//   - json fields have no mapping
//
// Scalar fields are carried as document metadata and need no schema-side
// creation. Partitions and load are implicit: chromem keeps everything
// in memory.
type ChromemAdapter struct {
	conn   schema.EngineConnectionConfig
	db     *chromem.DB
	path   string
	logger *zap.Logger
}

// NewChromemAdapter builds an unconnected chromem adapter.
func NewChromemAdapter(conn schema.EngineConnectionConfig, logger *zap.Logger) (*ChromemAdapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if conn.Path == "" {
		return nil, fmt.Errorf("%w: chromem requires a data path", schema.ErrInvalidDefinition)
	}
	return &ChromemAdapter{conn: conn, logger: logger}, nil
}

// Engine returns the engine family.
func (a *ChromemAdapter) Engine() schema.EngineID {
	return schema.EngineChromem
}

// Connect opens (or creates) the persistent database directory.
func (a *ChromemAdapter) Connect(ctx context.Context) error {
	path, err := expandPath(a.conn.Path)
	if err != nil {
		return fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory %s: %v", ErrConnectionFailed, path, err)
	}

	db, err := chromem.NewPersistentDB(path, a.conn.Compress)
	if err != nil {
		return fmt.Errorf("%w: opening chromem db: %v", ErrConnectionFailed, err)
	}

	a.db = db
	a.path = path
	a.logger.Info("chromem opened",
		zap.String("path", path),
		zap.Bool("compress", a.conn.Compress))
	return nil
}

// Disconnect releases the database handle. chromem persists on write, so
// there is nothing to flush.
func (a *ChromemAdapter) Disconnect() error {
	a.db = nil
	return nil
}

// CollectionExists checks the in-memory collection table.
func (a *ChromemAdapter) CollectionExists(ctx context.Context, name string) (bool, error) {
	if a.db == nil {
		return false, ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return false, err
	}
	_, ok := a.db.ListCollections()[name]
	return ok, nil
}

// CreateCollection creates a chromem collection after checking that every
// field has a mapping for this family.
func (a *ChromemAdapter) CreateCollection(ctx context.Context, def *schema.CollectionDefinition) error {
	if a.db == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(def.Name); err != nil {
		return err
	}

	dim, err := chromemCheckFields(def)
	if err != nil {
		return err
	}

	metadata := map[string]string{
		"description": def.Description,
		"dimension":   fmt.Sprintf("%d", dim),
	}
	if _, err := a.db.CreateCollection(def.Name, metadata, placeholderEmbedding(dim)); err != nil {
		return fmt.Errorf("creating collection %s: %w", def.Name, err)
	}

	a.logger.Info("chromem collection created",
		zap.String("collection", def.Name),
		zap.Int("dimension", dim))
	return nil
}

// DropCollection deletes a collection and its on-disk data.
func (a *ChromemAdapter) DropCollection(ctx context.Context, name string) error {
	if a.db == nil {
		return ErrNotConnected
	}
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := a.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	return nil
}

// CreatePartition is implicit: chromem filters by document metadata.
func (a *ChromemAdapter) CreatePartition(ctx context.Context, collection, partition string) error {
	a.logger.Debug("chromem partitions are metadata-based, create is implicit",
		zap.String("collection", collection),
		zap.String("partition", partition))
	return nil
}

// LoadCollection is a no-op: chromem keeps collections in memory.
func (a *ChromemAdapter) LoadCollection(ctx context.Context, name string) error {
	return nil
}

// Probe verifies the data directory is still accessible.
func (a *ChromemAdapter) Probe(ctx context.Context) error {
	if a.db == nil {
		return ErrNotConnected
	}
	if _, err := os.Stat(a.path); err != nil {
		return fmt.Errorf("chromem probe: %w", err)
	}
	return nil
}

// chromemCheckFields enforces this family's mapping constraints and returns
// the embedding dimension.
func chromemCheckFields(def *schema.CollectionDefinition) (int, error) {
	vectors := def.VectorFields()
	if len(vectors) != 1 {
		return 0, fmt.Errorf("%w: chromem supports exactly one vector field, collection %s declares %d",
			schema.ErrUnsupportedFieldType, def.Name, len(vectors))
	}
	for _, f := range def.Fields {
		if f.DataType == schema.DataTypeJSON {
			return 0, fmt.Errorf("%w: field %s: json has no chromem mapping",
				schema.ErrUnsupportedFieldType, f.Name)
		}
		if f.IsPrimary && f.DataType != schema.DataTypeVarchar {
			return 0, fmt.Errorf("%w: field %s: chromem document IDs are strings, primary must be varchar",
				schema.ErrUnsupportedFieldType, f.Name)
		}
	}
	return def.Fields[vectors[0]].Dimension, nil
}

// placeholderEmbedding returns a fixed unit vector of the declared dimension.
// vectord only provisions collections; the consuming application opens them
// with its real embedder.
func placeholderEmbedding(dim int) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		v := make([]float32, dim)
		v[0] = 1
		return v, nil
	}
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
