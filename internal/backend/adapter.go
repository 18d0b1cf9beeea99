// Package backend defines the capability contract each storage engine
// integration implements, plus the static registry that maps engine families
// to concrete adapters.
package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// Sentinel errors for adapter operations.
var (
	// ErrNotConnected is returned when an operation runs before Connect.
	ErrNotConnected = errors.New("backend not connected")

	// ErrConnectionFailed indicates the engine could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to backend")

	// ErrUnknownEngine is returned for engine families outside the closed set.
	ErrUnknownEngine = errors.New("unknown engine family")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q",
			ErrInvalidCollectionName, name)
	}
	return nil
}

// Adapter is the capability contract one storage engine integration
// implements. The standard initializer and the bootstrap orchestrator consume
// this interface; they never talk to an engine client directly.
//
// Every call takes a context; callers bound it with the configured
// connection or probe timeout. A timed-out call is treated identically to a
// failed call for retry and failover accounting.
//
// Implementations:
//   - QdrantAdapter: external Qdrant server via official gRPC client
//   - ChromemAdapter: embedded chromem-go database
//   - RedisAdapter: Redis 8+ FT index via rueidis
type Adapter interface {
	// Engine returns the engine family this adapter serves.
	Engine() schema.EngineID

	// Connect establishes the engine connection and verifies reachability.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Safe to call when not connected.
	Disconnect() error

	// CollectionExists checks whether a collection exists.
	// Returns an error only if the check itself fails.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection translates the generic definition into the engine's
	// native create call. A field whose data type has no mapping for this
	// engine family fails with schema.ErrUnsupportedFieldType.
	CreateCollection(ctx context.Context, def *schema.CollectionDefinition) error

	// DropCollection deletes a collection and all its data.
	DropCollection(ctx context.Context, name string) error

	// CreatePartition creates one named partition. Engines whose partitions
	// are implicit (payload- or prefix-based) treat this as a no-op.
	CreatePartition(ctx context.Context, collection, partition string) error

	// LoadCollection brings a collection into a query-ready state. Engines
	// that are always query-ready treat this as a no-op.
	LoadCollection(ctx context.Context, name string) error

	// Probe performs a lightweight liveness check against the engine.
	Probe(ctx context.Context) error
}
