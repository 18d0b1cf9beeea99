package backend

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// Factory builds an unconnected adapter from a connection config.
type Factory func(conn schema.EngineConnectionConfig, logger *zap.Logger) (Adapter, error)

// Registry maps each engine family to its adapter factory. The set is closed
// and resolved once at startup; there is no dynamic module lookup.
//
// Not safe for concurrent mutation; register everything before use.
type Registry struct {
	factories map[schema.EngineID]Factory
	logger    *zap.Logger
}

// NewRegistry returns a registry pre-populated with the builtin adapters.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		factories: make(map[schema.EngineID]Factory),
		logger:    logger,
	}
	r.Register(schema.EngineQdrant, func(conn schema.EngineConnectionConfig, logger *zap.Logger) (Adapter, error) {
		return NewQdrantAdapter(conn, logger)
	})
	r.Register(schema.EngineChromem, func(conn schema.EngineConnectionConfig, logger *zap.Logger) (Adapter, error) {
		return NewChromemAdapter(conn, logger)
	})
	r.Register(schema.EngineRedis, func(conn schema.EngineConnectionConfig, logger *zap.Logger) (Adapter, error) {
		return NewRedisAdapter(conn, logger)
	})
	return r
}

// NewEmptyRegistry returns a registry with no factories. Used by tests to
// register mock adapters.
func NewEmptyRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		factories: make(map[schema.EngineID]Factory),
		logger:    logger,
	}
}

// Register installs or replaces the factory for an engine family.
func (r *Registry) Register(id schema.EngineID, f Factory) {
	r.factories[id] = f
}

// New builds an unconnected adapter for the engine family.
func (r *Registry) New(id schema.EngineID, conn schema.EngineConnectionConfig) (Adapter, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, id)
	}
	adapter, err := f(conn, r.logger.With(zap.String("engine", string(id))))
	if err != nil {
		return nil, fmt.Errorf("building %s adapter: %w", id, err)
	}
	return adapter, nil
}

// Supports reports whether a factory is registered for the engine family.
func (r *Registry) Supports(id schema.EngineID) bool {
	_, ok := r.factories[id]
	return ok
}
