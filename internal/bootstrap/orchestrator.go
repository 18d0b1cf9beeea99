// Package bootstrap owns the top-level control loop: it selects a storage
// engine in priority order, drives the standard initializer for every
// configured collection template, and runs the long-lived health-check and
// failover task.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/backend"
	"github.com/fyrsmithlabs/vectord/internal/config"
	"github.com/fyrsmithlabs/vectord/internal/initializer"
	"github.com/fyrsmithlabs/vectord/internal/schema"
	"github.com/fyrsmithlabs/vectord/internal/template"
)

// State is the orchestrator's lifecycle state.
type State string

const (
	StateIdle            State = "idle"
	StateSelectingEngine State = "selecting_engine"
	StateInitializing    State = "initializing"
	StateReady           State = "ready"
	StateDegraded        State = "degraded"
)

// ErrAlreadyRunning is returned when Initialize is called while a previous
// initialization (or its health loop) is still active.
var ErrAlreadyRunning = errors.New("orchestrator already running; call Shutdown or Reinitialize")

// InitializedCollection records one collection created on one engine.
type InitializedCollection struct {
	Engine     schema.EngineID
	Collection string
}

// Orchestrator is the bootstrap state machine. Construct it once per process
// with New; it is owned by the application's startup routine and exposed as
// an explicit handle, never a global.
//
// Initialization runs synchronously in Initialize. Afterwards the health
// loop is the sole writer of the runtime state (current engine, failure
// counters); one mutex is sufficient.
type Orchestrator struct {
	cfg       *config.Config
	backends  *backend.Registry
	templates *template.Registry
	logger    *zap.Logger

	mu          sync.Mutex
	state       State
	current     schema.EngineID
	adapter     backend.Adapter
	failures    map[schema.EngineID]int
	initialized []InitializedCollection

	healthCancel context.CancelFunc
	healthDone   chan struct{}
}

// New constructs an idle orchestrator.
func New(cfg *config.Config, backends *backend.Registry, templates *template.Registry, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		backends:  backends,
		templates: templates,
		logger:    logger.Named("bootstrap"),
		state:     StateIdle,
		failures:  make(map[schema.EngineID]int),
	}
}

// Initialize runs the engine-selection loop and blocks until an engine is
// Ready or every candidate is exhausted (Degraded).
//
// Returns true when an engine was initialized. A false return is non-fatal
// to the hosting process: vector operations are unavailable until a later
// successful re-initialization, nothing more.
func (o *Orchestrator) Initialize(ctx context.Context) (bool, error) {
	o.mu.Lock()
	if o.healthCancel != nil || o.adapter != nil || o.state == StateSelectingEngine || o.state == StateInitializing {
		o.mu.Unlock()
		return false, ErrAlreadyRunning
	}
	o.state = StateSelectingEngine
	o.mu.Unlock()
	stateGauge(StateSelectingEngine)

	ai := o.cfg.VectorDatabase.AutoInit
	if !ai.Enabled {
		o.logger.Info("auto-init disabled, nothing to do")
		o.setState(StateIdle)
		return true, nil
	}

	id, adapter, done, err := o.selectEngine(ctx)
	if err != nil {
		o.setState(StateDegraded)
		return false, err
	}
	if adapter == nil {
		o.logger.Error("all engine candidates exhausted, entering degraded state",
			zap.Int("candidates", len(ai.Candidates())))
		o.setState(StateDegraded)
		return false, nil
	}

	o.mu.Lock()
	o.current = id
	o.adapter = adapter
	o.failures[id] = 0
	o.initialized = done
	o.state = StateReady
	o.mu.Unlock()
	stateGauge(StateReady)
	EngineUp.WithLabelValues(string(id)).Set(1)

	o.logger.Info("bootstrap complete",
		zap.String("engine", string(id)),
		zap.Int("collections", len(done)))

	if ai.HealthCheckEnabled {
		o.startHealthLoop()
	}
	return true, nil
}

// selectEngine attempts each candidate in configured order and returns the
// first that fully succeeds. A nil adapter with nil error means exhaustion.
func (o *Orchestrator) selectEngine(ctx context.Context) (schema.EngineID, backend.Adapter, []InitializedCollection, error) {
	ai := o.cfg.VectorDatabase.AutoInit

	for _, id := range ai.Candidates() {
		if !o.backends.Supports(id) {
			o.logger.Warn("engine not supported by this build, skipping",
				zap.String("engine", string(id)))
			continue
		}
		o.setState(StateInitializing)
		adapter, done, err := o.attemptEngine(ctx, id)
		if err == nil {
			return id, adapter, done, nil
		}
		if ctx.Err() != nil {
			return "", nil, nil, ctx.Err()
		}
		o.setState(StateSelectingEngine)
		o.logger.Warn("engine exhausted, trying next candidate",
			zap.String("engine", string(id)),
			zap.Error(err))
	}
	return "", nil, nil, nil
}

// attemptEngine retries one engine up to RetryAttempts times with a fixed
// delay between attempts. A fatal (static) error stops the retries early.
func (o *Orchestrator) attemptEngine(ctx context.Context, id schema.EngineID) (backend.Adapter, []InitializedCollection, error) {
	ai := o.cfg.VectorDatabase.AutoInit

	var lastErr error
	for attempt := 1; attempt <= ai.RetryAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, ai.RetryDelay); err != nil {
				return nil, nil, err
			}
		}

		adapter, done, err := o.initEngineOnce(ctx, id)
		if err == nil {
			InitAttemptsTotal.WithLabelValues(string(id), "success").Inc()
			return adapter, done, nil
		}
		lastErr = err
		InitAttemptsTotal.WithLabelValues(string(id), "error").Inc()
		o.logger.Warn("engine initialization attempt failed",
			zap.String("engine", string(id)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", ai.RetryAttempts),
			zap.Error(err))

		if backend.IsFatal(err) {
			// Static mismatch, retrying cannot fix it.
			break
		}
	}
	return nil, nil, lastErr
}

// initEngineOnce performs a single full initialization pass for one engine:
// connect, then initialize every configured collection. All-or-nothing: any
// collection failure fails the whole pass and disconnects the adapter.
// Idempotent creation makes re-attempting already-created collections a
// cheap no-op on the next pass.
func (o *Orchestrator) initEngineOnce(ctx context.Context, id schema.EngineID) (backend.Adapter, []InitializedCollection, error) {
	ai := o.cfg.VectorDatabase.AutoInit

	conn, err := o.resolveConnection(id)
	if err != nil {
		return nil, nil, err
	}

	adapter, err := o.backends.New(id, conn)
	if err != nil {
		return nil, nil, err
	}

	if err := o.timedCall(ctx, conn.Timeout, adapter.Connect); err != nil {
		return nil, nil, err
	}

	opts := initializer.Options{
		DropExisting:     ai.DropExisting,
		CreatePartitions: ai.CreatePartitions,
		LoadAfterCreate:  ai.LoadAfterCreate,
	}

	done := make([]InitializedCollection, 0, len(ai.AutoCreateCollections))
	for _, name := range ai.AutoCreateCollections {
		def, err := o.templates.Resolve(name, template.Overrides{
			Dimension: o.cfg.VectorDatabase.Dimension,
		})
		if err != nil {
			_ = adapter.Disconnect()
			return nil, nil, err
		}
		err = o.timedCall(ctx, conn.Timeout, func(tctx context.Context) error {
			_, ierr := initializer.Initialize(tctx, adapter, def, opts, o.logger)
			return ierr
		})
		if err != nil {
			_ = adapter.Disconnect()
			return nil, nil, err
		}
		done = append(done, InitializedCollection{Engine: id, Collection: def.Name})
	}
	return adapter, done, nil
}

// resolveConnection returns an engine's connection parameters. Explicit
// configuration wins; an engine left unconfigured falls back to the catalog's
// <engine>_local base connection, so embedders can bootstrap without a config
// file.
func (o *Orchestrator) resolveConnection(id schema.EngineID) (schema.EngineConnectionConfig, error) {
	if conn, ok := o.cfg.EngineConnection(id); ok {
		return conn, nil
	}
	conn, err := o.templates.Connection(string(id)+"_local", template.Overrides{})
	if err != nil {
		return schema.EngineConnectionConfig{}, fmt.Errorf("%w: engine %s has no connection config", config.ErrInvalidPolicy, id)
	}
	o.logger.Debug("using catalog base connection", zap.String("engine", string(id)))
	return conn, nil
}

// CurrentEngine returns the active engine, if any.
func (o *Orchestrator) CurrentEngine() (schema.EngineID, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current, o.current != ""
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// InitializedCollections returns a copy of the (engine, collection) pairs
// created by the most recent successful pass.
func (o *Orchestrator) InitializedCollections() []InitializedCollection {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]InitializedCollection(nil), o.initialized...)
}

// Reinitialize stops the health loop, re-runs engine selection and restarts
// the loop on success. It must not run concurrently with Initialize.
func (o *Orchestrator) Reinitialize(ctx context.Context) (bool, error) {
	o.stop(ctx)
	return o.Initialize(ctx)
}

// Shutdown cancels the health-check loop, waits for it within the context's
// grace period, then releases the adapter connection. The loop is always
// stopped before the connection is released.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.stop(ctx)
	o.setState(StateIdle)
	return nil
}

// stop halts the health loop and disconnects the active adapter.
func (o *Orchestrator) stop(ctx context.Context) {
	o.mu.Lock()
	cancel, done := o.healthCancel, o.healthDone
	o.healthCancel, o.healthDone = nil, nil
	adapter := o.adapter
	current := o.current
	o.adapter = nil
	o.current = ""
	o.initialized = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			o.logger.Warn("health-check loop did not stop before deadline")
		}
	}

	if adapter != nil {
		if err := adapter.Disconnect(); err != nil {
			o.logger.Warn("adapter disconnect failed", zap.Error(err))
		}
		EngineUp.WithLabelValues(string(current)).Set(0)
	}
}

// setState updates the state under lock and mirrors it to metrics.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	stateGauge(s)
}

// timedCall runs fn under the connection timeout. A timed-out call counts as
// a failed call; the engine must not be able to stall the caller (the health
// loop's failover pass runs on the loop goroutine) past the deadline.
func (o *Orchestrator) timedCall(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	return fn(ctx)
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
