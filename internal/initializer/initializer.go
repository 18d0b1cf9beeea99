// Package initializer performs idempotent creation of a single collection
// against one backend adapter: existence check, optional drop, create,
// partitions, optional load.
package initializer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vectord/internal/backend"
	"github.com/fyrsmithlabs/vectord/internal/schema"
)

// ErrInitializationFailed wraps any failure from the create sequence.
var ErrInitializationFailed = errors.New("collection initialization failed")

// Step identifies where in the sequence a failure happened.
type Step string

const (
	StepExistsCheck Step = "exists-check"
	StepDrop        Step = "drop"
	StepCreate      Step = "create"
	StepPartitions  Step = "partitions"
	StepLoad        Step = "load"
)

// InitError records the offending step alongside the cause.
type InitError struct {
	Step       Step
	Collection string
	Err        error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing collection %s: step %s: %v", e.Collection, e.Step, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// Is makes InitError match ErrInitializationFailed.
func (e *InitError) Is(target error) bool {
	return target == ErrInitializationFailed
}

// Options control the optional steps of the sequence.
type Options struct {
	// DropExisting drops and recreates a collection that already exists.
	// Without it, an existing collection satisfies the call as a no-op.
	DropExisting bool

	// CreatePartitions creates the definition's default partitions.
	CreatePartitions bool

	// LoadAfterCreate brings the collection into a query-ready state.
	LoadAfterCreate bool
}

// Initialize creates one collection on one adapter, idempotently.
//
// When the collection exists and DropExisting is unset, no create calls are
// issued and the call returns true immediately. Any failure after the
// existence check surfaces as an InitError tagged with the offending step;
// an unsupported field type is fatal and must not be retried by the caller.
//
// No local state is retained; the only side effects are on the remote engine.
func Initialize(ctx context.Context, adapter backend.Adapter, def *schema.CollectionDefinition, opts Options, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := def.Validate(); err != nil {
		return false, &InitError{Step: StepCreate, Collection: def.Name, Err: err}
	}

	log := logger.With(
		zap.String("collection", def.Name),
		zap.String("engine", string(adapter.Engine())))

	exists, err := adapter.CollectionExists(ctx, def.Name)
	if err != nil {
		return false, &InitError{Step: StepExistsCheck, Collection: def.Name, Err: err}
	}

	if exists && !opts.DropExisting {
		log.Debug("collection already exists, skipping")
		return true, nil
	}

	if exists && opts.DropExisting {
		if err := adapter.DropCollection(ctx, def.Name); err != nil {
			return false, &InitError{Step: StepDrop, Collection: def.Name, Err: err}
		}
		log.Info("existing collection dropped")
	}

	if err := adapter.CreateCollection(ctx, def); err != nil {
		return false, &InitError{Step: StepCreate, Collection: def.Name, Err: err}
	}

	if opts.CreatePartitions && def.Partitions.Enabled {
		for _, partition := range def.Partitions.DefaultPartitions {
			if err := adapter.CreatePartition(ctx, def.Name, partition); err != nil {
				return false, &InitError{Step: StepPartitions, Collection: def.Name, Err: err}
			}
		}
	}

	if opts.LoadAfterCreate {
		if err := adapter.LoadCollection(ctx, def.Name); err != nil {
			return false, &InitError{Step: StepLoad, Collection: def.Name, Err: err}
		}
	}

	log.Info("collection initialized",
		zap.Int("fields", len(def.Fields)),
		zap.Bool("partitions", opts.CreatePartitions && def.Partitions.Enabled),
		zap.Bool("loaded", opts.LoadAfterCreate))
	return true, nil
}
