package cascade

import "context"

// Applier mechanically applies cascade payloads to a Port.
type Applier interface {
	// Apply consumes one payload: entity writes/evicts first, then
	// deletions, then invalidation instructions. Per-record failures are
	// collected into the result and never abort the remaining records.
	Apply(ctx context.Context, p *Payload) (ApplyResult, error)

	// Close waits for in-flight background refetches, bounded by ctx.
	Close(ctx context.Context) error
}

// ApplyResult reports what one Apply call accomplished. A partially-erroring
// cascade still carries the counts of what succeeded plus the per-record
// errors, so callers can show partial success instead of a hard failure.
type ApplyResult struct {
	UpdatedCount     int // entity records written
	DeletedCount     int // distinct entity records evicted
	InvalidatedCount int // invalidation instructions dispatched
	Errors           []error
}

// MutateFunc performs the real network mutation. Both transport errors and
// server-reported mutation failures must surface as a non-nil error; a failed
// mutation carries no cascade.
type MutateFunc func(ctx context.Context, operation string, variables map[string]any) (*MutationResult, error)

// MutationResult is what a successful mutation round-trip produced.
type MutationResult struct {
	Data    map[string]any
	Cascade *Payload // nil when the response carried no cascade metadata
}

// OptimisticConfig supplies the caller's pure guess-building functions.
// The coordinator does not guess at business logic.
type OptimisticConfig struct {
	// BuildResponse derives the client-guessed entity from the mutation
	// variables. Optional; nil is passed through to BuildCascade.
	BuildResponse func(variables map[string]any) EntityData

	// BuildCascade derives the optimistic cascade. Nil (or a nil/empty
	// return) skips the optimistic phase entirely.
	BuildCascade func(variables map[string]any, optimistic EntityData) *Payload
}

// Coordinator wraps a mutation round-trip with optimistic apply and
// rollback-on-failure.
type Coordinator interface {
	// Mutate applies the optimistic cascade (snapshotting prior state),
	// runs the real mutation, then either applies the server's cascade or
	// rolls the snapshot back and returns a *MutationFailedError.
	Mutate(ctx context.Context, operation string, variables map[string]any, cfg OptimisticConfig) (*MutationResult, error)
}

// Options tune the applier and coordinator. The Port is always passed
// explicitly; nothing is read from ambient state, so multiple independent
// cache instances can coexist in-process.
type Options struct {
	Logger Logger // nil => NopLogger
	Hooks  Hooks  // nil => NopHooks

	// ExcludeTypeNames lists entity types Apply never writes or evicts,
	// even when present in a payload.
	ExcludeTypeNames []string

	// DefaultStrategy is used for instructions with an empty strategy.
	// "" => StrategyInvalidate.
	DefaultStrategy Strategy

	// OnApplyError receives each per-record failure (the failing
	// UpdatedEntity, DeletedEntity or Invalidation plus a
	// *CacheOperationError). Optional.
	OnApplyError func(record any, err error)

	// OnRefetchError receives failures from background refetches, which
	// never fail the cascade that triggered them. Optional.
	OnRefetchError func(inv Invalidation, err error)
}

// NewApplier builds an Applier over port.
func NewApplier(port Port, opts Options) (Applier, error) {
	return newApplier(port, opts)
}

// NewCoordinator builds a Coordinator over port using network for the real
// mutation round-trip.
func NewCoordinator(port Port, network MutateFunc, opts Options) (Coordinator, error) {
	return newCoordinator(port, network, opts)
}
