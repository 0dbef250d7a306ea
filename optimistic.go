package cascade

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Per-mutation state machine: idle -> optimistic applied -> settled or
// rolled back. Once the network call starts, the mutation runs to completion;
// settle/rollback always executes (no cancellation mid-flight).
type mutationState int

const (
	stateIdle mutationState = iota
	stateOptimisticApplied
	stateSettled
	stateRolledBack
)

type coordinator struct {
	port    Port
	applier *applier
	network MutateFunc
	log     Logger
	hooks   Hooks
}

func newCoordinator(port Port, network MutateFunc, opts Options) (*coordinator, error) {
	if network == nil {
		return nil, fmt.Errorf("cascade: network mutate func is required")
	}
	a, err := newApplier(port, opts)
	if err != nil {
		return nil, err
	}
	return &coordinator{
		port:    port,
		applier: a,
		network: network,
		log:     a.log,
		hooks:   a.hooks,
	}, nil
}

// snapshotEntry records the pre-optimistic state of one entity. Absent reads
// are captured as present=false so rollback evicts instead of restoring
// garbage.
type snapshotEntry struct {
	id      EntityID
	data    EntityData
	present bool
}

func (c *coordinator) Mutate(ctx context.Context, operation string, variables map[string]any, cfg OptimisticConfig) (*MutationResult, error) {
	state := stateIdle
	mutID := uuid.NewString()

	var snap []snapshotEntry
	if cfg.BuildCascade != nil {
		var guess EntityData
		if cfg.BuildResponse != nil {
			guess = cfg.BuildResponse(variables)
		}
		opt := cfg.BuildCascade(variables, guess)
		if !opt.Empty() {
			var err error
			snap, err = c.capture(ctx, opt)
			if err != nil {
				// without a complete snapshot rollback cannot restore the
				// exact pre-state, so skip the optimistic phase
				c.log.Warn("optimistic apply skipped (snapshot failed)",
					Fields{"mutation": mutID, "op": operation, "err": err})
				snap = nil
			} else {
				if _, err := c.applier.Apply(ctx, opt); err != nil {
					return nil, err
				}
				state = stateOptimisticApplied
				c.hooks.OptimisticApplied(mutID, len(snap))
				c.log.Debug("optimistic cascade applied",
					Fields{"mutation": mutID, "op": operation, "touched": len(snap)})
			}
		}
	}

	res, err := c.network(ctx, operation, variables)
	if err != nil {
		rolled := state == stateOptimisticApplied
		if rolled {
			c.rollback(ctx, mutID, snap)
		}
		// rollback is complete; now the caller can react to the failure
		return nil, &MutationFailedError{
			Operation:  operation,
			MutationID: mutID,
			RolledBack: rolled,
			Err:        err,
		}
	}

	// success: the snapshot is dropped. The server is authoritative; its
	// cascade supersedes the optimistic guess, no diffing against it.
	if res != nil && res.Cascade != nil {
		if _, err := c.applier.Apply(ctx, res.Cascade); err != nil {
			return nil, err
		}
	}
	c.log.Debug("mutation settled", Fields{"mutation": mutID, "op": operation})
	return res, nil
}

// capture reads current cache state for every entity the optimistic cascade
// touches (updated and deleted sets), deduplicated in payload order.
func (c *coordinator) capture(ctx context.Context, p *Payload) ([]snapshotEntry, error) {
	seen := make(map[string]struct{}, len(p.Updated)+len(p.Deleted))
	out := make([]snapshotEntry, 0, len(p.Updated)+len(p.Deleted))

	add := func(id EntityID) error {
		if c.applier.excluded(id.TypeName) {
			return nil
		}
		if _, dup := seen[id.Key()]; dup {
			return nil
		}
		seen[id.Key()] = struct{}{}
		data, ok, err := c.port.Read(ctx, id.TypeName, id.ID)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", id.Key(), err)
		}
		out = append(out, snapshotEntry{id: id, data: data.Clone(), present: ok})
		return nil
	}

	for _, u := range p.Updated {
		if err := add(u.EntityID()); err != nil {
			return nil, err
		}
	}
	for _, d := range p.Deleted {
		if err := add(d.EntityID()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// rollback replays the snapshot: exact pre-optimistic state, not a best-guess
// inverse of the optimistic cascade. Entry failures are reported and skipped.
func (c *coordinator) rollback(ctx context.Context, mutID string, snap []snapshotEntry) {
	// must run even when the caller's ctx died with the mutation
	ctx = context.WithoutCancel(ctx)

	restored, evicted := 0, 0
	for _, e := range snap {
		var err error
		if e.present {
			// Write merges, so clear first: fields the optimistic cascade
			// added must not survive the restore
			if err = c.port.Evict(ctx, e.id.TypeName, e.id.ID); err == nil {
				err = c.port.Write(ctx, e.id.TypeName, e.id.ID, e.data)
			}
			if err == nil {
				restored++
			}
		} else {
			if err = c.port.Evict(ctx, e.id.TypeName, e.id.ID); err == nil {
				evicted++
			}
		}
		if err != nil {
			c.hooks.RollbackEntryError(mutID, e.id, err)
			c.log.Error("rollback entry failed",
				Fields{"mutation": mutID, "entity": e.id.Key(), "err": err})
		}
	}
	c.hooks.RolledBack(mutID, restored, evicted)
	c.log.Info("optimistic cascade rolled back",
		Fields{"mutation": mutID, "restored": restored, "evicted": evicted})
}
