package cascade

import (
	"context"
	"fmt"
	"sync"
)

type applier struct {
	port            Port
	log             Logger
	hooks           Hooks
	exclude         map[string]struct{}
	defaultStrategy Strategy
	onApplyError    func(record any, err error)
	onRefetchError  func(inv Invalidation, err error)

	refetchWG sync.WaitGroup
}

func newApplier(port Port, opts Options) (*applier, error) {
	if port == nil {
		return nil, fmt.Errorf("cascade: port is required")
	}

	a := &applier{
		port:            port,
		log:             coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:           coalesce[Hooks](opts.Hooks, NopHooks{}),
		defaultStrategy: coalesce[Strategy](opts.DefaultStrategy, StrategyInvalidate),
		onApplyError:    opts.OnApplyError,
		onRefetchError:  opts.OnRefetchError,
	}
	if !a.defaultStrategy.Valid() {
		return nil, fmt.Errorf("cascade: invalid default strategy %q", opts.DefaultStrategy)
	}
	if len(opts.ExcludeTypeNames) > 0 {
		a.exclude = make(map[string]struct{}, len(opts.ExcludeTypeNames))
		for _, tn := range opts.ExcludeTypeNames {
			a.exclude[tn] = struct{}{}
		}
	}
	return a, nil
}

// Apply order matters for correctness: entity updates land before
// invalidations so a refetch that synchronously reads the cache sees the
// already-updated entities.
func (a *applier) Apply(ctx context.Context, p *Payload) (ApplyResult, error) {
	var res ApplyResult
	if p.Empty() {
		return res, nil
	}

	// distinct evictions across the updated and deleted sets
	evicted := make(map[string]struct{})

	for _, u := range p.Updated {
		if a.excluded(u.TypeName) {
			continue
		}
		if u.Operation == OpDeleted {
			if a.evictOne(ctx, u.EntityID(), u, &res) {
				evicted[u.EntityID().Key()] = struct{}{}
			}
			continue
		}
		if err := a.port.Write(ctx, u.TypeName, u.ID, u.Entity); err != nil {
			a.recordError(&res, "write", u.EntityID().Key(), u, err)
			continue
		}
		res.UpdatedCount++
	}

	// idempotent with evictions already performed above
	for _, d := range p.Deleted {
		if a.excluded(d.TypeName) {
			continue
		}
		if a.evictOne(ctx, d.EntityID(), d, &res) {
			evicted[d.EntityID().Key()] = struct{}{}
		}
	}
	res.DeletedCount = len(evicted)

	for _, inv := range p.Invalidations {
		if inv.Strategy == "" {
			inv.Strategy = a.defaultStrategy
		}
		switch inv.Strategy {
		case StrategyInvalidate:
			if err := a.port.Invalidate(ctx, inv); err != nil {
				a.recordError(&res, "invalidate", invTarget(inv), inv, err)
				continue
			}
		case StrategyRefetch:
			// fire-and-forget; a failed background refetch must not fail
			// the cascade application
			a.dispatchRefetch(ctx, inv)
		case StrategyRemove:
			if err := a.port.Remove(ctx, inv); err != nil {
				a.recordError(&res, "remove", invTarget(inv), inv, err)
				continue
			}
		default:
			a.recordError(&res, "invalidate", invTarget(inv), inv,
				fmt.Errorf("unknown strategy %q", inv.Strategy))
			continue
		}
		res.InvalidatedCount++
	}

	a.log.Debug("cascade applied", Fields{
		"txn":         p.Metadata.TransactionID,
		"depth":       p.Metadata.Depth,
		"affected":    p.Metadata.AffectedCount,
		"updated":     res.UpdatedCount,
		"deleted":     res.DeletedCount,
		"invalidated": res.InvalidatedCount,
		"errors":      len(res.Errors),
	})
	return res, nil
}

func (a *applier) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.refetchWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *applier) excluded(typeName string) bool {
	_, ok := a.exclude[typeName]
	return ok
}

func (a *applier) evictOne(ctx context.Context, id EntityID, record any, res *ApplyResult) bool {
	if err := a.port.Evict(ctx, id.TypeName, id.ID); err != nil {
		a.recordError(res, "evict", id.Key(), record, err)
		return false
	}
	return true
}

func (a *applier) recordError(res *ApplyResult, op, target string, record any, err error) {
	werr := &CacheOperationError{Op: op, Target: target, Err: err}
	res.Errors = append(res.Errors, werr)
	a.hooks.ApplyError(op, target, err)
	a.log.Warn("cascade record failed", Fields{"op": op, "target": target, "err": err})
	if a.onApplyError != nil {
		a.onApplyError(record, werr)
	}
}

func (a *applier) dispatchRefetch(ctx context.Context, inv Invalidation) {
	a.refetchWG.Add(1)
	// the triggering Apply may return (and its caller's ctx may be
	// cancelled) while the refetch is still running
	bg := context.WithoutCancel(ctx)
	go func() {
		defer a.refetchWG.Done()
		if err := a.port.Refetch(bg, inv); err != nil {
			a.hooks.RefetchFailed(inv.QueryName, inv.QueryPattern, err)
			a.log.Warn("refetch failed", Fields{"target": invTarget(inv), "err": err})
			if a.onRefetchError != nil {
				a.onRefetchError(inv, err)
			}
		}
	}()
}

func invTarget(inv Invalidation) string {
	if inv.QueryPattern != "" {
		return inv.QueryPattern
	}
	if inv.QueryName != "" {
		return inv.QueryName
	}
	return string(inv.Scope)
}
