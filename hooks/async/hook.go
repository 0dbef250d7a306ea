// Package asynchook decouples hook execution from the applier/coordinator hot
// paths: events are queued to a bounded channel and delivered by worker
// goroutines; when the queue is full, events are dropped.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{ApplyErrorEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	applier, _ := cascade.NewApplier(port, cascade.Options{Hooks: hooks})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/cascade"
)

type Hooks struct {
	inner cascade.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ cascade.Hooks = (*Hooks)(nil)

func New(inner cascade.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) ApplyError(op, target string, err error) {
	h.try(func() { h.inner.ApplyError(op, target, err) })
}

func (h *Hooks) RefetchFailed(queryName, queryPattern string, err error) {
	h.try(func() { h.inner.RefetchFailed(queryName, queryPattern, err) })
}

func (h *Hooks) OptimisticApplied(mutationID string, touched int) {
	h.try(func() { h.inner.OptimisticApplied(mutationID, touched) })
}

func (h *Hooks) RolledBack(mutationID string, restored, evicted int) {
	h.try(func() { h.inner.RolledBack(mutationID, restored, evicted) })
}

func (h *Hooks) RollbackEntryError(mutationID string, id cascade.EntityID, err error) {
	h.try(func() { h.inner.RollbackEntryError(mutationID, id, err) })
}
