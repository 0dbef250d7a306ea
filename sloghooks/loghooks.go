package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/cascade"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	ApplyErrorEvery  uint64
	RefetchFailEvery uint64
	// Optional target redactor for entity keys and query names.
	// Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	applyErrCtr   atomic.Uint64
	refetchErrCtr atomic.Uint64
}

var _ cascade.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) ApplyError(op, target string, err error) {
	if h.l == nil || !sample(h.opts.ApplyErrorEvery, &h.applyErrCtr) {
		return
	}
	h.l.Warn("cascade.apply_error",
		"op", op,
		"target", h.redact(target),
		"err", err)
}

func (h *Hooks) RefetchFailed(queryName, queryPattern string, err error) {
	if h.l == nil || !sample(h.opts.RefetchFailEvery, &h.refetchErrCtr) {
		return
	}
	target := queryName
	if target == "" {
		target = queryPattern
	}
	h.l.Warn("cascade.refetch_failed",
		"target", h.redact(target),
		"err", err)
}

func (h *Hooks) OptimisticApplied(mutationID string, touched int) {
	if h.l == nil {
		return
	}
	h.l.Debug("cascade.optimistic_applied",
		"mutation", mutationID,
		"touched", touched)
}

func (h *Hooks) RolledBack(mutationID string, restored, evicted int) {
	if h.l == nil {
		return
	}
	h.l.Info("cascade.rolled_back",
		"mutation", mutationID,
		"restored", restored,
		"evicted", evicted)
}

func (h *Hooks) RollbackEntryError(mutationID string, id cascade.EntityID, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("cascade.rollback_entry_error",
		"mutation", mutationID,
		"entity", h.redact(id.Key()),
		"err", err)
}
