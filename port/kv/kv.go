// Package kv is a Port over any store.Store byte backend (BigCache,
// Ristretto, or anything else satisfying the contract). Entity records are
// codec-encoded into the store under "ent:<ns>:" keys; the cached-query index
// stays in-process, since byte stores cannot enumerate their keys.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/codec"
	"github.com/unkn0wn-root/cascade/internal/qindex"
	"github.com/unkn0wn-root/cascade/store"
)

// Config for the kv port. Store, Codec and Namespace are required.
type Config struct {
	Store     store.Store
	Codec     codec.Codec[cascade.EntityData]
	Namespace string // isolates keyspaces when one store backs several caches

	TTL       time.Duration       // entity record TTL; 0 => no expiry
	Refetcher cascade.RefetchFunc // nil => Refetch degrades to Invalidate
	Logger    cascade.Logger      // nil => NopLogger
}

// Port implements cascade.Port over a byte store.
type Port struct {
	store   store.Store
	codec   codec.Codec[cascade.EntityData]
	ns      string
	ttl     time.Duration
	queries *qindex.Index
	refetch cascade.RefetchFunc
	sf      singleflight.Group
	log     cascade.Logger
}

var _ cascade.Port = (*Port)(nil)

func New(cfg Config) (*Port, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("kv: store is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("kv: codec is required")
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("kv: namespace is required")
	}
	p := &Port{
		store:   cfg.Store,
		codec:   cfg.Codec,
		ns:      cfg.Namespace,
		ttl:     cfg.TTL,
		queries: qindex.New(),
		refetch: cfg.Refetcher,
		log:     cascade.Logger(cascade.NopLogger{}),
	}
	if cfg.Logger != nil {
		p.log = cfg.Logger
	}
	return p, nil
}

func (p *Port) entityKey(typeName, id string) string {
	return "ent:" + p.ns + ":" + typeName + ":" + id
}

// Write merges over the existing record (read-modify-write) and stamps the
// identifier fields so reads round-trip complete entities.
func (p *Port) Write(ctx context.Context, typeName, id string, data cascade.EntityData) error {
	k := p.entityKey(typeName, id)

	rec, ok, err := p.readRecord(ctx, k)
	if err != nil {
		return err
	}
	if !ok {
		rec = make(cascade.EntityData, len(data)+2)
	}
	for key, v := range data {
		rec[key] = v
	}
	rec[cascade.TypeNameField] = typeName
	rec[cascade.IDField] = id

	raw, err := p.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("kv: encode %s: %w", k, err)
	}
	return p.store.Set(ctx, k, raw, p.ttl)
}

func (p *Port) Read(ctx context.Context, typeName, id string) (cascade.EntityData, bool, error) {
	rec, ok, err := p.readRecord(ctx, p.entityKey(typeName, id))
	if err != nil || !ok {
		return nil, false, err
	}
	return rec, true, nil
}

func (p *Port) readRecord(ctx context.Context, k string) (cascade.EntityData, bool, error) {
	raw, ok, err := p.store.Get(ctx, k)
	if err != nil || !ok {
		return nil, false, err
	}
	rec, err := p.codec.Decode(raw)
	if err != nil {
		// self-heal corrupt entries; the next read is a clean miss
		_ = p.store.Del(ctx, k)
		p.log.Warn("corrupt entity record dropped", cascade.Fields{"key": k, "err": err})
		return nil, false, nil
	}
	return rec, true, nil
}

func (p *Port) Evict(ctx context.Context, typeName, id string) error {
	return p.store.Del(ctx, p.entityKey(typeName, id))
}

func (p *Port) Invalidate(_ context.Context, inv cascade.Invalidation) error {
	_, err := p.queries.MarkStale(inv)
	return err
}

func (p *Port) Refetch(ctx context.Context, inv cascade.Invalidation) error {
	if p.refetch == nil {
		return p.Invalidate(ctx, inv)
	}
	hits, err := p.queries.Matches(inv)
	if err != nil {
		return err
	}
	var errs []error
	for _, rec := range hits {
		key := rec.Key()
		res, err, _ := p.sf.Do(key, func() (any, error) {
			return p.refetch(ctx, rec.Name, rec.Args)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refetch %q: %w", key, err))
			continue
		}
		p.queries.SetResult(key, res)
	}
	return errors.Join(errs...)
}

func (p *Port) Remove(_ context.Context, inv cascade.Invalidation) error {
	_, err := p.queries.Drop(inv)
	return err
}

func (p *Port) Identify(data cascade.EntityData) (cascade.EntityID, error) {
	return cascade.Identify(data)
}

// SeedQuery registers a cached query result for invalidation targeting.
func (p *Port) SeedQuery(queryName string, args map[string]any, result any) {
	p.queries.Put(queryName, args, result)
}

// QueryStale reports whether a seeded query is currently marked stale.
// Missing records report (false, false).
func (p *Port) QueryStale(queryName string, args map[string]any) (stale, ok bool) {
	rec, ok := p.queries.Lookup(queryName, args)
	return rec.Stale, ok
}

// Close releases the underlying store.
func (p *Port) Close(ctx context.Context) error {
	return p.store.Close(ctx)
}
