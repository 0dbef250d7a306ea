// Package memory is the reference in-process Port: normalized entity records
// in a mutex-guarded map, cached query records in a shared index. It is the
// backend the conformance tests run against and a reasonable default for
// single-process clients.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/internal/qindex"
)

// Config tunes the memory port. All fields are optional.
type Config struct {
	// Refetcher executes REFETCH instructions. Nil => Refetch degrades to
	// Invalidate semantics.
	Refetcher cascade.RefetchFunc

	Logger cascade.Logger // nil => NopLogger

	// Field names used by Identify and merged into written records.
	// Defaults: "__typename" and "id".
	TypeNameField string
	IDField       string
}

// Cache implements cascade.Port.
type Cache struct {
	mu       sync.RWMutex
	entities map[string]cascade.EntityData

	queries *qindex.Index

	refetch   cascade.RefetchFunc
	sf        singleflight.Group
	log       cascade.Logger
	typeField string
	idField   string
}

var _ cascade.Port = (*Cache)(nil)

func New(cfg Config) *Cache {
	return &Cache{
		entities:  make(map[string]cascade.EntityData),
		queries:   qindex.New(),
		refetch:   cfg.Refetcher,
		log:       coalesceLogger(cfg.Logger),
		typeField: defaultStr(cfg.TypeNameField, cascade.TypeNameField),
		idField:   defaultStr(cfg.IDField, cascade.IDField),
	}
}

// Write upserts: fields are shallow-merged over an existing record, and the
// discriminator/id fields are merged in so a read round-trips a complete
// entity.
func (c *Cache) Write(_ context.Context, typeName, id string, data cascade.EntityData) error {
	key := cascade.EntityID{TypeName: typeName, ID: id}.Key()

	c.mu.Lock()
	rec := c.entities[key].Clone()
	if rec == nil {
		rec = make(cascade.EntityData, len(data)+2)
	}
	for k, v := range data {
		rec[k] = v
	}
	rec[c.typeField] = typeName
	rec[c.idField] = id
	c.entities[key] = rec
	c.mu.Unlock()
	return nil
}

func (c *Cache) Read(_ context.Context, typeName, id string) (cascade.EntityData, bool, error) {
	key := cascade.EntityID{TypeName: typeName, ID: id}.Key()
	c.mu.RLock()
	rec, ok := c.entities[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	// callers get a copy; the cached record is not theirs to mutate
	return rec.Clone(), true, nil
}

// Evict is idempotent: evicting an absent record is a no-op, not an error.
func (c *Cache) Evict(_ context.Context, typeName, id string) error {
	key := cascade.EntityID{TypeName: typeName, ID: id}.Key()
	c.mu.Lock()
	delete(c.entities, key)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Invalidate(_ context.Context, inv cascade.Invalidation) error {
	n, err := c.queries.MarkStale(inv)
	if err != nil {
		return err
	}
	c.log.Debug("queries invalidated", cascade.Fields{"target": inv.QueryName, "scope": inv.Scope, "count": n})
	return nil
}

func (c *Cache) Refetch(ctx context.Context, inv cascade.Invalidation) error {
	if c.refetch == nil {
		// no refetch mechanism wired up; fall back to invalidate semantics
		c.log.Debug("refetch without refetcher; invalidating instead", cascade.Fields{"target": inv.QueryName})
		return c.Invalidate(ctx, inv)
	}

	hits, err := c.queries.Matches(inv)
	if err != nil {
		return err
	}

	var errs []error
	for _, rec := range hits {
		key := rec.Key()
		// concurrent cascades refetching the same query collapse into one
		// network call
		res, err, _ := c.sf.Do(key, func() (any, error) {
			return c.refetch(ctx, rec.Name, rec.Args)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refetch %q: %w", key, err))
			continue
		}
		c.queries.SetResult(key, res)
	}
	return errors.Join(errs...)
}

func (c *Cache) Remove(_ context.Context, inv cascade.Invalidation) error {
	n, err := c.queries.Drop(inv)
	if err != nil {
		return err
	}
	c.log.Debug("queries removed", cascade.Fields{"target": inv.QueryName, "scope": inv.Scope, "count": n})
	return nil
}

func (c *Cache) Identify(data cascade.EntityData) (cascade.EntityID, error) {
	return cascade.IdentifyFields(data, c.typeField, c.idField)
}

// SeedQuery registers a cached query result so subsequent invalidations can
// target it. Embedders call this from their query-completion path.
func (c *Cache) SeedQuery(queryName string, args map[string]any, result any) {
	c.queries.Put(queryName, args, result)
}

// QueryRecord exposes one cached query record for inspection.
type QueryRecord struct {
	QueryName string
	Arguments map[string]any
	Result    any
	FetchedAt time.Time
	Stale     bool
}

// Query looks up the cached record for a query name and argument set.
func (c *Cache) Query(queryName string, args map[string]any) (QueryRecord, bool) {
	rec, ok := c.queries.Lookup(queryName, args)
	if !ok {
		return QueryRecord{}, false
	}
	return QueryRecord{
		QueryName: rec.Name,
		Arguments: rec.Args,
		Result:    rec.Result,
		FetchedAt: rec.FetchedAt,
		Stale:     rec.Stale,
	}, true
}

// EntityCount reports how many entity records are cached.
func (c *Cache) EntityCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

func coalesceLogger(l cascade.Logger) cascade.Logger {
	if l == nil {
		return cascade.NopLogger{}
	}
	return l
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
