// Package qindex is the in-process cached-query index shared by the memory
// and kv ports: query records keyed by name plus canonical argument
// signature, with staleness flags and instruction resolution via match.
package qindex

import (
	"sync"
	"time"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/internal/util"
	"github.com/unkn0wn-root/cascade/match"
)

// Record is one cached query result.
type Record struct {
	Name      string
	Args      map[string]any
	ArgsSig   string
	Result    any
	FetchedAt time.Time
	Stale     bool
}

// Key returns the composite storage key.
func (r Record) Key() string { return util.QueryKey(r.Name, r.ArgsSig) }

// Index is a concurrency-safe query record table.
type Index struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func New() *Index {
	return &Index{recs: make(map[string]Record)}
}

// Put registers (or replaces) a cached query result as fresh and returns its
// storage key.
func (ix *Index) Put(name string, args map[string]any, result any) string {
	rec := Record{
		Name:      name,
		Args:      args,
		ArgsSig:   util.ArgsSignature(args),
		Result:    result,
		FetchedAt: time.Now(),
	}
	k := rec.Key()
	ix.mu.Lock()
	ix.recs[k] = rec
	ix.mu.Unlock()
	return k
}

// Lookup finds the record for a query name and argument set.
func (ix *Index) Lookup(name string, args map[string]any) (Record, bool) {
	return ix.Get(util.QueryKey(name, util.ArgsSignature(args)))
}

func (ix *Index) Get(key string) (Record, bool) {
	ix.mu.RLock()
	rec, ok := ix.recs[key]
	ix.mu.RUnlock()
	return rec, ok
}

// Matches resolves an instruction to the records it targets.
func (ix *Index) Matches(inv cascade.Invalidation) ([]Record, error) {
	ix.mu.RLock()
	universe := make([]match.Record, 0, len(ix.recs))
	for _, rec := range ix.recs {
		universe = append(universe, match.Record{QueryName: rec.Name, ArgsSignature: rec.ArgsSig})
	}
	ix.mu.RUnlock()

	hits, err := match.Resolve(inv, universe)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(hits))
	ix.mu.RLock()
	for _, h := range hits {
		if rec, ok := ix.recs[h.Key()]; ok {
			out = append(out, rec)
		}
	}
	ix.mu.RUnlock()
	return out, nil
}

// MarkStale flags matching records stale without touching their data, so
// stale-but-present results remain readable.
func (ix *Index) MarkStale(inv cascade.Invalidation) (int, error) {
	hits, err := ix.Matches(inv)
	if err != nil {
		return 0, err
	}
	ix.mu.Lock()
	for _, h := range hits {
		if rec, ok := ix.recs[h.Key()]; ok {
			rec.Stale = true
			ix.recs[h.Key()] = rec
		}
	}
	ix.mu.Unlock()
	return len(hits), nil
}

// Drop removes matching records entirely; subsequent lookups miss.
func (ix *Index) Drop(inv cascade.Invalidation) (int, error) {
	hits, err := ix.Matches(inv)
	if err != nil {
		return 0, err
	}
	ix.mu.Lock()
	for _, h := range hits {
		delete(ix.recs, h.Key())
	}
	ix.mu.Unlock()
	return len(hits), nil
}

// SetResult replaces a record's result after a successful refetch and clears
// its staleness. No-op when the record was removed meanwhile.
func (ix *Index) SetResult(key string, result any) {
	ix.mu.Lock()
	if rec, ok := ix.recs[key]; ok {
		rec.Result = result
		rec.FetchedAt = time.Now()
		rec.Stale = false
		ix.recs[key] = rec
	}
	ix.mu.Unlock()
}

func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.recs)
}
