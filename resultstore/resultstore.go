// Package resultstore caches typed query results over a byte store. The
// ports' query records are schema-less (results held as any); embedders whose
// query layer produces concrete types keep those results here instead,
// codec-encoded under "res:<ns>:" keys — codec.Protobuf for protobuf-speaking
// query layers, codec.JSON/CBOR/Msgpack for plain structs.
//
// Records are keyed by query name plus the same canonical argument signature
// the ports use, so an embedder can evict here from the cascade applier's
// OnApplyError/OnRefetchError callbacks with the instruction's name and
// arguments.
package resultstore

import (
	"context"
	"fmt"
	"time"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/codec"
	"github.com/unkn0wn-root/cascade/internal/util"
	"github.com/unkn0wn-root/cascade/store"
)

// Config for a typed result cache. Store, Codec and Namespace are required.
type Config[V any] struct {
	Store     store.Store
	Codec     codec.Codec[V]
	Namespace string // isolates keyspaces when one store backs several caches

	TTL    time.Duration  // result record TTL; 0 => no expiry
	Logger cascade.Logger // nil => NopLogger
}

// Cache stores one result type V keyed by query name and argument set.
type Cache[V any] struct {
	store store.Store
	codec codec.Codec[V]
	ns    string
	ttl   time.Duration
	log   cascade.Logger
}

func New[V any](cfg Config[V]) (*Cache[V], error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("resultstore: store is required")
	}
	if cfg.Codec == nil {
		return nil, fmt.Errorf("resultstore: codec is required")
	}
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("resultstore: namespace is required")
	}
	c := &Cache[V]{
		store: cfg.Store,
		codec: cfg.Codec,
		ns:    cfg.Namespace,
		ttl:   cfg.TTL,
		log:   cascade.Logger(cascade.NopLogger{}),
	}
	if cfg.Logger != nil {
		c.log = cfg.Logger
	}
	return c, nil
}

func (c *Cache[V]) key(queryName string, args map[string]any) string {
	return "res:" + c.ns + ":" + util.QueryKey(queryName, util.ArgsSignature(args))
}

// Put stores (or replaces) the result for a query name and argument set.
func (c *Cache[V]) Put(ctx context.Context, queryName string, args map[string]any, result V) error {
	k := c.key(queryName, args)
	raw, err := c.codec.Encode(result)
	if err != nil {
		return fmt.Errorf("resultstore: encode %s: %w", k, err)
	}
	return c.store.Set(ctx, k, raw, c.ttl)
}

// Get returns the cached result. Absent is (zero, false, nil).
func (c *Cache[V]) Get(ctx context.Context, queryName string, args map[string]any) (V, bool, error) {
	var zero V
	k := c.key(queryName, args)
	raw, ok, err := c.store.Get(ctx, k)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := c.codec.Decode(raw)
	if err != nil {
		// self-heal corrupt entries; the next read is a clean miss
		_ = c.store.Del(ctx, k)
		c.log.Warn("corrupt result record dropped", cascade.Fields{"key": k, "err": err})
		return zero, false, nil
	}
	return v, true, nil
}

// Del removes the cached result. Absent is a no-op.
func (c *Cache[V]) Del(ctx context.Context, queryName string, args map[string]any) error {
	return c.store.Del(ctx, c.key(queryName, args))
}

// Close releases the underlying store.
func (c *Cache[V]) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}
