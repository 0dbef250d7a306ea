// Package redis is a Port over redis/go-redis: entity records as codec-encoded
// string keys, cached query records as hashes with a set index per namespace.
// Staleness is a hash field, so invalidated results stay readable until a
// refetch or removal replaces them.
//
// Keys:
//
//	ent:<ns>:<Type>:<id>  - entity records
//	qry:<ns>:<composite>  - query record hashes (composite = name or name?sig)
//	qidx:<ns>             - set of composite keys, the resolver's universe
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/codec"
	"github.com/unkn0wn-root/cascade/internal/util"
	"github.com/unkn0wn-root/cascade/match"
)

var ErrNilClient = errors.New("redisport: nil client")

// query record hash fields
const (
	fName    = "name"
	fArgs    = "args"
	fData    = "data"
	fFetched = "fetched"
	fStale   = "stale"
)

// Config for the redis port. Client and Namespace are required.
type Config struct {
	Client    goredis.UniversalClient
	Namespace string

	// Codec encodes entity records. Nil => codec.JSON.
	Codec codec.Codec[cascade.EntityData]

	EntityTTL time.Duration // 0 => no expiry
	QueryTTL  time.Duration // 0 => no expiry

	Refetcher cascade.RefetchFunc // nil => Refetch degrades to Invalidate
	Logger    cascade.Logger      // nil => NopLogger

	// CloseClient releases the client on Close. Set true only if this port
	// exclusively owns the client.
	CloseClient bool
}

type Port struct {
	rdb         goredis.UniversalClient
	ns          string
	codec       codec.Codec[cascade.EntityData]
	entityTTL   time.Duration
	queryTTL    time.Duration
	refetch     cascade.RefetchFunc
	sf          singleflight.Group
	log         cascade.Logger
	closeClient bool
}

var _ cascade.Port = (*Port)(nil)

func New(cfg Config) (*Port, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Namespace == "" {
		return nil, errors.New("redisport: namespace is required")
	}
	p := &Port{
		rdb:         cfg.Client,
		ns:          cfg.Namespace,
		codec:       cfg.Codec,
		entityTTL:   cfg.EntityTTL,
		queryTTL:    cfg.QueryTTL,
		refetch:     cfg.Refetcher,
		log:         cascade.Logger(cascade.NopLogger{}),
		closeClient: cfg.CloseClient,
	}
	if p.codec == nil {
		p.codec = codec.JSON[cascade.EntityData]{}
	}
	if cfg.Logger != nil {
		p.log = cfg.Logger
	}
	return p, nil
}

func (p *Port) entityKey(typeName, id string) string {
	return "ent:" + p.ns + ":" + typeName + ":" + id
}
func (p *Port) queryKey(composite string) string { return "qry:" + p.ns + ":" + composite }
func (p *Port) indexKey() string                 { return "qidx:" + p.ns }

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
		return fmt.Errorf("redisport: encode %s: %w", k, err)
	}
	ttl := p.entityTTL
	if ttl < 0 {
		ttl = 0
	}
	return p.rdb.Set(ctx, k, raw, ttl).Err()
}

func (p *Port) Read(ctx context.Context, typeName, id string) (cascade.EntityData, bool, error) {
	return p.readRecord(ctx, p.entityKey(typeName, id))
}

func (p *Port) readRecord(ctx context.Context, k string) (cascade.EntityData, bool, error) {
	raw, err := p.rdb.Get(ctx, k).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	rec, err := p.codec.Decode(raw)
	if err != nil {
		// self-heal corrupt entries
		_ = p.rdb.Del(ctx, k).Err()
		p.log.Warn("corrupt entity record dropped", cascade.Fields{"key": k, "err": err})
		return nil, false, nil
	}
	return rec, true, nil
}

func (p *Port) Evict(ctx context.Context, typeName, id string) error {
	// DEL of a missing key is a no-op in redis, which matches the idempotent
	// eviction contract
	return p.rdb.Del(ctx, p.entityKey(typeName, id)).Err()
}

func (p *Port) Invalidate(ctx context.Context, inv cascade.Invalidation) error {
	hits, err := p.resolve(ctx, inv)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, h := range hits {
		pipe.HSet(ctx, p.queryKey(h.Key()), fStale, "1")
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (p *Port) Refetch(ctx context.Context, inv cascade.Invalidation) error {
	if p.refetch == nil {
		return p.Invalidate(ctx, inv)
	}
	hits, err := p.resolve(ctx, inv)
	if err != nil {
		return err
	}

	var errs []error
	for _, h := range hits {
		composite := h.Key()
		qk := p.queryKey(composite)

		rawArgs, err := p.rdb.HGet(ctx, qk, fArgs).Result()
		if err == goredis.Nil {
			continue // removed since resolution
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		var args map[string]any
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				errs = append(errs, fmt.Errorf("refetch %q: args: %w", composite, err))
				continue
			}
		}

		res, err, _ := p.sf.Do(composite, func() (any, error) {
			return p.refetch(ctx, h.QueryName, args)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("refetch %q: %w", composite, err))
			continue
		}
		if err := p.storeResult(ctx, qk, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Port) storeResult(ctx context.Context, qk string, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redisport: encode result for %s: %w", qk, err)
	}
	return p.rdb.HSet(ctx, qk,
		fData, string(data),
		fFetched, time.Now().UTC().Format(time.RFC3339Nano),
		fStale, "0",
	).Err()
}

func (p *Port) Remove(ctx context.Context, inv cascade.Invalidation) error {
	hits, err := p.resolve(ctx, inv)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}
	pipe := p.rdb.Pipeline()
	for _, h := range hits {
		pipe.Del(ctx, p.queryKey(h.Key()))
		pipe.SRem(ctx, p.indexKey(), h.Key())
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (p *Port) Identify(data cascade.EntityData) (cascade.EntityID, error) {
	return cascade.Identify(data)
}

// resolve loads the index set and runs the matcher over it. Composite members
// are "name" or "name?sig", so matching needs no hash reads.
func (p *Port) resolve(ctx context.Context, inv cascade.Invalidation) ([]match.Record, error) {
	members, err := p.rdb.SMembers(ctx, p.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	universe := make([]match.Record, 0, len(members))
	for _, m := range members {
		name, sig, _ := strings.Cut(m, "?")
		universe = append(universe, match.Record{QueryName: name, ArgsSignature: sig})
	}
	return match.Resolve(inv, universe)
}

// SeedQuery registers a cached query result so invalidations can target it.
func (p *Port) SeedQuery(ctx context.Context, queryName string, args map[string]any, result any) error {
	sig := util.ArgsSignature(args)
	composite := util.QueryKey(queryName, sig)
	qk := p.queryKey(composite)

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redisport: encode result for %s: %w", qk, err)
	}
	var rawArgs string
	if len(args) > 0 {
		b, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("redisport: encode args for %s: %w", qk, err)
		}
		rawArgs = string(b)
	}

	pipe := p.rdb.Pipeline()
	pipe.HSet(ctx, qk,
		fName, queryName,
		fArgs, rawArgs,
		fData, string(data),
		fFetched, time.Now().UTC().Format(time.RFC3339Nano),
		fStale, "0",
	)
	pipe.SAdd(ctx, p.indexKey(), composite)
	if p.queryTTL > 0 {
		pipe.Expire(ctx, qk, p.queryTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// QueryStale reports whether a seeded query is currently marked stale.
func (p *Port) QueryStale(ctx context.Context, queryName string, args map[string]any) (stale, ok bool, err error) {
	composite := util.QueryKey(queryName, util.ArgsSignature(args))
	v, err := p.rdb.HGet(ctx, p.queryKey(composite), fStale).Result()
	if err == goredis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

// Close releases the underlying client only when this port owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Port) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
