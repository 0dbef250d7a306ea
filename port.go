package cascade

import (
	"context"
	"strconv"
)

// Default field names used to derive an EntityID from raw entity data.
const (
	TypeNameField = "__typename"
	IDField       = "id"
)

// Port is the capability surface a concrete cache backend must provide.
// The core requires nothing else from the embedding client library.
//
// Implementations must be safe for concurrent use: the Port is the single
// shared mutable resource across independent in-flight mutations and the core
// performs no locking of its own. All operations are keyed by entity
// identifier or query key, so no range operations can conflict.
type Port interface {
	// Write upserts an entity record. Side effect only.
	Write(ctx context.Context, typeName, id string, data EntityData) error

	// Read is a pure lookup. Absent is a valid, non-error result (ok=false).
	Read(ctx context.Context, typeName, id string) (data EntityData, ok bool, err error)

	// Evict removes an entity record. Must be a no-op, not an error, when
	// the record is absent.
	Evict(ctx context.Context, typeName, id string) error

	// Invalidate marks cached queries matching inv as stale. It must not
	// remove their data; callers may still read stale-but-present results.
	Invalidate(ctx context.Context, inv Invalidation) error

	// Refetch triggers a re-fetch of matching cached queries. Backends with
	// no refetch mechanism wired up must fall back to Invalidate semantics
	// rather than erroring.
	Refetch(ctx context.Context, inv Invalidation) error

	// Remove deletes matching cached queries entirely; subsequent reads are
	// cache misses.
	Remove(ctx context.Context, inv Invalidation) error

	// Identify derives the entity identifier from raw entity data. Fails
	// with *InvalidEntityError when the discriminator or id field is missing.
	Identify(data EntityData) (EntityID, error)
}

// RefetchFunc re-executes one cached query against the network and returns
// the fresh result. Ports call it from their Refetch implementation; a port
// configured without one falls back to Invalidate semantics.
type RefetchFunc func(ctx context.Context, queryName string, args map[string]any) (result any, err error)

// Identify derives an EntityID from data using the default field names.
func Identify(data EntityData) (EntityID, error) {
	return IdentifyFields(data, TypeNameField, IDField)
}

// IdentifyFields derives an EntityID using caller-chosen field names.
// Both fields must be present and non-empty strings.
func IdentifyFields(data EntityData, typeField, idField string) (EntityID, error) {
	tn, _ := data[typeField].(string)
	id := stringify(data[idField])
	if tn == "" || id == "" {
		return EntityID{}, &InvalidEntityError{
			TypeNameField:   typeField,
			IDField:         idField,
			MissingTypeName: tn == "",
			MissingID:       id == "",
		}
	}
	return EntityID{TypeName: tn, ID: id}, nil
}

// GraphQL IDs arrive as strings, but JSON-decoded entity data may carry
// numeric ids. Accept both.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t != float64(int64(t)) {
			return ""
		}
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}
