package cascade

import "time"

// Operation says why an entity appears in a payload's updated set.
type Operation string

const (
	OpCreated Operation = "CREATED"
	OpUpdated Operation = "UPDATED"
	OpDeleted Operation = "DELETED"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreated, OpUpdated, OpDeleted:
		return true
	}
	return false
}

// Strategy selects how matched cached queries are treated.
type Strategy string

const (
	StrategyInvalidate Strategy = "INVALIDATE" // mark stale, keep data readable
	StrategyRefetch    Strategy = "REFETCH"    // trigger background re-fetch
	StrategyRemove     Strategy = "REMOVE"     // drop the cached query entirely
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyInvalidate, StrategyRefetch, StrategyRemove:
		return true
	}
	return false
}

// Scope selects how broadly an instruction matches cached queries.
type Scope string

const (
	ScopeExact   Scope = "EXACT"
	ScopePrefix  Scope = "PREFIX"
	ScopePattern Scope = "PATTERN"
	ScopeAll     Scope = "ALL"
	ScopeRelated Scope = "RELATED" // no generic algorithm; treated as PREFIX
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeExact, ScopePrefix, ScopePattern, ScopeAll, ScopeRelated:
		return true
	}
	return false
}

// EntityData is a schema-less field map. The protocol is intentionally
// schema-agnostic at this layer, so no static shapes are recovered.
type EntityData map[string]any

// Clone returns a shallow copy. Nested values are shared.
func (d EntityData) Clone() EntityData {
	if d == nil {
		return nil
	}
	out := make(EntityData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// EntityID is the (typeName, id) pair used as the sole entity cache key.
// Never reused across types.
type EntityID struct {
	TypeName string
	ID       string
}

// Key returns the canonical storage form "<TypeName>:<ID>".
func (e EntityID) Key() string { return e.TypeName + ":" + e.ID }

func (e EntityID) String() string { return e.Key() }

// UpdatedEntity is one member of a payload's updated set. Consumed exactly
// once per apply: written when Operation != DELETED, evicted otherwise.
type UpdatedEntity struct {
	TypeName  string
	ID        string
	Operation Operation
	Entity    EntityData
}

func (u UpdatedEntity) EntityID() EntityID { return EntityID{TypeName: u.TypeName, ID: u.ID} }

// DeletedEntity always triggers eviction, independent of the updated set.
// The same entity may appear in both sets; eviction is idempotent.
type DeletedEntity struct {
	TypeName  string
	ID        string
	DeletedAt time.Time
}

func (d DeletedEntity) EntityID() EntityID { return EntityID{TypeName: d.TypeName, ID: d.ID} }

// Invalidation is a server-provided hint describing which cached queries to
// mark stale, refetch, or remove. Which of QueryName/QueryPattern is
// meaningful depends on Scope:
//
//	EXACT   - QueryName (+ optional Arguments for exact argument match)
//	PREFIX  - QueryName as a literal string prefix
//	PATTERN - QueryPattern in glob syntax ('*' any run, '?' one char)
//	ALL     - neither; matches every cached query (stray name/pattern ignored)
//	RELATED - QueryName, resolved with PREFIX semantics (documented fallback)
type Invalidation struct {
	QueryName    string
	QueryPattern string
	Arguments    map[string]any
	Strategy     Strategy
	Scope        Scope
}

// Metadata is informational only. It never drives cache mutation logic but is
// preserved for observability and debugging.
type Metadata struct {
	Timestamp      time.Time
	TransactionID  string
	Depth          int
	AffectedCount  int
	PartialSuccess bool
	Warnings       []string
}

// Payload is the full cascade produced by one mutation response. Immutable
// once built; consumed entirely by a single Applier.Apply call. A failed
// mutation carries an empty payload in all three sequences.
type Payload struct {
	Updated       []UpdatedEntity
	Deleted       []DeletedEntity
	Invalidations []Invalidation
	Metadata      Metadata
}

// Empty reports whether the payload carries no work.
func (p *Payload) Empty() bool {
	return p == nil || (len(p.Updated) == 0 && len(p.Deleted) == 0 && len(p.Invalidations) == 0)
}
