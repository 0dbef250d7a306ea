package cascade

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The applier and coordinator call them on hot paths.
type Hooks interface {
	// A single entity write/evict or an invalidation instruction failed
	// during Apply. Processing of the remaining records continued.
	// op ∈ {"write", "evict", "invalidate", "refetch", "remove"}
	ApplyError(op, target string, err error)

	// A background refetch finished with an error. The cascade that
	// triggered it already completed.
	RefetchFailed(queryName, queryPattern string, err error)

	// An optimistic cascade was applied; touched is the number of entities
	// captured in the rollback snapshot.
	OptimisticApplied(mutationID string, touched int)

	// A failed mutation's snapshot was replayed. restored counts snapshot
	// entries written back, evicted counts "was absent" entries evicted.
	RolledBack(mutationID string, restored, evicted int)

	// One snapshot entry could not be replayed; rollback continued.
	RollbackEntryError(mutationID string, id EntityID, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) ApplyError(string, string, error)           {}
func (NopHooks) RefetchFailed(string, string, error)        {}
func (NopHooks) OptimisticApplied(string, int)              {}
func (NopHooks) RolledBack(string, int, int)                {}
func (NopHooks) RollbackEntryError(string, EntityID, error) {}
