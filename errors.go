package cascade

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// InvalidEntityError is returned by Identify when raw entity data lacks the
// type discriminator or id field. A malformed entity is a caller bug, not a
// transient condition, so it is propagated rather than swallowed.
type InvalidEntityError struct {
	TypeNameField   string
	IDField         string
	MissingTypeName bool
	MissingID       bool
}

func (e *InvalidEntityError) Error() string {
	var missing []string
	if e.MissingTypeName {
		missing = append(missing, e.TypeNameField)
	}
	if e.MissingID {
		missing = append(missing, e.IDField)
	}
	if len(missing) == 0 {
		return "cascade: entity not identifiable"
	}
	return fmt.Sprintf("cascade: entity missing %s", strings.Join(missing, " and "))
}

// PatternTooLongError rejects glob patterns above the hard 100-character cap.
// The cap counts characters, not bytes. It guards matcher construction against
// pathological inputs and is not configurable. Never retried.
type PatternTooLongError struct {
	Pattern string
	Limit   int
}

func (e *PatternTooLongError) Error() string {
	return fmt.Sprintf("cascade: pattern length %d exceeds limit %d",
		utf8.RuneCountInString(e.Pattern), e.Limit)
}

// CacheOperationError wraps a failure from a concrete Port method during
// Apply. Captured per record and reported via callback, never thrown, so one
// bad record cannot blank the rest of a cascade.
type CacheOperationError struct {
	Op     string // "write", "evict", "invalidate", "refetch" or "remove"
	Target string // entity key or instruction target
	Err    error
}

func (e *CacheOperationError) Error() string {
	return fmt.Sprintf("cascade: %s %q: %v", e.Op, e.Target, e.Err)
}

func (e *CacheOperationError) Unwrap() error { return e.Err }

// MutationFailedError is returned by the coordinator when the real mutation
// fails. Rollback (when an optimistic cascade was applied) is guaranteed
// complete before this error surfaces.
type MutationFailedError struct {
	Operation  string
	MutationID string
	RolledBack bool
	Err        error
}

func (e *MutationFailedError) Error() string {
	if e.RolledBack {
		return fmt.Sprintf("cascade: mutation %q failed (optimistic state rolled back): %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("cascade: mutation %q failed: %v", e.Operation, e.Err)
}

func (e *MutationFailedError) Unwrap() error { return e.Err }
