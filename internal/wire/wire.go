// Package wire decodes the transport-agnostic cascade payload shape delivered
// in a mutation response's extensions channel. Decoding is strict: unknown
// enum values and per-scope invariant violations are rejected here so the
// applier never sees a malformed instruction.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMalformed = errors.New("wire: malformed cascade payload")

type Payload struct {
	Updated       []UpdatedEntity `json:"updated"`
	Deleted       []DeletedEntity `json:"deleted"`
	Invalidations []Invalidation  `json:"invalidations"`
	Metadata      Metadata        `json:"metadata"`
}

type UpdatedEntity struct {
	TypeName  string         `json:"__typename"`
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Entity    map[string]any `json:"entity"`
}

type DeletedEntity struct {
	TypeName  string    `json:"__typename"`
	ID        string    `json:"id"`
	DeletedAt time.Time `json:"deletedAt"`
}

type Invalidation struct {
	QueryName    string         `json:"queryName,omitempty"`
	QueryPattern string         `json:"queryPattern,omitempty"`
	Arguments    map[string]any `json:"arguments,omitempty"`
	Strategy     string         `json:"strategy"`
	Scope        string         `json:"scope"`
}

type Metadata struct {
	Timestamp      time.Time `json:"timestamp"`
	TransactionID  string    `json:"transactionId,omitempty"`
	Depth          int       `json:"depth"`
	AffectedCount  int       `json:"affectedCount"`
	PartialSuccess bool      `json:"partialSuccess,omitempty"`
	Warnings       []string  `json:"warnings,omitempty"`
}

// Decode parses and validates one cascade payload document.
func Decode(b []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Payload) validate() error {
	for i, u := range p.Updated {
		if u.TypeName == "" || u.ID == "" {
			return fmt.Errorf("%w: updated[%d] missing __typename or id", ErrMalformed, i)
		}
		switch u.Operation {
		case "CREATED", "UPDATED", "DELETED":
		default:
			return fmt.Errorf("%w: updated[%d] unknown operation %q", ErrMalformed, i, u.Operation)
		}
	}
	for i, d := range p.Deleted {
		if d.TypeName == "" || d.ID == "" {
			return fmt.Errorf("%w: deleted[%d] missing __typename or id", ErrMalformed, i)
		}
	}
	for i, inv := range p.Invalidations {
		if err := inv.validate(); err != nil {
			return fmt.Errorf("invalidations[%d]: %w", i, err)
		}
	}
	return nil
}

func (inv Invalidation) validate() error {
	switch inv.Strategy {
	case "INVALIDATE", "REFETCH", "REMOVE":
	case "":
		// empty strategy is allowed; the applier substitutes its default
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrMalformed, inv.Strategy)
	}

	switch inv.Scope {
	case "EXACT", "PREFIX", "RELATED":
		if inv.QueryName == "" {
			return fmt.Errorf("%w: scope %s requires queryName", ErrMalformed, inv.Scope)
		}
	case "PATTERN":
		if inv.QueryPattern == "" {
			return fmt.Errorf("%w: scope PATTERN requires queryPattern", ErrMalformed)
		}
	case "ALL":
		// queryName/queryPattern carry no meaning for ALL; servers that emit
		// them anyway are tolerated and the fields ignored by the resolver
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrMalformed, inv.Scope)
	}
	return nil
}
