package cascade

import (
	"encoding/json"
	"fmt"

	"github.com/unkn0wn-root/cascade/internal/wire"
)

// ExtensionKey is where the cascade document lives inside a GraphQL
// response's extensions object.
const ExtensionKey = "cascade"

// ExtractCascade pulls the cascade payload out of a raw GraphQL response
// body. It returns (nil, nil) when the response carries no cascade metadata,
// so plain GraphQL responses pass through untouched.
func ExtractCascade(rawResponse []byte) (*Payload, error) {
	var envelope struct {
		Extensions map[string]json.RawMessage `json:"extensions"`
	}
	if err := json.Unmarshal(rawResponse, &envelope); err != nil {
		return nil, fmt.Errorf("cascade: decode response: %w", err)
	}
	doc, ok := envelope.Extensions[ExtensionKey]
	if !ok {
		return nil, nil
	}

	wp, err := wire.Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("cascade: %w", err)
	}
	return fromWire(wp), nil
}

func fromWire(wp *wire.Payload) *Payload {
	p := &Payload{
		Metadata: Metadata{
			Timestamp:      wp.Metadata.Timestamp,
			TransactionID:  wp.Metadata.TransactionID,
			Depth:          wp.Metadata.Depth,
			AffectedCount:  wp.Metadata.AffectedCount,
			PartialSuccess: wp.Metadata.PartialSuccess,
			Warnings:       wp.Metadata.Warnings,
		},
	}
	for _, u := range wp.Updated {
		p.Updated = append(p.Updated, UpdatedEntity{
			TypeName:  u.TypeName,
			ID:        u.ID,
			Operation: Operation(u.Operation),
			Entity:    EntityData(u.Entity),
		})
	}
	for _, d := range wp.Deleted {
		p.Deleted = append(p.Deleted, DeletedEntity{
			TypeName:  d.TypeName,
			ID:        d.ID,
			DeletedAt: d.DeletedAt,
		})
	}
	for _, inv := range wp.Invalidations {
		p.Invalidations = append(p.Invalidations, Invalidation{
			QueryName:    inv.QueryName,
			QueryPattern: inv.QueryPattern,
			Arguments:    inv.Arguments,
			Strategy:     Strategy(inv.Strategy),
			Scope:        Scope(inv.Scope),
		})
	}
	return p
}
