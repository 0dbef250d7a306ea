package cascade

import (
	"testing"
	"time"
)

func TestExtractCascadeAbsent(t *testing.T) {
	for _, raw := range []string{
		`{"data":{"createUser":{"id":"1"}}}`,
		`{"data":null,"extensions":{"tracing":{}}}`,
	} {
		p, err := ExtractCascade([]byte(raw))
		if err != nil {
			t.Fatalf("ExtractCascade(%s): %v", raw, err)
		}
		if p != nil {
			t.Fatalf("expected nil payload for %s", raw)
		}
	}
}

func TestExtractCascadeFull(t *testing.T) {
	raw := `{
	  "data": {"createUser": {"id": "1"}},
	  "extensions": {
	    "cascade": {
	      "updated": [{"__typename":"User","id":"1","operation":"CREATED","entity":{"name":"Ann"}}],
	      "deleted": [{"__typename":"Session","id":"9","deletedAt":"2025-06-01T10:00:00Z"}],
	      "invalidations": [
	        {"queryName":"users","strategy":"INVALIDATE","scope":"PREFIX"},
	        {"queryPattern":"get*s","strategy":"REMOVE","scope":"PATTERN"},
	        {"queryName":"user","arguments":{"id":"1"},"strategy":"REFETCH","scope":"EXACT"}
	      ],
	      "metadata": {"timestamp":"2025-06-01T10:00:00Z","transactionId":"tx-7","depth":1,"affectedCount":2}
	    }
	  }
	}`

	p, err := ExtractCascade([]byte(raw))
	if err != nil {
		t.Fatalf("ExtractCascade: %v", err)
	}
	if p == nil || p.Empty() {
		t.Fatalf("payload missing")
	}

	if len(p.Updated) != 1 || p.Updated[0].Operation != OpCreated || p.Updated[0].Entity["name"] != "Ann" {
		t.Fatalf("updated wrong: %+v", p.Updated)
	}
	if len(p.Deleted) != 1 || !p.Deleted[0].DeletedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("deleted wrong: %+v", p.Deleted)
	}
	if len(p.Invalidations) != 3 {
		t.Fatalf("invalidations wrong: %+v", p.Invalidations)
	}
	if p.Invalidations[1].Scope != ScopePattern || p.Invalidations[1].Strategy != StrategyRemove {
		t.Fatalf("pattern instruction wrong: %+v", p.Invalidations[1])
	}
	if p.Invalidations[2].Arguments["id"] != "1" {
		t.Fatalf("arguments lost: %+v", p.Invalidations[2])
	}
	// metadata is informational but must survive for observability
	if p.Metadata.TransactionID != "tx-7" || p.Metadata.AffectedCount != 2 {
		t.Fatalf("metadata lost: %+v", p.Metadata)
	}
}

func TestExtractCascadeRejectsMalformed(t *testing.T) {
	cases := []string{
		`{"extensions":{"cascade":{"updated":[{"__typename":"User","id":"1","operation":"EXPLODED"}]}}}`,
		`{"extensions":{"cascade":{"invalidations":[{"strategy":"INVALIDATE","scope":"EXACT"}]}}}`,
		`{"extensions":{"cascade":{"invalidations":[{"strategy":"INVALIDATE","scope":"PATTERN"}]}}}`,
		`{"extensions":{"cascade":{"updated":[{"id":"1","operation":"CREATED"}]}}}`,
		`{"extensions":{"cascade":"not an object"}}`,
	}
	for _, raw := range cases {
		if _, err := ExtractCascade([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestExtractCascadeNotJSON(t *testing.T) {
	if _, err := ExtractCascade([]byte("<html>")); err == nil {
		t.Fatalf("expected decode error")
	}
}
