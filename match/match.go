// Package match resolves invalidation instructions against a set of cached
// query records. It is logically part of a Port implementation but lives in
// its own package because the matching algorithm is reusable across backends.
//
// The resolver only reads record name/signature to decide membership; it
// never mutates records. Mutation is the Port's job.
package match

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/internal/util"
)

// MaxPatternLen is the hard cap on glob pattern length, counted in characters
// (runes, not bytes). Patterns above it are rejected before matcher
// construction.
const MaxPatternLen = 100

// Record identifies one cached query for matching purposes.
type Record struct {
	QueryName     string
	ArgsSignature string // canonical argument serialization; "" = no arguments
}

// Key returns the composite storage key for the record.
func (r Record) Key() string { return util.QueryKey(r.QueryName, r.ArgsSignature) }

// Signature returns the canonical serialization of args for use as a
// Record.ArgsSignature.
func Signature(args map[string]any) string { return util.ArgsSignature(args) }

// Resolve returns the subset of records the instruction targets. Matching is
// set membership; no ordering among matches is defined.
func Resolve(inv cascade.Invalidation, records []Record) ([]Record, error) {
	switch inv.Scope {
	case cascade.ScopeExact:
		if inv.QueryName == "" {
			return nil, fmt.Errorf("match: EXACT scope requires a query name")
		}
		// candidate key is the query name plus the serialized argument
		// filter; no filter matches only argument-less records
		want := util.ArgsSignature(inv.Arguments)
		return filter(records, func(r Record) bool {
			return r.QueryName == inv.QueryName && r.ArgsSignature == want
		}), nil

	case cascade.ScopePrefix, cascade.ScopeRelated:
		// RELATED has no generic algorithm; documented fallback is PREFIX.
		// Servers wanting precise semantics emit EXACT or PATTERN instead.
		if inv.QueryName == "" {
			return nil, fmt.Errorf("match: %s scope requires a query name", inv.Scope)
		}
		return filter(records, func(r Record) bool {
			return strings.HasPrefix(r.QueryName, inv.QueryName)
		}), nil

	case cascade.ScopePattern:
		re, err := CompilePattern(inv.QueryPattern)
		if err != nil {
			return nil, err
		}
		return filter(records, func(r Record) bool {
			return re.MatchString(r.QueryName)
		}), nil

	case cascade.ScopeAll:
		out := make([]Record, len(records))
		copy(out, records)
		return out, nil

	default:
		return nil, fmt.Errorf("match: unknown scope %q", inv.Scope)
	}
}

// CompilePattern compiles a glob pattern ('*' matches any run of characters,
// '?' any single character) to an anchored matcher. All other regexp
// metacharacters are taken literally.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("match: PATTERN scope requires a query pattern")
	}
	if utf8.RuneCountInString(pattern) > MaxPatternLen {
		return nil, &cascade.PatternTooLongError{Pattern: pattern, Limit: MaxPatternLen}
	}

	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

func filter(records []Record, keep func(Record) bool) []Record {
	var out []Record
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
