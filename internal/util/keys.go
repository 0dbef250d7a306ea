package util

import "encoding/json"

// ArgsSignature returns the canonical serialization of a query argument map.
// encoding/json sorts map keys at every nesting level, so equal argument maps
// always produce identical signatures. Empty/nil maps serialize to "".
func ArgsSignature(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		// non-serializable argument values cannot participate in exact
		// matching; an empty signature only ever matches argument-less
		// records
		return ""
	}
	return string(b)
}

// QueryKey composes the cached-query storage key from a query name and its
// argument signature.
func QueryKey(name, sig string) string {
	if sig == "" {
		return name
	}
	return name + "?" + sig
}
