// Package cascade applies server-computed cache-invalidation cascades to
// GraphQL client caches, so normalized and document caches stay consistent
// without per-mutation cache-update code. A cascade is the set of entity
// updates/deletions plus query-invalidation hints one mutation produced,
// delivered out-of-band in the response's extensions channel.
//
// Components:
//   - Port: the capability surface a concrete cache backend provides
//     (entity write/read/evict, query invalidate/refetch/remove).
//     Reference backends live under port/ (memory, kv over a byte store,
//     redis).
//   - Applier: consumes one Payload against a Port. Entity updates land
//     before invalidations; per-record failures never abort the rest.
//   - Coordinator: wraps a mutation round-trip with an optimistic cascade,
//     pre-image snapshotting and rollback-on-failure.
//   - match: resolves an invalidation instruction (exact/prefix/glob/all) to
//     the cached query keys it targets.
//
// Flow:
//
//	payload, _ := cascade.ExtractCascade(rawResponse)
//	applier, _ := cascade.NewApplier(port, cascade.Options{})
//	res, _ := applier.Apply(ctx, payload)
//
// Optimistic mutations:
//
//	coord, _ := cascade.NewCoordinator(port, networkMutate, cascade.Options{})
//	_, err := coord.Mutate(ctx, "renameUser", vars, cascade.OptimisticConfig{
//	    BuildResponse: guessEntity,
//	    BuildCascade:  guessCascade,
//	})
//	// on failure the pre-optimistic cache state is restored before err returns
package cascade
