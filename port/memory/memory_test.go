package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/cascade"
	"github.com/unkn0wn-root/cascade/port/memory"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})

	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Ann"}))

	got, ok, err := c.Read(ctx, "User", "1")
	require.NoError(t, err)
	require.True(t, ok)
	// identifier fields are merged into the stored record
	assert.Equal(t, cascade.EntityData{"__typename": "User", "id": "1", "name": "Ann"}, got)
}

func TestWriteMergesOverExisting(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})

	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Ann", "age": 30}))
	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Anne"}))

	got, _, _ := c.Read(ctx, "User", "1")
	assert.Equal(t, "Anne", got["name"])
	assert.Equal(t, 30, got["age"], "untouched fields survive an upsert")
}

func TestEvictIdempotent(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})

	require.NoError(t, c.Evict(ctx, "User", "missing"), "evicting an absent record must not error")

	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Ann"}))
	require.NoError(t, c.Evict(ctx, "User", "1"))
	require.NoError(t, c.Evict(ctx, "User", "1"))

	_, ok, err := c.Read(ctx, "User", "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Ann"}))

	got, _, _ := c.Read(ctx, "User", "1")
	got["name"] = "Mutated"

	again, _, _ := c.Read(ctx, "User", "1")
	assert.Equal(t, "Ann", again["name"], "caller mutation must not leak into the cache")
}

func TestIdentify(t *testing.T) {
	c := memory.New(memory.Config{})

	id, err := c.Identify(cascade.EntityData{"__typename": "User", "id": "7"})
	require.NoError(t, err)
	assert.Equal(t, cascade.EntityID{TypeName: "User", ID: "7"}, id)

	_, err = c.Identify(cascade.EntityData{"name": "nope"})
	var invalid *cascade.InvalidEntityError
	require.ErrorAs(t, err, &invalid)
	assert.True(t, invalid.MissingTypeName)
	assert.True(t, invalid.MissingID)
}

func TestIdentifyCustomFields(t *testing.T) {
	c := memory.New(memory.Config{TypeNameField: "kind", IDField: "uuid"})

	id, err := c.Identify(cascade.EntityData{"kind": "Widget", "uuid": "w-1"})
	require.NoError(t, err)
	assert.Equal(t, "Widget", id.TypeName)
}

func TestInvalidateMarksStaleKeepsData(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	c.SeedQuery("usersList", nil, []string{"u1", "u2"})

	require.NoError(t, c.Invalidate(ctx, cascade.Invalidation{
		QueryName: "users",
		Scope:     cascade.ScopePrefix,
	}))

	rec, ok := c.Query("usersList", nil)
	require.True(t, ok, "invalidate must not remove the record")
	assert.True(t, rec.Stale)
	assert.Equal(t, []string{"u1", "u2"}, rec.Result, "stale data stays readable")
}

func TestRemoveDropsRecord(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	c.SeedQuery("usersList", nil, []string{"u1"})

	require.NoError(t, c.Remove(ctx, cascade.Invalidation{
		QueryName: "usersList",
		Scope:     cascade.ScopeExact,
	}))

	_, ok := c.Query("usersList", nil)
	assert.False(t, ok)
}

func TestRefetchWithoutRefetcherFallsBackToInvalidate(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	c.SeedQuery("users", nil, "old")

	require.NoError(t, c.Refetch(ctx, cascade.Invalidation{
		QueryName: "users",
		Scope:     cascade.ScopeExact,
	}))

	rec, ok := c.Query("users", nil)
	require.True(t, ok)
	assert.True(t, rec.Stale, "fallback must have invalidate semantics")
	assert.Equal(t, "old", rec.Result)
}

func TestRefetchReplacesResult(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{
		Refetcher: func(_ context.Context, queryName string, args map[string]any) (any, error) {
			return "fresh:" + queryName, nil
		},
	})
	c.SeedQuery("users", nil, "old")

	require.NoError(t, c.Refetch(ctx, cascade.Invalidation{
		QueryName: "users",
		Scope:     cascade.ScopeExact,
	}))

	rec, ok := c.Query("users", nil)
	require.True(t, ok)
	assert.False(t, rec.Stale)
	assert.Equal(t, "fresh:users", rec.Result)
}

func TestRefetchErrorSurfaces(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend gone")
	c := memory.New(memory.Config{
		Refetcher: func(context.Context, string, map[string]any) (any, error) {
			return nil, boom
		},
	})
	c.SeedQuery("users", nil, "old")

	err := c.Refetch(ctx, cascade.Invalidation{QueryName: "users", Scope: cascade.ScopeExact})
	require.ErrorIs(t, err, boom)
}

func TestQueryArgumentsDistinguishRecords(t *testing.T) {
	c := memory.New(memory.Config{})
	c.SeedQuery("user", map[string]any{"id": "1"}, "ann")
	c.SeedQuery("user", map[string]any{"id": "2"}, "ben")

	rec, ok := c.Query("user", map[string]any{"id": "2"})
	require.True(t, ok)
	assert.Equal(t, "ben", rec.Result)
}

// End-to-end: payload with one created entity plus a PREFIX invalidation,
// applied through the real applier against a pre-seeded cache.
func TestApplyCascadeEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	c.SeedQuery("usersList", nil, []string{"stale-before"})

	applier, err := cascade.NewApplier(c, cascade.Options{})
	require.NoError(t, err)

	res, err := applier.Apply(ctx, &cascade.Payload{
		Updated: []cascade.UpdatedEntity{{
			TypeName:  "User",
			ID:        "1",
			Operation: cascade.OpCreated,
			Entity:    cascade.EntityData{"name": "Ann"},
		}},
		Invalidations: []cascade.Invalidation{{
			QueryName: "users",
			Strategy:  cascade.StrategyInvalidate,
			Scope:     cascade.ScopePrefix,
		}},
		Metadata: cascade.Metadata{Timestamp: time.Now(), AffectedCount: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, 1, res.InvalidatedCount)
	assert.Empty(t, res.Errors)

	got, ok, err := c.Read(ctx, "User", "1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, cascade.EntityData{"__typename": "User", "id": "1", "name": "Ann"}, got)

	rec, ok := c.Query("usersList", nil)
	require.True(t, ok)
	assert.True(t, rec.Stale)
}

// End-to-end: a deletion payload leaves the entity absent.
func TestApplyCascadeDelete(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	require.NoError(t, c.Write(ctx, "Todo", "5", cascade.EntityData{"title": "X"}))

	applier, err := cascade.NewApplier(c, cascade.Options{})
	require.NoError(t, err)

	res, err := applier.Apply(ctx, &cascade.Payload{
		Deleted: []cascade.DeletedEntity{{TypeName: "Todo", ID: "5", DeletedAt: time.Now()}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DeletedCount)

	_, ok, err := c.Read(ctx, "Todo", "5")
	require.NoError(t, err)
	assert.False(t, ok)
}

// End-to-end optimistic rollback through the real coordinator.
func TestOptimisticRollbackEndToEnd(t *testing.T) {
	ctx := context.Background()
	c := memory.New(memory.Config{})
	require.NoError(t, c.Write(ctx, "User", "1", cascade.EntityData{"name": "Old"}))

	coord, err := cascade.NewCoordinator(c,
		func(context.Context, string, map[string]any) (*cascade.MutationResult, error) {
			return nil, errors.New("server rejected")
		}, cascade.Options{})
	require.NoError(t, err)

	_, err = coord.Mutate(ctx, "renameUser", map[string]any{"name": "New"}, cascade.OptimisticConfig{
		BuildCascade: func(vars map[string]any, _ cascade.EntityData) *cascade.Payload {
			return &cascade.Payload{Updated: []cascade.UpdatedEntity{{
				TypeName:  "User",
				ID:        "1",
				Operation: cascade.OpUpdated,
				Entity:    cascade.EntityData{"name": vars["name"]},
			}}}
		},
	})

	var mfe *cascade.MutationFailedError
	require.ErrorAs(t, err, &mfe)
	assert.True(t, mfe.RolledBack)

	got, ok, readErr := c.Read(ctx, "User", "1")
	require.NoError(t, readErr)
	require.True(t, ok)
	assert.Equal(t, "Old", got["name"])
}
