package collision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/types"
)

func entity(uuid, id string, created time.Time) *types.Entity {
	return &types.Entity{
		UUID: uuid, ID: id, Kind: types.KindSpec, Title: "title " + uuid,
		CreatedAt: created, UpdatedAt: created,
	}
}

func TestDetect(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	existing := []*types.Entity{entity("U1", "spec-001", t0)}
	incoming := []*types.Entity{
		entity("U2", "spec-001", t0.Add(time.Hour)), // collides with cache
		entity("U3", "spec-002", t0),
		entity("U4", "spec-002", t0), // collides within the batch
	}

	collisions := Detect(existing, incoming)
	require.Len(t, collisions, 2)
	assert.Equal(t, "spec-001", collisions[0].ID)
	assert.Equal(t, "U1", collisions[0].Ours.UUID)
	assert.Equal(t, "U2", collisions[0].Theirs.UUID)
	assert.Equal(t, "spec-002", collisions[1].ID)
}

func TestDetectSameUUIDIsNotACollision(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	existing := []*types.Entity{entity("U1", "spec-001", t0)}
	incoming := []*types.Entity{entity("U1", "spec-001", t0.Add(time.Hour))}

	assert.Empty(t, Detect(existing, incoming), "same id + same stable identity is an update")
}

func TestResolveEarliestKeepsID(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	older := entity("Ux", "spec-001", t0)
	newer := entity("Uy", "spec-001", t0.Add(time.Hour))

	res := Resolve(nil, []*types.Entity{newer, older})
	require.Len(t, res.Entities, 2)
	require.Len(t, res.Log, 1)

	byUUID := map[string]string{}
	for _, e := range res.Entities {
		byUUID[e.UUID] = e.ID
	}
	assert.Equal(t, "spec-001", byUUID["Ux"], "earliest-created keeps the contested identifier")
	assert.NotEqual(t, "spec-001", byUUID["Uy"])
	assert.Equal(t, "spec-001", res.Log[0].OldID)
	assert.Equal(t, byUUID["Uy"], res.Log[0].NewID)
	assert.Equal(t, "Uy", res.Log[0].UUID)
}

func TestResolveIdempotent(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	build := func() []*types.Entity {
		return []*types.Entity{
			entity("Ua", "spec-001", t0),
			entity("Ub", "spec-001", t0.Add(time.Minute)),
			entity("Uc", "spec-001", t0.Add(2*time.Minute)),
		}
	}

	first := Resolve(nil, build())
	second := Resolve(nil, build())
	assert.Equal(t, first.Renumbered, second.Renumbered, "renumbering is a pure function of (old id, uuid)")

	// Running resolution over an already-resolved set changes nothing.
	again := Resolve(nil, first.Entities)
	assert.Empty(t, again.Log)
	for i, e := range again.Entities {
		assert.Equal(t, first.Entities[i].ID, e.ID)
	}
}

func TestResolveCollapsesSameUUID(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	stale := entity("U1", "spec-001", t0)
	fresh := entity("U1", "spec-001", t0)
	fresh.UpdatedAt = t0.Add(time.Hour)
	fresh.Title = "newer title"

	res := Resolve([]*types.Entity{stale}, []*types.Entity{fresh})
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "newer title", res.Entities[0].Title)
	assert.Empty(t, res.Log)
}

func TestResolveBothAxesAgreeOnNewID(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// The same loser collides against the cache and within the batch; every
	// log entry for it must agree on one newId.
	cacheSide := entity("U1", "spec-001", t0)
	batchWinner := entity("U2", "spec-001", t0.Add(time.Minute))
	batchLoser := entity("U3", "spec-001", t0.Add(2*time.Minute))

	res := Resolve([]*types.Entity{cacheSide}, []*types.Entity{batchWinner, batchLoser})

	newIDs := map[string]map[string]bool{}
	for _, entry := range res.Log {
		if newIDs[entry.UUID] == nil {
			newIDs[entry.UUID] = map[string]bool{}
		}
		newIDs[entry.UUID][entry.NewID] = true
	}
	for uuid, ids := range newIDs {
		assert.Len(t, ids, 1, "entries for %s disagree on newId", uuid)
	}
}

func TestResolveAssignsUniqueIdentifiers(t *testing.T) {
	t0 := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	// Unrelated entities all claiming one identifier.
	a := entity("U1", "spec-dup", t0)
	b := entity("U2", "spec-dup", t0)
	c := entity("U3", "spec-dup", t0)

	res := Resolve(nil, []*types.Entity{a, b, c})

	ids := map[string]bool{}
	for _, e := range res.Entities {
		ids[e.ID] = true
	}
	assert.Len(t, ids, 3, "every entity ends with a unique identifier")
}

func TestLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	entries := []types.CollisionLogEntry{
		{OldID: "spec-001", NewID: "spec-9x1z", UUID: "Uy", Reason: "test", Timestamp: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)},
	}
	require.NoError(t, AppendLog(dir, entries))
	require.NoError(t, AppendLog(dir, entries)) // append-only: second write adds, never rewrites

	got, err := ReadLog(dir)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "spec-001", got[0].OldID)
	assert.Equal(t, "spec-9x1z", got[1].NewID)
}

func TestReadLogMissing(t *testing.T) {
	got, err := ReadLog(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, got)
}
