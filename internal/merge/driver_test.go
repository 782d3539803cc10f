package merge

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/collision"
	"github.com/loomworks/loom/internal/jsonl"
	"github.com/loomworks/loom/internal/types"
)

func writeLog(t *testing.T, path string, entities []*types.Entity) {
	t.Helper()
	require.NoError(t, jsonl.WriteFile(path, entities))
}

func TestMergeJSONLFiles(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.jsonl")
	oursPath := filepath.Join(dir, "ours.jsonl")
	theirsPath := filepath.Join(dir, "theirs.jsonl")

	shared := spec("U1", "spec-001", "body\n", t0)
	writeLog(t, basePath, []*types.Entity{shared})
	writeLog(t, oursPath, []*types.Entity{shared, spec("U2", "spec-002", "ours\n", t0)})
	writeLog(t, theirsPath, []*types.Entity{shared, spec("U3", "spec-003", "theirs\n", t0)})

	res, err := MergeJSONLFiles(context.Background(), dir, basePath, oursPath, theirsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Merged)
	assert.Equal(t, 1, res.Stats.CreatedOurs)
	assert.Equal(t, 1, res.Stats.CreatedTheirs)

	// The merged log lands on our side of the merge, per driver convention.
	merged, err := jsonl.ReadFile(oursPath)
	require.NoError(t, err)
	assert.Len(t, merged, 3)
}

func TestMergeJSONLFilesMissingAncestor(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	oursPath := filepath.Join(dir, "ours.jsonl")
	theirsPath := filepath.Join(dir, "theirs.jsonl")

	writeLog(t, oursPath, []*types.Entity{spec("U1", "spec-001", "a\n", t0)})
	writeLog(t, theirsPath, []*types.Entity{spec("U2", "spec-002", "b\n", t0)})

	// An absent ancestor file is an empty ancestor: everything is a creation.
	res, err := MergeJSONLFiles(context.Background(), dir,
		filepath.Join(dir, "no-base.jsonl"), oursPath, theirsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.CreatedOurs)
	assert.Equal(t, 1, res.Stats.CreatedTheirs)
}

func TestMergeJSONLFilesRenumbersCollisions(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.jsonl")
	oursPath := filepath.Join(dir, "ours.jsonl")
	theirsPath := filepath.Join(dir, "theirs.jsonl")

	writeLog(t, basePath, nil)
	ourSpec := spec("U1", "spec-777", "ours\n", t0)
	theirSpec := spec("U2", "spec-777", "theirs\n", t0.Add(time.Minute))
	theirSpec.CreatedAt = t0.Add(time.Minute)
	writeLog(t, oursPath, []*types.Entity{ourSpec})
	writeLog(t, theirsPath, []*types.Entity{theirSpec})

	res, err := MergeJSONLFiles(context.Background(), dir, basePath, oursPath, theirsPath)
	require.NoError(t, err)
	require.Len(t, res.Entities, 2)

	ids := map[string]string{}
	for _, e := range res.Entities {
		ids[e.UUID] = e.ID
	}
	assert.Equal(t, "spec-777", ids["U1"], "earlier-created keeps the contested identifier")
	assert.NotEqual(t, "spec-777", ids["U2"])

	entries, err := collision.ReadLog(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "U2", entries[0].UUID)
}

func TestMergeJSONLFilesIdempotent(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.jsonl")
	oursPath := filepath.Join(dir, "ours.jsonl")
	theirsPath := filepath.Join(dir, "theirs.jsonl")

	shared := spec("U1", "spec-001", "body\n", t0)
	writeLog(t, basePath, []*types.Entity{shared})
	writeLog(t, oursPath, []*types.Entity{shared, spec("U2", "spec-002", "ours\n", t0)})
	writeLog(t, theirsPath, []*types.Entity{shared})

	_, err := MergeJSONLFiles(context.Background(), dir, basePath, oursPath, theirsPath)
	require.NoError(t, err)
	first, err := os.ReadFile(oursPath)
	require.NoError(t, err)

	_, err = MergeJSONLFiles(context.Background(), dir, basePath, oursPath, theirsPath)
	require.NoError(t, err)
	second, err := os.ReadFile(oursPath)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "re-running the driver is a byte-level no-op")
}

func TestResolveConflictMarkers(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := filepath.Join(dir, "specs.jsonl")

	sharedJSON := func(e *types.Entity) string {
		buf, err := json.Marshal(e)
		require.NoError(t, err)
		return string(buf)
	}

	shared := spec("U1", "spec-001", "same\n", t0)
	ourOnly := spec("U2", "spec-002", "ours\n", t0)
	theirOnly := spec("U3", "spec-003", "theirs\n", t0)

	content := sharedJSON(shared) + "\n" +
		"<<<<<<< HEAD\n" +
		sharedJSON(ourOnly) + "\n" +
		"=======\n" +
		sharedJSON(theirOnly) + "\n" +
		">>>>>>> feature\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := ResolveConflictMarkers(dir, path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.CreatedOurs)
	assert.Equal(t, 1, res.Stats.CreatedTheirs)

	repaired, err := jsonl.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, repaired, 3, "both sides of the conflict survive")
}

func TestResolveConflictMarkersCleanFileUntouched(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := filepath.Join(dir, "specs.jsonl")
	writeLog(t, path, []*types.Entity{spec("U1", "spec-001", "body\n", t0)})

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	res, err := ResolveConflictMarkers(dir, path)
	require.NoError(t, err)
	assert.Zero(t, res.Stats.Merged)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestResolveConflictMarkersSameIdentityBothSides(t *testing.T) {
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	path := filepath.Join(dir, "specs.jsonl")

	ourCopy := spec("U1", "spec-001", "our body\n", t0)
	theirCopy := spec("U1", "spec-001", "their body\n", t0.Add(time.Hour))

	ourJSON, err := json.Marshal(ourCopy)
	require.NoError(t, err)
	theirJSON, err := json.Marshal(theirCopy)
	require.NoError(t, err)

	content := "<<<<<<< HEAD\n" + string(ourJSON) + "\n=======\n" + string(theirJSON) + "\n>>>>>>> feature\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	res, err := ResolveConflictMarkers(dir, path)
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "their body\n", res.Entities[0].Body, "later-updated copy wins content")
	assert.Equal(t, 1, res.Stats.Merged)
}
