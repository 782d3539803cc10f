package jsonl

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/types"
)

func TestReadSkipsBlanksAndAppliesDefaults(t *testing.T) {
	input := `{"uuid":"u1","id":"issue-a1","kind":"issue","title":"First","created_at":"2026-01-01T00:00:00Z","updated_at":"2026-01-01T00:00:00Z"}

{"uuid":"u2","id":"spec-b2","kind":"spec","title":"Second","tags":["core"],"created_at":"2026-01-02T00:00:00Z","updated_at":"2026-01-02T00:00:00Z"}
`
	entities, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entities, 2)

	assert.Equal(t, types.StatusOpen, entities[0].Status, "omitted issue status defaults to open")
	assert.Equal(t, types.KindSpec, entities[1].Kind)
	assert.Equal(t, []string{"core"}, entities[1].Tags)
}

func TestReadDetectsConflictMarkers(t *testing.T) {
	input := strings.Join([]string{
		`{"uuid":"u1","id":"issue-a1","kind":"issue","title":"ok"}`,
		`<<<<<<< HEAD`,
		`{"uuid":"u2","id":"issue-b2","kind":"issue","title":"ours"}`,
	}, "\n")

	_, err := Read(strings.NewReader(input))
	require.Error(t, err)
	var cme *ConflictMarkerError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, 2, cme.Line)
}

func TestReadToleratesMarkerTextInsideContent(t *testing.T) {
	input := `{"uuid":"u1","id":"issue-a1","kind":"issue","title":"mentions <<<<<<< HEAD in prose"}`
	entities, err := Read(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entities, 1)
}

func TestWriteDeterministicOrder(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entities := []*types.Entity{
		{UUID: "u2", ID: "spec-zz", Kind: types.KindSpec, Title: "Later", CreatedAt: t0.Add(time.Hour), UpdatedAt: t0},
		{UUID: "u1", ID: "spec-aa", Kind: types.KindSpec, Title: "Earlier", CreatedAt: t0, UpdatedAt: t0},
	}

	var first, second bytes.Buffer
	require.NoError(t, Write(&first, entities))

	// Shuffled input, identical bytes out.
	entities[0], entities[1] = entities[1], entities[0]
	require.NoError(t, Write(&second, entities))
	assert.Equal(t, first.String(), second.String())

	lines := strings.Split(strings.TrimSpace(first.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "spec-aa")
	assert.Contains(t, lines[1], "spec-zz")
}

func TestReadFileMissingIsEmpty(t *testing.T) {
	entities, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, entities)
}

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.jsonl")
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	entities := []*types.Entity{
		{
			UUID: "u1", ID: "issue-a1", Kind: types.KindIssue, Title: "Round trip",
			Status: types.StatusOpen, Priority: 2, CreatedAt: t0, UpdatedAt: t0,
			Tags: []string{"sync"},
			Relationships: []*types.Relationship{
				{FromID: "issue-a1", ToID: "spec-b2", Kind: types.RelImplements},
			},
			Feedback: []*types.Feedback{
				{ID: "fb-1", Spec: "spec-b2", Text: "section 3 ambiguous", Status: types.FeedbackOpen, CreatedAt: t0, UpdatedAt: t0},
			},
		},
	}

	require.NoError(t, WriteFile(path, entities))
	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entities[0].UUID, got[0].UUID)
	assert.Equal(t, entities[0].Relationships[0].Key(), got[0].Relationships[0].Key())
	assert.Equal(t, "fb-1", got[0].Feedback[0].ID)

	// Re-export is a no-op diff.
	before, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, WriteFile(path, got))
	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}
