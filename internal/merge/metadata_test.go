package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loom/internal/types"
)

func version(uuid string, updated time.Time) *types.Entity {
	return &types.Entity{
		UUID: uuid, ID: "spec-001", Kind: types.KindSpec,
		Title:     "title@" + updated.Format(time.RFC3339),
		Body:      "body@" + updated.Format(time.RFC3339),
		CreatedAt: updated.Add(-time.Hour), UpdatedAt: updated,
	}
}

func TestMergeMetadataLatestContentWins(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	older := version("U1", t0)
	newer := version("U1", t0.Add(time.Hour))
	newer.Title = "fresh title"
	newer.Body = "fresh body"
	newer.Priority = 1

	for _, order := range [][]*types.Entity{{older, newer}, {newer, older}} {
		merged := MergeMetadata(order)
		assert.Equal(t, "fresh title", merged.Title)
		assert.Equal(t, "fresh body", merged.Body)
		assert.Equal(t, 1, merged.Priority)
		assert.Equal(t, newer.UpdatedAt, merged.UpdatedAt)
	}
}

func TestMergeMetadataUnionsRelationships(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	a := version("U1", t0)
	a.Relationships = []*types.Relationship{
		{FromID: "spec-001", ToID: "spec-002", Kind: types.RelReferences},
		{FromID: "spec-001", ToID: "spec-003", Kind: types.RelDependsOn},
	}
	b := version("U1", t0.Add(time.Hour))
	b.Relationships = []*types.Relationship{
		// Same edge as a's first, carrying a fresher anchor.
		{FromID: "spec-001", ToID: "spec-002", Kind: types.RelReferences, Anchor: &types.Anchor{Line: 12}},
		{FromID: "spec-001", ToID: "spec-004", Kind: types.RelReferences},
	}

	merged := MergeMetadata([]*types.Entity{a, b})
	require.Len(t, merged.Relationships, 3, "duplicate edge collapses regardless of anchor")

	keys := make([]string, len(merged.Relationships))
	for i, rel := range merged.Relationships {
		keys[i] = rel.Key()
	}
	assert.Equal(t, []string{
		"spec-001|spec-002|references",
		"spec-001|spec-003|depends-on",
		"spec-001|spec-004|references",
	}, keys)
}

func TestMergeMetadataRelationshipSurvivesRemoteEdit(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	// One side added an edge, the other edited content later. The edge must
	// not vanish just because the content winner never saw it.
	withEdge := version("U1", t0)
	withEdge.Relationships = []*types.Relationship{
		{FromID: "spec-001", ToID: "spec-009", Kind: types.RelBlocks},
	}
	edited := version("U1", t0.Add(time.Hour))

	merged := MergeMetadata([]*types.Entity{withEdge, edited})
	assert.Equal(t, edited.Title, merged.Title)
	require.Len(t, merged.Relationships, 1)
	assert.Equal(t, "spec-009", merged.Relationships[0].ToID)
}

func TestMergeMetadataUnionsTags(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	a := version("U1", t0)
	a.Tags = []string{"backend", "auth"}
	b := version("U1", t0.Add(time.Minute))
	b.Tags = []string{"auth", "urgent"}

	merged := MergeMetadata([]*types.Entity{a, b})
	assert.Equal(t, []string{"auth", "backend", "urgent"}, merged.Tags)
}

func TestMergeMetadataFeedbackFirstWins(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	a := version("U1", t0)
	a.Kind = types.KindIssue
	a.Status = types.StatusOpen
	a.Feedback = []*types.Feedback{
		{ID: "fb-1", Spec: "spec-002", Text: "original wording", Status: types.FeedbackOpen},
	}
	b := version("U1", t0.Add(time.Minute))
	b.Kind = types.KindIssue
	b.Status = types.StatusOpen
	b.Feedback = []*types.Feedback{
		{ID: "fb-1", Spec: "spec-002", Text: "diverged wording", Status: types.FeedbackResolved},
		{ID: "fb-2", Spec: "spec-003", Text: "second note", Status: types.FeedbackOpen},
	}

	merged := MergeMetadata([]*types.Entity{b, a})
	require.Len(t, merged.Feedback, 2)
	assert.Equal(t, "diverged wording", merged.Feedback[0].Text, "first occurrence in newest-first order wins")
	assert.Equal(t, "fb-2", merged.Feedback[1].ID)
}

func TestMergeMetadataDoesNotShareSlices(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	a := version("U1", t0)
	a.Tags = []string{"one"}
	a.Relationships = []*types.Relationship{
		{FromID: "spec-001", ToID: "spec-002", Kind: types.RelReferences, Anchor: &types.Anchor{Line: 3}},
	}

	merged := MergeMetadata([]*types.Entity{a})
	merged.Relationships[0].Anchor.Line = 99
	merged.Tags[0] = "mutated"

	assert.Equal(t, 3, a.Relationships[0].Anchor.Line)
	assert.Equal(t, "one", a.Tags[0])
}

func TestMergeMetadataEmpty(t *testing.T) {
	assert.Nil(t, MergeMetadata(nil))
}

func TestCollapseDuplicates(t *testing.T) {
	t0 := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	stale := version("U1", t0)
	fresh := version("U1", t0.Add(time.Hour))
	fresh.Title = "kept"
	other := version("U2", t0)

	out := CollapseDuplicates([]*types.Entity{stale, other, fresh})
	require.Len(t, out, 2)
	assert.Equal(t, "U1", out[0].UUID)
	assert.Equal(t, "kept", out[0].Title)
	assert.Equal(t, "U2", out[1].UUID)
}
