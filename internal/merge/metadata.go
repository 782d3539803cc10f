// Package merge reconciles divergent copies of the entity graph.
//
// Two layers: a metadata merger that unions relationships, tags, and
// feedback across any number of versions of one stable identity, and a
// structural three-way engine that additionally line-merges bodies through
// an external text-merge primitive. The structural path degrades to the
// metadata result on any failure; nothing in this package raises a
// per-entity error to the caller.
package merge

import (
	"sort"

	"github.com/loomworks/loom/internal/types"
)

// MergeMetadata combines divergent copies of one stable identity.
//
// The copy with the most recent updated_at is the base: title, body,
// priority, and status come entirely from it. Relationships union by
// structural equality, tags union as a set, feedback unions by feedback
// identity with the first occurrence winning. Version order does not
// affect the result: versions are considered newest-first, with stable
// tie-breaks.
func MergeMetadata(versions []*types.Entity) *types.Entity {
	if len(versions) == 0 {
		return nil
	}

	ordered := make([]*types.Entity, len(versions))
	copy(ordered, versions)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	merged := ordered[0].Clone()
	merged.Relationships = unionRelationships(ordered)
	merged.Tags = unionTags(ordered)
	merged.Feedback = unionFeedback(ordered)
	return merged
}

func unionRelationships(versions []*types.Entity) []*types.Relationship {
	seen := make(map[string]*types.Relationship)
	var keys []string
	for _, v := range versions {
		for _, rel := range v.Relationships {
			key := rel.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			r := *rel
			if rel.Anchor != nil {
				a := *rel.Anchor
				r.Anchor = &a
			}
			seen[key] = &r
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	out := make([]*types.Relationship, len(keys))
	for i, key := range keys {
		out[i] = seen[key]
	}
	return out
}

func unionTags(versions []*types.Entity) []string {
	var all []string
	for _, v := range versions {
		all = append(all, v.Tags...)
	}
	return types.NormalizeTags(all)
}

func unionFeedback(versions []*types.Entity) []*types.Feedback {
	seen := make(map[string]bool)
	var out []*types.Feedback
	for _, v := range versions {
		for _, fb := range v.Feedback {
			if seen[fb.ID] {
				continue
			}
			seen[fb.ID] = true
			f := *fb
			if fb.Anchor != nil {
				a := *fb.Anchor
				f.Anchor = &a
			}
			out = append(out, &f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CollapseDuplicates reduces a batch where one stable identity appears more
// than once (a hand-edited log, or concatenated branches) to one record per
// identity via the metadata merger.
func CollapseDuplicates(entities []*types.Entity) []*types.Entity {
	groups := make(map[string][]*types.Entity)
	var order []string
	for _, e := range entities {
		if _, ok := groups[e.UUID]; !ok {
			order = append(order, e.UUID)
		}
		groups[e.UUID] = append(groups[e.UUID], e)
	}

	out := make([]*types.Entity, 0, len(order))
	for _, uuid := range order {
		group := groups[uuid]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}
		out = append(out, MergeMetadata(group))
	}
	return out
}
