// Package collision finds and resolves human-identifier collisions.
//
// A collision is one human identifier claimed by two different stable
// identities. It is routine when branches mint IDs independently, and never
// fatal. Resolution is deterministic: the earliest-created record keeps the
// contested identifier and every later claimant is renumbered by a pure
// function of (old ID, stable identity), so repeated runs converge.
package collision

import (
	"fmt"
	"sort"
	"time"

	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/idgen"
	"github.com/loomworks/loom/internal/types"
)

// Collision records one contested human identifier for review, carrying
// both sides' display content.
type Collision struct {
	ID     string
	Ours   *types.Entity
	Theirs *types.Entity
}

// Detect reports human-identifier collisions on both axes: incoming records
// against the existing set, and incoming records against each other.
// Same identifier with the same stable identity is a normal update, not a
// collision.
func Detect(existing, incoming []*types.Entity) []Collision {
	var collisions []Collision

	existingByID := make(map[string]*types.Entity, len(existing))
	for _, e := range existing {
		existingByID[e.ID] = e
	}
	for _, in := range incoming {
		if prior, ok := existingByID[in.ID]; ok && prior.UUID != in.UUID {
			collisions = append(collisions, Collision{ID: in.ID, Ours: prior, Theirs: in})
		}
	}

	seen := make(map[string]*types.Entity, len(incoming))
	for _, in := range incoming {
		if first, ok := seen[in.ID]; ok && first.UUID != in.UUID {
			collisions = append(collisions, Collision{ID: in.ID, Ours: first, Theirs: in})
			continue
		}
		seen[in.ID] = in
	}

	sort.Slice(collisions, func(i, j int) bool {
		if collisions[i].ID != collisions[j].ID {
			return collisions[i].ID < collisions[j].ID
		}
		return collisions[i].Theirs.UUID < collisions[j].Theirs.UUID
	})
	return collisions
}

// Resolution is the outcome of automatic renumbering.
type Resolution struct {
	Entities   []*types.Entity
	Log        []types.CollisionLogEntry
	Renumbered map[string]string // stable identity -> new human identifier
}

// Resolve merges existing and incoming into one consistent set.
//
// Records sharing a stable identity collapse to the copy with the later
// updated_at. Identifier groups larger than one are sorted by created_at,
// then stable identity (never by container iteration order) and every
// record after the first is renumbered and logged. A final pass suffixes
// any identifier that still appears twice (id, id.1, id.2, ...), guarding
// against renumber-output collisions between unrelated entities.
func Resolve(existing, incoming []*types.Entity) *Resolution {
	res := &Resolution{Renumbered: make(map[string]string)}

	// Collapse existing ∪ incoming by stable identity. On equal timestamps
	// the incoming copy wins: it is the batch being applied.
	byUUID := make(map[string]*types.Entity)
	var order []string
	keep := func(e *types.Entity, incomingSide bool) {
		prior, ok := byUUID[e.UUID]
		if !ok {
			byUUID[e.UUID] = e
			order = append(order, e.UUID)
			return
		}
		if e.UpdatedAt.After(prior.UpdatedAt) || (incomingSide && e.UpdatedAt.Equal(prior.UpdatedAt)) {
			byUUID[e.UUID] = e
		}
	}
	for _, e := range existing {
		keep(e, false)
	}
	for _, e := range incoming {
		keep(e, true)
	}

	merged := make([]*types.Entity, 0, len(order))
	for _, uuid := range order {
		merged = append(merged, byUUID[uuid])
	}
	types.SortStable(merged)

	// Group by human identifier; earliest creation keeps the contested ID.
	groups := make(map[string][]*types.Entity)
	for _, e := range merged {
		groups[e.ID] = append(groups[e.ID], e)
	}

	now := time.Now().UTC()
	resolved := make([]*types.Entity, 0, len(merged))
	for _, e := range merged {
		group := groups[e.ID]
		if len(group) <= 1 || group[0] == e {
			resolved = append(resolved, e)
			continue
		}
		renamed := e.Clone()
		renamed.ID = idgen.Renumber(e.ID, e.UUID)
		res.Renumbered[e.UUID] = renamed.ID
		res.Log = append(res.Log, types.CollisionLogEntry{
			OldID:     e.ID,
			NewID:     renamed.ID,
			UUID:      e.UUID,
			Reason:    fmt.Sprintf("identifier %s kept by earlier-created %s", e.ID, group[0].UUID),
			Timestamp: now,
		})
		debug.Logf("collision: %s -> %s (uuid %s)\n", e.ID, renamed.ID, e.UUID)
		resolved = append(resolved, renamed)
	}

	// Suffix pass: renumbering is hash-based, so two unrelated entities can
	// still land on one identifier. First occurrence in stable order keeps
	// it; later ones get numeric suffixes.
	types.SortStable(resolved)
	seen := make(map[string]int)
	for i, e := range resolved {
		count := seen[e.ID]
		seen[e.ID] = count + 1
		if count == 0 {
			continue
		}
		suffixed := e.Clone()
		suffixed.ID = fmt.Sprintf("%s.%d", e.ID, count)
		res.Renumbered[e.UUID] = suffixed.ID
		res.Log = append(res.Log, types.CollisionLogEntry{
			OldID:     e.ID,
			NewID:     suffixed.ID,
			UUID:      e.UUID,
			Reason:    "duplicate identifier after renumbering",
			Timestamp: now,
		})
		resolved[i] = suffixed
	}

	res.Entities = resolved
	return res
}
