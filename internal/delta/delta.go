// Package delta classifies an incoming entity batch against an existing set.
//
// Matching is by stable identity only. A record whose human identifier
// changed but whose stable identity did not is the same logical entity,
// a rename surfaces as an update (or as unchanged, when the timestamp did
// not move), never as delete+create.
package delta

import (
	"github.com/loomworks/loom/internal/types"
)

// Changes holds the classification of one incoming batch.
// Updated entries carry the incoming record, so renames surface under the
// incoming human identifier. Deleted entries carry the existing record,
// since the incoming set no longer has one.
type Changes struct {
	Added     []*types.Entity
	Updated   []*types.Entity
	Deleted   []*types.Entity
	Unchanged []*types.Entity
}

// Detect classifies every record in incoming against existing.
//
// The updated_at comparison is equality, not ordering: any difference means
// the record changed somewhere and the incoming copy is authoritative for
// this classification. A same-identity record whose human identifier moved
// without an updated_at bump classifies as unchanged; callers needing
// rename-without-timestamp detection must compare human identifiers
// themselves.
func Detect(existing, incoming []*types.Entity) *Changes {
	existingByUUID := make(map[string]*types.Entity, len(existing))
	for _, e := range existing {
		existingByUUID[e.UUID] = e
	}
	incomingByUUID := make(map[string]*types.Entity, len(incoming))
	for _, e := range incoming {
		incomingByUUID[e.UUID] = e
	}

	changes := &Changes{}
	for _, in := range incoming {
		prior, ok := existingByUUID[in.UUID]
		if !ok {
			changes.Added = append(changes.Added, in)
			continue
		}
		if prior.UpdatedAt.Equal(in.UpdatedAt) {
			changes.Unchanged = append(changes.Unchanged, in)
		} else {
			changes.Updated = append(changes.Updated, in)
		}
	}
	for _, prior := range existing {
		if _, ok := incomingByUUID[prior.UUID]; !ok {
			changes.Deleted = append(changes.Deleted, prior)
		}
	}

	types.SortStable(changes.Added)
	types.SortStable(changes.Updated)
	types.SortStable(changes.Deleted)
	types.SortStable(changes.Unchanged)
	return changes
}
