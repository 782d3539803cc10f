package types

import (
	"cmp"
	"slices"
)

// SortStable orders entities by creation time, then human identifier.
// Every persisted output path (JSONL export, merge results) uses this order
// so re-running an operation on identical input is a byte-identical no-op.
func SortStable(entities []*Entity) {
	slices.SortFunc(entities, func(a, b *Entity) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.UUID, b.UUID)
	})
}
