package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/loomworks/loom/internal/collision"
	"github.com/loomworks/loom/internal/delta"
	"github.com/loomworks/loom/internal/jsonl"
	"github.com/loomworks/loom/internal/merge"
	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

// ImportResult summarizes one line-log import.
type ImportResult struct {
	Created    int
	Updated    int
	Deleted    int
	Unchanged  int
	Collisions int
}

// CollisionsError blocks an import when automatic renumbering is disabled
// and the batch carries contested identifiers. Nothing is applied; the
// caller gets the full list for review.
type CollisionsError struct {
	Collisions []collision.Collision
}

func (e *CollisionsError) Error() string {
	seen := make(map[string]bool, len(e.Collisions))
	var ids []string
	for _, c := range e.Collisions {
		if !seen[c.ID] {
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}
	return fmt.Sprintf("import blocked by contested identifier(s) %s; enable resolve_collisions or renumber by hand",
		strings.Join(ids, ", "))
}

// Import reconciles the workspace line logs into the cache: collapse
// duplicate identities, detect collisions (renumbering when enabled,
// blocking the import when not), then apply the classified changes.
// Re-importing an unchanged log is a no-op.
func (s *Syncer) Import(ctx context.Context, workspaceDir string) (*ImportResult, error) {
	var incoming []*types.Entity
	for _, path := range s.cfg.LogPaths(workspaceDir) {
		entities, err := jsonl.ReadFile(path)
		if err != nil {
			return nil, err
		}
		incoming = append(incoming, entities...)
	}
	incoming = merge.CollapseDuplicates(incoming)

	existing, err := s.store.List(ctx, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}

	res := &ImportResult{}
	renumbered := map[string]string{}
	if collisions := collision.Detect(existing, incoming); len(collisions) > 0 {
		if !s.cfg.ShouldResolveCollisions() {
			return nil, &CollisionsError{Collisions: collisions}
		}
		resolution := collision.Resolve(existing, incoming)
		res.Collisions = len(resolution.Log)
		renumbered = resolution.Renumbered
		if err := collision.AppendLog(workspaceDir, resolution.Log); err != nil {
			return nil, err
		}
		// Resolution folds existing into its output. Keep the identities
		// the logs carried plus any cache record resolution renumbered,
		// so an entity absent from the logs still classifies as deleted
		// below while renumbering always lands.
		inBatch := make(map[string]bool, len(incoming))
		for _, e := range incoming {
			inBatch[e.UUID] = true
		}
		var resolved []*types.Entity
		for _, e := range resolution.Entities {
			if _, renumbered := resolution.Renumbered[e.UUID]; inBatch[e.UUID] || renumbered {
				resolved = append(resolved, e)
			}
		}
		incoming = resolved
	}

	changes := delta.Detect(existing, incoming)
	for _, e := range changes.Added {
		if err := s.store.Create(ctx, e); err != nil {
			return nil, fmt.Errorf("importing %s: %w", e.ID, err)
		}
		res.Created++
	}
	for _, e := range changes.Updated {
		// A cache record carries the path claim; imports never do.
		if prior, err := s.store.Get(ctx, e.UUID); err == nil {
			e = e.Clone()
			e.SourcePath = prior.SourcePath
		}
		if err := s.store.Update(ctx, e); err != nil {
			return nil, fmt.Errorf("importing %s: %w", e.ID, err)
		}
		res.Updated++
	}
	for _, e := range changes.Deleted {
		if err := s.store.Delete(ctx, e.UUID); err != nil {
			return nil, fmt.Errorf("removing %s: %w", e.ID, err)
		}
		res.Deleted++
	}
	for _, e := range changes.Unchanged {
		// A renumbering with no content change classifies as unchanged; the
		// new identifier still has to land in the cache.
		newID, ok := renumbered[e.UUID]
		if !ok {
			res.Unchanged++
			continue
		}
		prior, err := s.store.Get(ctx, e.UUID)
		if err != nil {
			return nil, fmt.Errorf("renumbering %s: %w", e.ID, err)
		}
		if prior.ID == newID {
			res.Unchanged++
			continue
		}
		prior.ID = newID
		if err := s.store.Update(ctx, prior); err != nil {
			return nil, fmt.Errorf("renumbering %s: %w", newID, err)
		}
		res.Updated++
	}
	return res, nil
}

// Export writes the cache out to the workspace line logs, one file per
// kind, in stable order. Re-exporting an unchanged cache is byte-identical.
func (s *Syncer) Export(ctx context.Context, workspaceDir string) error {
	specs, err := s.store.List(ctx, storage.Filter{Kind: types.KindSpec})
	if err != nil {
		return fmt.Errorf("listing specs: %w", err)
	}
	if err := jsonl.WriteFile(s.cfg.SpecsLogPath(workspaceDir), specs); err != nil {
		return err
	}

	issues, err := s.store.List(ctx, storage.Filter{Kind: types.KindIssue})
	if err != nil {
		return fmt.Errorf("listing issues: %w", err)
	}
	return jsonl.WriteFile(s.cfg.IssuesLogPath(workspaceDir), issues)
}
