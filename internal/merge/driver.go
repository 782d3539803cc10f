package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/loomworks/loom/internal/collision"
	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/jsonl"
	"github.com/loomworks/loom/internal/types"
)

// MergeJSONLFiles is the git merge-driver entry point: three log files in,
// the merged log written over oursPath (git's %A convention). After the
// three-way merge a collision pass renumbers any human identifier the two
// branches minted independently; when workspaceDir is non-empty the
// renumbering decisions are appended to its collision log.
func MergeJSONLFiles(ctx context.Context, workspaceDir, basePath, oursPath, theirsPath string) (*Result, error) {
	base, err := jsonl.ReadFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("reading ancestor log: %w", err)
	}
	ours, err := jsonl.ReadFile(oursPath)
	if err != nil {
		return nil, fmt.Errorf("reading our log: %w", err)
	}
	theirs, err := jsonl.ReadFile(theirsPath)
	if err != nil {
		return nil, fmt.Errorf("reading their log: %w", err)
	}

	res := MergeThreeWay(ctx, base, ours, theirs)

	resolution := collision.Resolve(nil, res.Entities)
	res.Entities = resolution.Entities
	if len(resolution.Log) > 0 {
		debug.Logf("merge: renumbered %d colliding identifier(s)\n", len(resolution.Log))
		if workspaceDir != "" {
			if err := collision.AppendLog(workspaceDir, resolution.Log); err != nil {
				return nil, err
			}
		}
	}

	if err := jsonl.WriteFile(oursPath, res.Entities); err != nil {
		return nil, err
	}
	return res, nil
}

// ResolveConflictMarkers repairs a log file that git merged textually and
// left conflict-marked: both sides are reconstructed line-by-line, decoded,
// and re-merged per stable identity. A file with no markers is left
// untouched.
func ResolveConflictMarkers(workspaceDir, path string) (*Result, error) {
	raw, err := os.ReadFile(path) // #nosec G304 -- path comes from workspace config
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{Methods: map[string]Method{}}, nil
		}
		return nil, fmt.Errorf("reading log: %w", err)
	}

	sections, err := ParseConflictFile(string(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !HasConflicts(sections) {
		return &Result{Methods: map[string]Method{}}, nil
	}

	oursLines := ResolveConflicts(sections, true)
	theirsLines := ResolveConflicts(sections, false)

	ours, err := decodeLines(oursLines)
	if err != nil {
		return nil, fmt.Errorf("%s (our side): %w", path, err)
	}
	theirs, err := decodeLines(theirsLines)
	if err != nil {
		return nil, fmt.Errorf("%s (their side): %w", path, err)
	}

	// No ancestor survives a textual conflict, so this is a two-way merge:
	// union by stable identity, metadata-merging identities present on both
	// sides. Nothing can be classified as deleted without a base.
	res := &Result{Methods: make(map[string]Method)}
	theirsBy := indexByUUID(theirs)
	seen := make(map[string]bool)
	for _, o := range ours {
		seen[o.UUID] = true
		if t, ok := theirsBy[o.UUID]; ok {
			res.Entities = append(res.Entities, MergeMetadata([]*types.Entity{o, t}))
			res.Methods[o.UUID] = MethodMetadataFallback
			res.Stats.Merged++
			continue
		}
		res.Entities = append(res.Entities, o.Clone())
		res.Stats.CreatedOurs++
	}
	for _, t := range theirs {
		if seen[t.UUID] {
			continue
		}
		res.Entities = append(res.Entities, t.Clone())
		res.Stats.CreatedTheirs++
	}

	resolution := collision.Resolve(nil, res.Entities)
	res.Entities = resolution.Entities
	if len(resolution.Log) > 0 && workspaceDir != "" {
		if err := collision.AppendLog(workspaceDir, resolution.Log); err != nil {
			return nil, err
		}
	}

	if err := jsonl.WriteFile(path, res.Entities); err != nil {
		return nil, err
	}
	return res, nil
}

func decodeLines(content string) ([]*types.Entity, error) {
	var entities []*types.Entity
	for i, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entity types.Entity
		if err := json.Unmarshal([]byte(line), &entity); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", i+1, err)
		}
		entity.SetDefaults()
		entities = append(entities, &entity)
	}
	return entities, nil
}
