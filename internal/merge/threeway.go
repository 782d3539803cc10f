package merge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/docfile"
	"github.com/loomworks/loom/internal/types"
)

// Method records how one entity's body was reconciled.
type Method string

// Reconciliation methods, per entity.
const (
	// MethodStructural means the body went through a line-level three-way
	// merge, with any residual conflict regions resolved side-by-freshness.
	MethodStructural Method = "structural"

	// MethodMetadataFallback means the structural path failed or was not
	// applicable and the metadata merger's whole-body pick stands.
	MethodMetadataFallback Method = "metadata-fallback"
)

// Stats summarizes one three-way merge for reporting. Fallbacks are counted,
// never surfaced as errors: a merge driver that fails the merge on a bad
// body would block the commit it is supposed to unblock.
type Stats struct {
	Merged              int
	CreatedOurs         int
	CreatedTheirs       int
	EditVsDeleteKept    int
	DeletedBoth         int
	StructuralConflicts int
	Fallbacks           int
}

// Result is the outcome of a three-way merge.
type Result struct {
	Entities []*types.Entity
	Methods  map[string]Method // stable identity -> method, merged entities only
	Stats    Stats
}

// MergeThreeWay reconciles two divergent descendants of a common ancestor.
//
// Classification is by stable identity. Present on both sides merges;
// present on one side with no ancestor is a concurrent creation and is
// kept; present in the ancestor and one side survives regardless of
// modification, because a deletion must never destroy a record someone may
// still hold edits to; absent from both sides drops. Output is in stable
// order and repeated runs converge.
func MergeThreeWay(ctx context.Context, base, ours, theirs []*types.Entity) *Result {
	res := &Result{Methods: make(map[string]Method)}

	baseBy := indexByUUID(base)
	oursBy := indexByUUID(ours)
	theirsBy := indexByUUID(theirs)

	seen := make(map[string]bool)
	var uuids []string
	note := func(list []*types.Entity) {
		for _, e := range list {
			if !seen[e.UUID] {
				seen[e.UUID] = true
				uuids = append(uuids, e.UUID)
			}
		}
	}
	note(ours)
	note(theirs)
	note(base)

	for _, uuid := range uuids {
		b, inBase := baseBy[uuid]
		o, inOurs := oursBy[uuid]
		t, inTheirs := theirsBy[uuid]

		switch {
		case inOurs && inTheirs:
			merged, method, conflicts := mergeEntity(ctx, b, o, t)
			res.Entities = append(res.Entities, merged)
			res.Methods[uuid] = method
			res.Stats.Merged++
			res.Stats.StructuralConflicts += conflicts
			if method == MethodMetadataFallback {
				res.Stats.Fallbacks++
			}
		case inOurs && !inBase:
			res.Entities = append(res.Entities, o.Clone())
			res.Stats.CreatedOurs++
		case inTheirs && !inBase:
			res.Entities = append(res.Entities, t.Clone())
			res.Stats.CreatedTheirs++
		case inOurs:
			res.Entities = append(res.Entities, o.Clone())
			res.Stats.EditVsDeleteKept++
		case inTheirs:
			res.Entities = append(res.Entities, t.Clone())
			res.Stats.EditVsDeleteKept++
		default:
			res.Stats.DeletedBoth++
		}
	}

	types.SortStable(res.Entities)
	return res
}

func indexByUUID(entities []*types.Entity) map[string]*types.Entity {
	out := make(map[string]*types.Entity, len(entities))
	for _, e := range entities {
		out[e.UUID] = e
	}
	return out
}

// mergeEntity reconciles one entity present on both sides. Metadata merges
// first; the same merged header is then applied to all three versions so the
// structural pass only ever sees body differences. Any structural failure
// falls back to the metadata result.
func mergeEntity(ctx context.Context, base, ours, theirs *types.Entity) (*types.Entity, Method, int) {
	merged := MergeMetadata([]*types.Entity{ours, theirs})

	if base == nil {
		// Concurrent creation with no ancestor: nothing to diff against.
		return merged, MethodMetadataFallback, 0
	}
	if ours.Body == theirs.Body {
		return merged, MethodStructural, 0
	}

	body, conflicts, err := mergeBodies(ctx, merged, base, ours, theirs)
	if err != nil {
		debug.Logf("merge: %s fell back to metadata merge: %v\n", merged.ID, err)
		return merged, MethodMetadataFallback, 0
	}
	merged.Body = body
	return merged, MethodStructural, conflicts
}

// mergeBodies runs the three bodies through the external line merger, with
// the already-merged header applied uniformly so header churn never shows up
// as a textual conflict. Residual conflict regions resolve toward the side
// with the later updated_at.
func mergeBodies(ctx context.Context, merged, base, ours, theirs *types.Entity) (string, int, error) {
	render := func(body string) ([]byte, error) {
		return docfile.FromEntity(merged, body).Encode()
	}

	baseText, err := render(base.Body)
	if err != nil {
		return "", 0, err
	}
	oursText, err := render(ours.Body)
	if err != nil {
		return "", 0, err
	}
	theirsText, err := render(theirs.Body)
	if err != nil {
		return "", 0, err
	}

	out, conflicted, err := gitMergeFile(ctx, baseText, oursText, theirsText)
	if err != nil {
		return "", 0, err
	}

	text := string(out)
	conflicts := 0
	if conflicted {
		sections, err := ParseConflictFile(text)
		if err != nil {
			return "", 0, err
		}
		for _, s := range sections {
			if s.Conflict {
				conflicts++
			}
		}
		preferOurs := !theirs.UpdatedAt.After(ours.UpdatedAt)
		text = ResolveConflicts(sections, preferOurs)
	}

	doc, err := docfile.Parse([]byte(text))
	if err != nil {
		return "", 0, err
	}
	return doc.Body, conflicts, nil
}

// gitMergeFile shells out to `git merge-file --stdout`. Exit status 0 is a
// clean merge; a positive status is the number of conflict regions, with the
// marked-up result still on stdout; anything else is a real failure.
func gitMergeFile(ctx context.Context, base, ours, theirs []byte) ([]byte, bool, error) {
	dir, err := os.MkdirTemp("", "loom-merge-")
	if err != nil {
		return nil, false, fmt.Errorf("creating merge workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	paths := map[string][]byte{"base": base, "ours": ours, "theirs": theirs}
	for name, content := range paths {
		if err := os.WriteFile(filepath.Join(dir, name), content, 0o600); err != nil {
			return nil, false, fmt.Errorf("writing merge input %s: %w", name, err)
		}
	}

	cmd := exec.CommandContext(ctx, "git", "merge-file", "--stdout",
		"-L", "ours", "-L", "base", "-L", "theirs",
		filepath.Join(dir, "ours"), filepath.Join(dir, "base"), filepath.Join(dir, "theirs"))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err == nil {
		return stdout.Bytes(), false, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return stdout.Bytes(), true, nil
	}
	return nil, false, fmt.Errorf("git merge-file: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
}
