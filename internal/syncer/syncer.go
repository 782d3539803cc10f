// Package syncer keeps markdown documents and the cache consistent.
//
// Direction matters: DocToCache treats the document as the edit surface and
// the cache as the record of truth for identity; CacheToDoc only ever
// regenerates the header block and never touches the body. In both
// directions the cache is the last writer, so a crash mid-sync leaves the
// document intact and the cache behind, which the next sync repairs.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"github.com/loomworks/loom/internal/configfile"
	"github.com/loomworks/loom/internal/debug"
	"github.com/loomworks/loom/internal/docfile"
	"github.com/loomworks/loom/internal/idgen"
	"github.com/loomworks/loom/internal/storage"
	"github.com/loomworks/loom/internal/types"
)

// SyncStatus classifies one document sync.
type SyncStatus string

// Sync outcomes.
const (
	StatusCreated SyncStatus = "created"
	StatusUpdated SyncStatus = "updated"
	StatusNoop    SyncStatus = "noop"
)

// Result reports one DocToCache pass.
type Result struct {
	Status   SyncStatus
	Entity   *types.Entity
	Warnings []string
}

// Syncer orchestrates document/cache reconciliation.
type Syncer struct {
	store storage.Store
	cfg   *configfile.Config

	// MintMissing controls documents with no id header: mint a fresh
	// identity when true, fail the document when false. Seeded from the
	// workspace auto_init setting.
	MintMissing bool

	now func() time.Time
}

// New builds a syncer over a store and workspace config.
func New(store storage.Store, cfg *configfile.Config) *Syncer {
	return &Syncer{
		store:       store,
		cfg:         cfg,
		MintMissing: cfg.ShouldAutoInit(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// DocToCache reconciles one document into the cache.
//
// Identity resolves path-first: the entity already claiming this path keeps
// both its stable identity and its human identifier, so an accidental edit
// to the id header is ignored with a warning instead of renaming the entity
// and dangling every reference to it. Failing that the header id is looked
// up; failing that a fresh identity is minted (or the document is rejected
// when minting is off).
func (s *Syncer) DocToCache(ctx context.Context, path string) (*Result, error) {
	content, err := os.ReadFile(path) // #nosec G304 -- path comes from workspace docs dir
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := docfile.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	res := &Result{}
	existing, err := s.resolveIdentity(ctx, path, doc, res)
	if err != nil {
		return nil, err
	}

	var next *types.Entity
	if existing != nil {
		next = existing.Clone()
	} else {
		next, err = s.mint(doc, path)
		if err != nil {
			return nil, err
		}
	}

	docfile.ApplyHeader(next, doc.Header)
	next.Body = doc.Body
	next.SourcePath = path
	next.Relationships = s.buildRelationships(ctx, next, existing, doc.Body)

	now := s.now()
	if next.CreatedAt.IsZero() {
		// The header round-trips created at second precision; minting finer
		// granularity would make every regenerated document look edited.
		next.CreatedAt = now.Truncate(time.Second)
	}

	switch {
	case existing == nil:
		next.UpdatedAt = now
		if err := s.store.Create(ctx, next); err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		res.Status = StatusCreated
	case contentEqual(existing, next):
		res.Status = StatusNoop
		if !reflect.DeepEqual(existing.Relationships, next.Relationships) ||
			existing.SourcePath != next.SourcePath {
			// Anchor drift or a path claim change: persist without bumping
			// updated_at, so pure line shifts never churn merges.
			next.UpdatedAt = existing.UpdatedAt
			if err := s.store.Update(ctx, next); err != nil {
				return nil, fmt.Errorf("updating %s: %w", path, err)
			}
		}
	default:
		next.UpdatedAt = now
		if err := s.store.Update(ctx, next); err != nil {
			return nil, fmt.Errorf("updating %s: %w", path, err)
		}
		res.Status = StatusUpdated
	}

	res.Entity = next
	return res, nil
}

// resolveIdentity finds the cache record this document belongs to, if any.
func (s *Syncer) resolveIdentity(ctx context.Context, path string, doc *docfile.Document, res *Result) (*types.Entity, error) {
	byPath, err := s.store.GetByPath(ctx, path)
	if err == nil {
		if doc.Header.ID != "" && doc.Header.ID != byPath.ID {
			warning := fmt.Sprintf("%s: header id %s disagrees with %s; keeping the cached identifier", path, doc.Header.ID, byPath.ID)
			debug.Warnf("%s\n", warning)
			res.Warnings = append(res.Warnings, warning)
		}
		return byPath, nil
	}
	if err != storage.ErrNotFound {
		return nil, fmt.Errorf("looking up %s by path: %w", path, err)
	}

	if doc.Header.ID == "" {
		return nil, nil
	}
	byID, err := s.store.GetByID(ctx, doc.Header.ID)
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", doc.Header.ID, err)
	}
	if byID.SourcePath != "" && byID.SourcePath != path {
		// Two documents claim one identifier. Proceed: this document takes
		// over the claim, the other keeps its stable identity next sync.
		warning := fmt.Sprintf("%s: id %s already claimed by %s; reassigning claim", path, doc.Header.ID, byID.SourcePath)
		debug.Warnf("%s\n", warning)
		res.Warnings = append(res.Warnings, warning)
	}
	return byID, nil
}

// mint builds a brand-new entity for a document with no cache record. A
// status header marks an issue; anything else is a spec.
func (s *Syncer) mint(doc *docfile.Document, path string) (*types.Entity, error) {
	if doc.Header.ID == "" && !s.MintMissing {
		return nil, fmt.Errorf("%s: missing id in front matter", path)
	}

	kind := types.KindSpec
	if doc.Header.Status != "" {
		kind = types.KindIssue
	}
	uuid := idgen.NewUUID()
	id := doc.Header.ID
	if id == "" {
		id = idgen.HumanID(s.cfg.Prefix(string(kind)), uuid, s.cfg.IDLength)
	}
	return &types.Entity{UUID: uuid, ID: id, Kind: kind, Priority: types.DefaultPriority}, nil
}

// buildRelationships derives the entity's edge set from the document body,
// preserving out-of-band edges. Inline references always carry anchors;
// edges added through the CLI or the line log do not, and that distinction
// is what keeps them alive when they never appear in the body. Reference
// targets resolve against the cache for their kind; a dangling target stays
// kindless until the next sync finds it.
func (s *Syncer) buildRelationships(ctx context.Context, next, existing *types.Entity, body string) []*types.Relationship {
	seen := make(map[string]bool)
	var rels []*types.Relationship
	for _, ref := range docfile.ExtractRefs(body) {
		rel := &types.Relationship{
			FromID:   next.ID,
			FromKind: next.Kind,
			ToID:     ref.Target,
			Kind:     ref.Kind,
			Anchor:   docfile.ComputeAnchor(body, ref.Line),
		}
		if target, err := s.store.GetByID(ctx, ref.Target); err == nil {
			rel.ToKind = target.Kind
		}
		if seen[rel.Key()] {
			continue
		}
		seen[rel.Key()] = true
		rels = append(rels, rel)
	}

	if existing != nil {
		for _, rel := range existing.Relationships {
			if rel.Anchor != nil {
				// Doc-derived: the body is the source of truth for these, so
				// an edge whose reference was removed disappears.
				continue
			}
			key := (&types.Relationship{FromID: next.ID, ToID: rel.ToID, Kind: rel.Kind}).Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			kept := *rel
			kept.FromID = next.ID
			rels = append(rels, &kept)
		}
	}

	sort.Slice(rels, func(i, j int) bool { return rels[i].Key() < rels[j].Key() })
	return rels
}

// contentEqual compares the user-meaningful fields of two entities,
// excluding relationship anchors, updated_at, and the path claim.
func contentEqual(a, b *types.Entity) bool {
	if a.Title != b.Title || a.Body != b.Body || a.Priority != b.Priority ||
		a.Status != b.Status || a.ParentID != b.ParentID || a.ID != b.ID ||
		!a.CreatedAt.Equal(b.CreatedAt) {
		return false
	}
	if !reflect.DeepEqual(types.NormalizeTags(a.Tags), types.NormalizeTags(b.Tags)) {
		return false
	}
	return relKeys(a) == relKeys(b)
}

func relKeys(e *types.Entity) string {
	keys := make([]string, len(e.Relationships))
	for i, rel := range e.Relationships {
		keys[i] = rel.Key()
	}
	sort.Strings(keys)
	out := ""
	for _, k := range keys {
		out += k + ";"
	}
	return out
}

// CacheToDoc regenerates the header of the entity's claimed document,
// passing the on-disk body through verbatim. Returns true when the file
// changed. A missing document is rebuilt whole from the cache record.
func (s *Syncer) CacheToDoc(ctx context.Context, entity *types.Entity) (bool, error) {
	if entity.SourcePath == "" {
		return false, fmt.Errorf("%s has no claimed document", entity.ID)
	}

	body := entity.Body
	var before []byte
	content, err := os.ReadFile(entity.SourcePath) // #nosec G304 -- path comes from the cache record
	switch {
	case err == nil:
		before = content
		doc, err := docfile.Parse(content)
		if err != nil {
			return false, fmt.Errorf("parsing %s: %w", entity.SourcePath, err)
		}
		body = doc.Body
	case os.IsNotExist(err):
	default:
		return false, fmt.Errorf("reading %s: %w", entity.SourcePath, err)
	}

	next, err := docfile.FromEntity(entity, body).Encode()
	if err != nil {
		return false, err
	}
	if before != nil && string(before) == string(next) {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(entity.SourcePath), 0o755); err != nil {
		return false, fmt.Errorf("creating docs dir: %w", err)
	}
	if err := writeFileAtomic(entity.SourcePath, next); err != nil {
		return false, err
	}
	return true, nil
}

// SyncAll walks the docs directory and reconciles every markdown file.
// Individual document failures are collected, not fatal to the pass.
func (s *Syncer) SyncAll(ctx context.Context, docsDir string) ([]*Result, []error) {
	var results []*Result
	var errs []error

	err := filepath.WalkDir(docsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}
		res, err := s.DocToCache(ctx, path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		results = append(results, res)
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("walking %s: %w", docsDir, err))
	}
	return results, errs
}

func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp doc: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp doc: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp doc: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing doc: %w", err)
	}
	return nil
}
