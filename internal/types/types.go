// Package types defines the core data structures for the loom entity store.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind discriminates the closed set of entity variants.
type Kind string

// Entity kind constants
const (
	KindSpec  Kind = "spec"
	KindIssue Kind = "issue"
)

// IsValid checks if the kind value is valid
func (k Kind) IsValid() bool {
	return k == KindSpec || k == KindIssue
}

// DefaultPriority is the middle of the 0 (critical) to 4 range, assigned
// when neither the document header nor the caller says otherwise.
const DefaultPriority = 2

// Entity represents a spec or an issue tracked across the cache, the JSONL
// line log, and markdown documents.
//
// UUID is the stable identity: assigned once at creation, never reused, and
// the sole key for "is this the same logical entity". ID is the short human
// identifier; it may be reassigned by collision resolution and must never be
// used for equality.
type Entity struct {
	UUID     string `json:"uuid"`
	ID       string `json:"id"`
	Kind     Kind   `json:"kind"`
	Title    string `json:"title"`
	Body     string `json:"body,omitempty"`
	Priority int    `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	Status   Status `json:"status,omitempty"` // Issues only
	ParentID string `json:"parent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Relationships []*Relationship `json:"relationships,omitempty"`
	Tags          []string        `json:"tags,omitempty"`
	Feedback      []*Feedback     `json:"feedback,omitempty"` // Issues only

	// SourcePath is the document path that currently claims this entity.
	// Cache-internal, never exported to JSONL or document headers.
	SourcePath string `json:"-"`
}

// Validate checks if the entity has valid field values
func (e *Entity) Validate() error {
	if e.UUID == "" {
		return fmt.Errorf("uuid is required")
	}
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(e.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(e.Title))
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid kind: %s", e.Kind)
	}
	if e.Priority < 0 || e.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", e.Priority)
	}
	if e.Kind == KindIssue && !e.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	if e.Kind == KindSpec && e.Status != "" {
		return fmt.Errorf("specs do not carry a status (got %s)", e.Status)
	}
	if e.Kind == KindSpec && len(e.Feedback) > 0 {
		return fmt.Errorf("specs do not carry feedback")
	}
	for _, fb := range e.Feedback {
		if err := fb.Validate(); err != nil {
			return fmt.Errorf("feedback %s: %w", fb.ID, err)
		}
	}
	return nil
}

// SetDefaults applies default values for fields omitted during JSONL import.
// Call this after json.Unmarshal so smaller records with omitempty fields
// still decode into valid entities.
func (e *Entity) SetDefaults() {
	if e.Kind == "" {
		e.Kind = KindIssue
	}
	if e.Kind == KindIssue && e.Status == "" {
		e.Status = StatusOpen
	}
}

// Clone returns a deep copy. Mergers mutate their working copies, so shared
// slices must not leak between versions of the same entity.
func (e *Entity) Clone() *Entity {
	out := *e
	if e.Relationships != nil {
		out.Relationships = make([]*Relationship, len(e.Relationships))
		for i, rel := range e.Relationships {
			r := *rel
			if rel.Anchor != nil {
				a := *rel.Anchor
				r.Anchor = &a
			}
			out.Relationships[i] = &r
		}
	}
	if e.Tags != nil {
		out.Tags = append([]string(nil), e.Tags...)
	}
	if e.Feedback != nil {
		out.Feedback = make([]*Feedback, len(e.Feedback))
		for i, fb := range e.Feedback {
			f := *fb
			if fb.Anchor != nil {
				a := *fb.Anchor
				f.Anchor = &a
			}
			out.Feedback[i] = &f
		}
	}
	return &out
}

// HasTag reports whether the entity carries the given tag.
func (e *Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Status represents the lifecycle state of an issue
type Status string

// Issue status constants
const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusClosed     Status = "closed"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusClosed:
		return true
	}
	return false
}

// RelationKind categorizes a directed edge between entities
type RelationKind string

// Relationship kind constants
const (
	RelBlocks         RelationKind = "blocks"
	RelImplements     RelationKind = "implements"
	RelReferences     RelationKind = "references"
	RelDependsOn      RelationKind = "depends-on"
	RelDiscoveredFrom RelationKind = "discovered-from"
	RelRelated        RelationKind = "related"
	RelParentChild    RelationKind = "parent-child"
)

// IsWellKnown checks if the relation kind is a built-in constant.
// Custom kinds are still valid; this only distinguishes the fixed vocabulary.
func (k RelationKind) IsWellKnown() bool {
	switch k {
	case RelBlocks, RelImplements, RelReferences, RelDependsOn,
		RelDiscoveredFrom, RelRelated, RelParentChild:
		return true
	}
	return false
}

// IsValid accepts any non-empty kind up to 50 characters.
func (k RelationKind) IsValid() bool {
	return len(k) > 0 && len(k) <= 50
}

// Relationship is a directed, typed edge between two entities. Relationships
// are embedded on their source entity in the line log, never stored as
// independent top-level rows.
type Relationship struct {
	FromID   string       `json:"from" yaml:"from"`
	FromKind Kind         `json:"from_kind,omitempty" yaml:"from_kind,omitempty"`
	ToID     string       `json:"to" yaml:"to"`
	ToKind   Kind         `json:"to_kind,omitempty" yaml:"to_kind,omitempty"`
	Kind     RelationKind `json:"type" yaml:"type"`
	Anchor   *Anchor      `json:"anchor,omitempty" yaml:"anchor,omitempty"`
}

// Key returns the structural identity of the edge. Anchors are informational
// metadata and deliberately excluded: two copies of the same edge with stale
// and fresh anchors collapse to one on merge.
func (r *Relationship) Key() string {
	return fmt.Sprintf("%s|%s|%s", r.FromID, r.ToID, r.Kind)
}

// Anchor is a best-effort pointer into a document body, used to keep a
// relationship or feedback note comprehensible to a human after the body is
// edited. Staleness is tolerated and signaled, never fatal.
type Anchor struct {
	Heading      string `json:"heading,omitempty" yaml:"heading,omitempty"`
	HeadingLevel int    `json:"heading_level,omitempty" yaml:"heading_level,omitempty"`
	Line         int    `json:"line,omitempty" yaml:"line,omitempty"`
	Snippet      string `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	ContentHash  string `json:"content_hash,omitempty" yaml:"content_hash,omitempty"`
}

// FeedbackStatus is the lifecycle state of a feedback note
type FeedbackStatus string

// Feedback status constants
const (
	FeedbackOpen         FeedbackStatus = "open"
	FeedbackAcknowledged FeedbackStatus = "acknowledged"
	FeedbackResolved     FeedbackStatus = "resolved"
	FeedbackWontFix      FeedbackStatus = "wont_fix"
)

// IsValid checks if the feedback status value is valid
func (s FeedbackStatus) IsValid() bool {
	switch s {
	case FeedbackOpen, FeedbackAcknowledged, FeedbackResolved, FeedbackWontFix:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to next.
// The lifecycle is open -> acknowledged -> resolved/wont_fix; terminal states
// never transition.
func (s FeedbackStatus) CanTransitionTo(next FeedbackStatus) bool {
	switch s {
	case FeedbackOpen:
		return next == FeedbackAcknowledged || next == FeedbackResolved || next == FeedbackWontFix
	case FeedbackAcknowledged:
		return next == FeedbackResolved || next == FeedbackWontFix
	}
	return false
}

// Feedback is a note owned by an issue that annotates a target spec.
type Feedback struct {
	ID        string         `json:"id" yaml:"id"`
	Spec      string         `json:"spec" yaml:"spec"` // Human identifier of the target spec
	Kind      string         `json:"kind,omitempty" yaml:"kind,omitempty"`
	Text      string         `json:"text" yaml:"text"`
	Status    FeedbackStatus `json:"status" yaml:"status"`
	Anchor    *Anchor        `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Validate checks if the feedback note has valid field values
func (f *Feedback) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("feedback id is required")
	}
	if f.Spec == "" {
		return fmt.Errorf("target spec is required")
	}
	if !f.Status.IsValid() {
		return fmt.Errorf("invalid feedback status: %s", f.Status)
	}
	return nil
}

// CollisionLogEntry is an append-only audit record of one automatic
// renumbering decision. Entries are never mutated after being written.
type CollisionLogEntry struct {
	OldID     string    `json:"old_id"`
	NewID     string    `json:"new_id"`
	UUID      string    `json:"uuid"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NormalizeTags sorts and deduplicates a tag set in place-friendly fashion,
// returning the canonical slice. Tag order never carries meaning.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}
