// Package docfile converts between entities and human-editable markdown
// documents with YAML front matter.
//
// The body below the front matter belongs to humans and agents: every code
// path here treats it as an opaque byte sequence and passes it through
// verbatim. Only the header block is ever regenerated.
package docfile

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/loom/internal/types"
)

const delimiter = "---"

// Header is the structured front matter block. Only user-meaningful fields
// appear here; internal or derived fields (storage path, computed kind,
// last-modified timestamp, audit actors) are deliberately excluded from
// regeneration.
type Header struct {
	ID       string    `yaml:"id,omitempty"`
	Title    string    `yaml:"title,omitempty"`
	Status   string    `yaml:"status,omitempty"`
	Priority *int      `yaml:"priority,omitempty"`
	Tags     []string  `yaml:"tags,omitempty"`
	Parent   string    `yaml:"parent,omitempty"`
	Relations []RelStub `yaml:"relations,omitempty"`
	Created  string    `yaml:"created,omitempty"`

	// Extra preserves header keys this tool does not understand, so a
	// regeneration pass never destroys fields a user added by hand.
	Extra map[string]any `yaml:"-"`
}

// RelStub is the header representation of a relationship edge.
type RelStub struct {
	To   string `yaml:"to"`
	Type string `yaml:"type"`
}

// Document is a parsed markdown file: header plus verbatim body.
type Document struct {
	Header Header
	Body   string
}

// knownKeys are the header fields owned by this codec; anything else a
// parse encounters lands in Header.Extra.
var knownKeys = map[string]bool{
	"id": true, "title": true, "status": true, "priority": true,
	"tags": true, "parent": true, "relations": true, "created": true,
}

// Parse splits a document into front matter and body. A file without a
// front matter block parses as an empty header with the whole content as
// body; that is how brand-new documents arrive.
func Parse(content []byte) (*Document, error) {
	text := string(content)
	if !strings.HasPrefix(text, delimiter+"\n") && text != delimiter {
		return &Document{Body: text}, nil
	}

	rest := text[len(delimiter)+1:]
	var headerText, body string
	if end := strings.Index(rest, "\n"+delimiter+"\n"); end >= 0 {
		headerText = rest[:end+1]
		body = rest[end+1+len(delimiter)+1:]
	} else if strings.HasSuffix(rest, "\n"+delimiter) {
		headerText = rest[:len(rest)-len(delimiter)]
		body = ""
	} else {
		return nil, fmt.Errorf("unterminated front matter block")
	}

	var doc Document
	if err := yaml.Unmarshal([]byte(headerText), &doc.Header); err != nil {
		return nil, fmt.Errorf("parsing front matter: %w", err)
	}

	// Second pass for unknown keys: unmarshal into a generic map and keep
	// whatever the typed header did not claim.
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(headerText), &raw); err != nil {
		return nil, fmt.Errorf("parsing front matter: %w", err)
	}
	for key, value := range raw {
		if !knownKeys[key] {
			if doc.Header.Extra == nil {
				doc.Header.Extra = make(map[string]any)
			}
			doc.Header.Extra[key] = value
		}
	}

	doc.Body = body
	return &doc, nil
}

// Encode serializes the document. Field order is fixed and extra keys are
// sorted, so re-encoding an unchanged document is byte-identical.
func (d *Document) Encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	headerYAML, err := yaml.Marshal(&d.Header)
	if err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	buf.Write(headerYAML)

	if len(d.Header.Extra) > 0 {
		keys := make([]string, 0, len(d.Header.Extra))
		for k := range d.Header.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			extraYAML, err := yaml.Marshal(map[string]any{k: d.Header.Extra[k]})
			if err != nil {
				return nil, fmt.Errorf("encoding front matter key %q: %w", k, err)
			}
			buf.Write(extraYAML)
		}
	}

	buf.WriteString(delimiter + "\n")
	buf.WriteString(d.Body)
	return buf.Bytes(), nil
}

// FromEntity builds a document header from a cache record, preserving the
// supplied body verbatim.
func FromEntity(entity *types.Entity, body string) *Document {
	header := Header{
		ID:     entity.ID,
		Title:  entity.Title,
		Parent: entity.ParentID,
		Tags:   types.NormalizeTags(entity.Tags),
	}
	if entity.Kind == types.KindIssue {
		header.Status = string(entity.Status)
	}
	p := entity.Priority
	header.Priority = &p
	if !entity.CreatedAt.IsZero() {
		header.Created = entity.CreatedAt.UTC().Format(time.RFC3339)
	}

	rels := make([]RelStub, 0, len(entity.Relationships))
	for _, rel := range entity.Relationships {
		rels = append(rels, RelStub{To: rel.ToID, Type: string(rel.Kind)})
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].To != rels[j].To {
			return rels[i].To < rels[j].To
		}
		return rels[i].Type < rels[j].Type
	})
	if len(rels) > 0 {
		header.Relations = rels
	}

	return &Document{Header: header, Body: body}
}

// ApplyHeader copies user-meaningful header fields onto an entity.
// Identity fields are handled by the caller: the sync orchestrator decides
// which identity wins before header content is applied.
func ApplyHeader(entity *types.Entity, header Header) {
	if header.Title != "" {
		entity.Title = header.Title
	}
	if entity.Kind == types.KindIssue && header.Status != "" {
		entity.Status = types.Status(header.Status)
	}
	if header.Priority != nil {
		entity.Priority = *header.Priority
	}
	if header.Parent != "" {
		entity.ParentID = header.Parent
	}
	entity.Tags = types.NormalizeTags(header.Tags)
	if header.Created != "" {
		if t, err := time.Parse(time.RFC3339, header.Created); err == nil {
			entity.CreatedAt = t
		}
	}
}
