package docfile

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/loomworks/loom/internal/types"
)

// Ref is an inline bracketed reference found in a document body:
// [[target-id]], [[target-id|display text]], [[target-id]]{ kind },
// or any combination.
type Ref struct {
	Target  string
	Display string
	Kind    types.RelationKind
	Line    int // 1-based line number in the body
}

var refPattern = regexp.MustCompile(`\[\[([A-Za-z0-9._-]+)(?:\|([^\]|]+))?\]\](?:\{\s*([A-Za-z-]+)\s*\})?`)

// ExtractRefs scans a body for inline references. References without an
// explicit kind default to "references".
func ExtractRefs(body string) []Ref {
	var refs []Ref
	for i, line := range strings.Split(body, "\n") {
		for _, m := range refPattern.FindAllStringSubmatch(line, -1) {
			ref := Ref{
				Target:  m[1],
				Display: strings.TrimSpace(m[2]),
				Kind:    types.RelReferences,
				Line:    i + 1,
			}
			if m[3] != "" {
				ref.Kind = types.RelationKind(m[3])
			}
			refs = append(refs, ref)
		}
	}
	return refs
}

const snippetLimit = 80

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// ComputeAnchor builds a best-effort pointer to the given body line: the
// nearest enclosing heading, the line number, a short snippet, and a content
// hash of the line. Anchors are informational: a stale anchor signals that
// the body moved underneath it, nothing more.
func ComputeAnchor(body string, line int) *types.Anchor {
	lines := strings.Split(body, "\n")
	if line < 1 || line > len(lines) {
		return nil
	}

	anchor := &types.Anchor{Line: line}
	for i := line - 1; i >= 0; i-- {
		if m := headingPattern.FindStringSubmatch(lines[i]); m != nil {
			anchor.Heading = m[2]
			anchor.HeadingLevel = len(m[1])
			break
		}
	}

	content := strings.TrimSpace(lines[line-1])
	anchor.Snippet = truncate(content, snippetLimit)
	anchor.ContentHash = hashLine(content)
	return anchor
}

// AnchorStale reports whether the anchored line no longer carries the
// content the anchor was computed from.
func AnchorStale(anchor *types.Anchor, body string) bool {
	if anchor == nil || anchor.ContentHash == "" {
		return false
	}
	lines := strings.Split(body, "\n")
	if anchor.Line < 1 || anchor.Line > len(lines) {
		return true
	}
	return hashLine(strings.TrimSpace(lines[anchor.Line-1])) != anchor.ContentHash
}

func hashLine(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum[:6])
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so the snippet stays valid UTF-8.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
