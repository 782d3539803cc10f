package merge

import (
	"fmt"
	"strings"
)

const (
	markerOurs   = "<<<<<<< "
	markerSep    = "======="
	markerTheirs = ">>>>>>> "
)

// Section is a run of lines from a conflict-marked file: either a clean run
// shared by both sides, or one conflict region with the two sides split out.
// Marker lines themselves belong to neither side.
type Section struct {
	Conflict bool

	// Clean sections.
	Lines []string

	// Conflict sections.
	Ours        []string
	Theirs      []string
	OursLabel   string
	TheirsLabel string

	// StartLine is the 1-based line of the section's first line (for a
	// conflict, the opening marker).
	StartLine int
}

// ParseConflictFile splits conflict-marked content into alternating clean
// and conflict sections in one scan. Content with no markers parses as a
// single clean section. Unterminated or out-of-order markers are an error:
// a truncated conflict region must never be silently passed through.
func ParseConflictFile(content string) ([]Section, error) {
	lines := strings.Split(content, "\n")
	// Split leaves one trailing empty element when content ends in a newline.
	trailingNewline := strings.HasSuffix(content, "\n")
	if trailingNewline {
		lines = lines[:len(lines)-1]
	}

	var sections []Section
	var clean Section
	flushClean := func() {
		if len(clean.Lines) > 0 {
			sections = append(sections, clean)
		}
		clean = Section{}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		if !strings.HasPrefix(line, markerOurs) {
			if len(clean.Lines) == 0 {
				clean.StartLine = i + 1
			}
			clean.Lines = append(clean.Lines, line)
			i++
			continue
		}

		flushClean()
		conflict := Section{
			Conflict:  true,
			OursLabel: strings.TrimPrefix(line, markerOurs),
			StartLine: i + 1,
		}
		i++

		for i < len(lines) && lines[i] != markerSep {
			if strings.HasPrefix(lines[i], markerOurs) || strings.HasPrefix(lines[i], markerTheirs) {
				return nil, fmt.Errorf("line %d: unexpected marker inside conflict region", i+1)
			}
			conflict.Ours = append(conflict.Ours, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("line %d: conflict region missing separator", conflict.StartLine)
		}
		i++ // separator

		for i < len(lines) && !strings.HasPrefix(lines[i], markerTheirs) {
			if strings.HasPrefix(lines[i], markerOurs) || lines[i] == markerSep {
				return nil, fmt.Errorf("line %d: unexpected marker inside conflict region", i+1)
			}
			conflict.Theirs = append(conflict.Theirs, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("line %d: conflict region missing closing marker", conflict.StartLine)
		}
		conflict.TheirsLabel = strings.TrimPrefix(lines[i], markerTheirs)
		i++

		sections = append(sections, conflict)
	}
	flushClean()

	if len(sections) == 0 {
		sections = append(sections, Section{StartLine: 1})
	}
	return sections, nil
}

// HasConflicts reports whether any section is a conflict region.
func HasConflicts(sections []Section) bool {
	for _, s := range sections {
		if s.Conflict {
			return true
		}
	}
	return false
}

// ResolveConflicts flattens sections back into plain content, picking one
// whole side for every conflict region.
func ResolveConflicts(sections []Section, preferOurs bool) string {
	var out []string
	for _, s := range sections {
		if !s.Conflict {
			out = append(out, s.Lines...)
			continue
		}
		if preferOurs {
			out = append(out, s.Ours...)
		} else {
			out = append(out, s.Theirs...)
		}
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
