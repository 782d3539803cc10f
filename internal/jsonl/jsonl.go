// Package jsonl reads and writes the line-oriented entity log.
//
// One JSON record per line, one file per entity kind. Each record is the
// full entity with embedded relationship stubs, tags, and (for issues)
// feedback; there are no partial-record updates.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/loomworks/loom/internal/types"
)

// ConflictMarkerError reports raw git conflict markers found in a log file.
// Detection happens on raw bytes before JSON decoding so entity content
// containing marker-like strings never produces a false positive.
type ConflictMarkerError struct {
	Path string
	Line int
}

func (e *ConflictMarkerError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("git conflict markers detected at line %d; resolve with 'lm merge' or git checkout --ours/--theirs", e.Line)
	}
	return fmt.Sprintf("git conflict markers detected in %s at line %d; resolve with 'lm merge' or git checkout --ours/--theirs", e.Path, e.Line)
}

// hasConflictMarker matches the three marker line shapes git emits.
func hasConflictMarker(line []byte) bool {
	trimmed := bytes.TrimSpace(line)
	return bytes.HasPrefix(trimmed, []byte("<<<<<<< ")) ||
		bytes.Equal(trimmed, []byte("=======")) ||
		bytes.HasPrefix(trimmed, []byte(">>>>>>> "))
}

// Read decodes entities from a JSONL stream. Blank lines are skipped;
// omitted optional fields receive defaults.
func Read(r io.Reader) ([]*types.Entity, error) {
	var entities []*types.Entity
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if hasConflictMarker(line) {
			return nil, &ConflictMarkerError{Line: lineNum}
		}

		var entity types.Entity
		if err := json.Unmarshal(line, &entity); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		entity.SetDefaults()
		entities = append(entities, &entity)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	return entities, nil
}

// ReadFile reads a log file. A missing file yields an empty set: a branch
// that never exported a kind has an empty log, not an error.
func ReadFile(path string) ([]*types.Entity, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from workspace config
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	entities, err := Read(f)
	if err != nil {
		var cme *ConflictMarkerError
		if errors.As(err, &cme) {
			cme.Path = path
			return nil, cme
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entities, nil
}

// Write encodes entities one record per line in stable order. Invoking it
// twice on the same set produces byte-identical output.
func Write(w io.Writer, entities []*types.Entity) error {
	sorted := make([]*types.Entity, len(entities))
	copy(sorted, entities)
	types.SortStable(sorted)

	for _, entity := range sorted {
		line, err := json.Marshal(entity)
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", entity.ID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("writing %s: %w", entity.ID, err)
		}
	}
	return nil
}

// WriteFile writes the log atomically: full content to a temp file in the
// same directory, then rename. A crash mid-export leaves the old log intact.
func WriteFile(path string, entities []*types.Entity) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp log: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Write(tmp, entities); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp log: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing log: %w", err)
	}
	return nil
}
