package collision

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/loomworks/loom/internal/types"
)

// LogFileName is the append-only collision audit log inside the workspace dir.
const LogFileName = "collisions.jsonl"

// AppendLog appends renumbering decisions to the workspace collision log.
// The log is append-only; entries are never rewritten.
func AppendLog(workspaceDir string, entries []types.CollisionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	path := filepath.Join(workspaceDir, LogFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- workspace-controlled path
	if err != nil {
		return fmt.Errorf("opening collision log: %w", err)
	}
	defer f.Close()

	for _, entry := range entries {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling collision entry: %w", err)
		}
		if _, err := f.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("writing collision log: %w", err)
		}
	}
	return nil
}

// ReadLog returns every entry in the workspace collision log, oldest first.
// A missing log is an empty history.
func ReadLog(workspaceDir string) ([]types.CollisionLogEntry, error) {
	path := filepath.Join(workspaceDir, LogFileName)
	f, err := os.Open(path) // #nosec G304 -- workspace-controlled path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening collision log: %w", err)
	}
	defer f.Close()

	var entries []types.CollisionLogEntry
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry types.CollisionLogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("parsing collision log line %d: %w", lineNum, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading collision log: %w", err)
	}
	return entries, nil
}
