// Package watch drives re-sync from filesystem events on the docs tree.
//
// The watcher is deliberately outside the sync engine: the engine stays a
// pure request/response pipeline and this package owns the messy parts,
// debouncing editor write bursts and following newly created directories.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loomworks/loom/internal/debug"
)

// DefaultDebounce batches the save-rename-chmod bursts editors emit into
// one sync pass.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-syncs the docs directory when markdown files change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(ctx context.Context) error
}

// New builds a watcher over dir. onChange runs after each debounced burst
// of markdown changes; its errors are logged and never stop the watch loop.
func New(dir string, debounce time.Duration, onChange func(ctx context.Context) error) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{dir: dir, debounce: debounce, onChange: onChange}
}

// Run watches until the context is canceled. The docs tree is watched
// recursively; directories created while running are added on the fly.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer fsw.Close()

	if err := addRecursive(fsw, w.dir); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// A new directory needs its own watch before anything inside
				// it can be seen.
				if err := addRecursive(fsw, event.Name); err == nil {
					debug.Logf("watch: following %s\n", event.Name)
				}
			}
			if !isMarkdown(event.Name) {
				continue
			}
			debug.Logf("watch: %s %s\n", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-fire:
			timer = nil
			fire = nil
			if err := w.onChange(ctx); err != nil {
				debug.Warnf("watch: sync failed: %v\n", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			debug.Warnf("watch: %v\n", err)
		}
	}
}

func isMarkdown(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return false
	}
	// Editors litter temp files; ignore hidden names.
	return !strings.HasPrefix(filepath.Base(path), ".")
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}
