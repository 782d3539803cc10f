package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/loomworks/loom/internal/configfile"
	"github.com/loomworks/loom/internal/storage/sqlite"
	"github.com/loomworks/loom/internal/syncer"
)

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleID      = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	styleDim     = lipgloss.NewStyle().Faint(true)
)

// workspace bundles everything an open command needs.
type workspace struct {
	Dir    string
	Config *configfile.Config
	Store  *sqlite.Store
	Syncer *syncer.Syncer
}

// openWorkspace discovers the workspace from --dir, loads its config, and
// opens the cache.
func openWorkspace(ctx context.Context) (*workspace, error) {
	dir, err := configfile.FindWorkspace(dirFlag)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'lm init' first)", err)
	}
	cfg, err := configfile.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, fmt.Errorf("workspace %s has no metadata.json (run 'lm init')", dir)
	}
	store, err := sqlite.New(ctx, cfg.DatabasePath(dir))
	if err != nil {
		return nil, err
	}
	return &workspace{
		Dir:    dir,
		Config: cfg,
		Store:  store,
		Syncer: syncer.New(store, cfg),
	}, nil
}

func (w *workspace) Close() {
	_ = w.Store.Close()
}
