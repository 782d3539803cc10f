// Package configfile manages the workspace metadata file under .loom/.
package configfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WorkspaceDirName is the per-repository workspace directory.
const WorkspaceDirName = ".loom"

// ConfigFileName is the workspace metadata file inside the workspace dir.
const ConfigFileName = "metadata.json"

// Config is the persisted workspace configuration. Everything has a default:
// a freshly initialized workspace works with an empty file.
type Config struct {
	Database    string `json:"database,omitempty"`
	SpecsLog    string `json:"specs_log,omitempty"`
	IssuesLog   string `json:"issues_log,omitempty"`
	DocsDir     string `json:"docs_dir,omitempty"`
	SpecPrefix  string `json:"spec_prefix,omitempty"`
	IssuePrefix string `json:"issue_prefix,omitempty"`

	// IDLength is the base36 suffix length for minted human identifiers.
	IDLength int `json:"id_length,omitempty"`

	// ResolveCollisions disables automatic renumbering when false; imports
	// are then blocked while contested identifiers remain.
	ResolveCollisions *bool `json:"resolve_collisions,omitempty"`

	// AutoInit disables identity minting when false: a document with no id
	// header fails the sync instead of becoming a new entity.
	AutoInit *bool `json:"auto_init,omitempty"`
}

// DefaultConfig returns the configuration a new workspace starts from.
func DefaultConfig() *Config {
	return &Config{
		Database:    "loom.db",
		SpecsLog:    "specs.jsonl",
		IssuesLog:   "issues.jsonl",
		DocsDir:     "docs",
		SpecPrefix:  "spec",
		IssuePrefix: "issue",
		IDLength:    4,
	}
}

// ConfigPath returns the metadata file path for a workspace dir.
func ConfigPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, ConfigFileName)
}

// Load reads the workspace config. A missing file returns (nil, nil) so
// callers can distinguish "no workspace" from a broken one. Missing fields
// fall back to defaults.
func Load(workspaceDir string) (*Config, error) {
	data, err := os.ReadFile(ConfigPath(workspaceDir)) // #nosec G304 -- controlled path from workspace discovery
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config as indented JSON, the one file in the workspace a
// human is expected to edit by hand.
func (c *Config) Save(workspaceDir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(ConfigPath(workspaceDir), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Database == "" {
		c.Database = def.Database
	}
	if c.SpecsLog == "" {
		c.SpecsLog = def.SpecsLog
	}
	if c.IssuesLog == "" {
		c.IssuesLog = def.IssuesLog
	}
	if c.DocsDir == "" {
		c.DocsDir = def.DocsDir
	}
	if c.SpecPrefix == "" {
		c.SpecPrefix = def.SpecPrefix
	}
	if c.IssuePrefix == "" {
		c.IssuePrefix = def.IssuePrefix
	}
	if c.IDLength <= 0 {
		c.IDLength = def.IDLength
	}
}

// DatabasePath returns the cache database location.
func (c *Config) DatabasePath(workspaceDir string) string {
	return filepath.Join(workspaceDir, c.Database)
}

// SpecsLogPath returns the spec line-log location.
func (c *Config) SpecsLogPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, c.SpecsLog)
}

// IssuesLogPath returns the issue line-log location.
func (c *Config) IssuesLogPath(workspaceDir string) string {
	return filepath.Join(workspaceDir, c.IssuesLog)
}

// LogPaths returns both line-log locations.
func (c *Config) LogPaths(workspaceDir string) []string {
	return []string{c.SpecsLogPath(workspaceDir), c.IssuesLogPath(workspaceDir)}
}

// DocsPath returns the documents directory, rooted at the repository (the
// workspace dir's parent), not inside the workspace dir.
func (c *Config) DocsPath(workspaceDir string) string {
	return filepath.Join(filepath.Dir(workspaceDir), c.DocsDir)
}

// Prefix returns the identifier prefix for a kind name ("spec" or "issue").
func (c *Config) Prefix(kind string) string {
	if kind == "issue" {
		return c.IssuePrefix
	}
	return c.SpecPrefix
}

// ShouldResolveCollisions reports whether automatic renumbering is on.
// Defaults to true: collisions are routine and resolution is deterministic.
func (c *Config) ShouldResolveCollisions() bool {
	return c.ResolveCollisions == nil || *c.ResolveCollisions
}

// ShouldAutoInit reports whether documents without an id header mint a
// fresh identity. Defaults to true.
func (c *Config) ShouldAutoInit() bool {
	return c.AutoInit == nil || *c.AutoInit
}

// FindWorkspace walks up from startDir looking for a .loom directory, the
// same discovery rule git uses for .git.
func FindWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", startDir, err)
	}
	for {
		candidate := filepath.Join(dir, WorkspaceDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s workspace found in %s or any parent", WorkspaceDirName, startDir)
		}
		dir = parent
	}
}

// Init creates the workspace directory, the default config, and the docs
// directory. Initializing twice is an error.
func Init(repoDir string) (string, *Config, error) {
	workspaceDir := filepath.Join(repoDir, WorkspaceDirName)
	if _, err := os.Stat(ConfigPath(workspaceDir)); err == nil {
		return "", nil, fmt.Errorf("workspace already initialized at %s", workspaceDir)
	}
	if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating workspace dir: %w", err)
	}
	cfg := DefaultConfig()
	if err := cfg.Save(workspaceDir); err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(cfg.DocsPath(workspaceDir), 0o755); err != nil {
		return "", nil, fmt.Errorf("creating docs dir: %w", err)
	}
	return workspaceDir, cfg, nil
}
