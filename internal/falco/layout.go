package falco

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the fixed Falco file layout under a base installation directory.
// The binary, plugins and default rules are staged externally at packaging
// time; the two override directories are owned by the agent and created
// idempotently at construction.
type Layout struct {
	home string
}

// NewLayout creates a Layout rooted at baseDir. baseDir must already exist
// and be a directory; the override directories are created if missing.
func NewLayout(baseDir string) (*Layout, error) {
	info, err := os.Stat(baseDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("base directory %s does not exist or is not a directory", baseDir)
	}

	l := &Layout{home: baseDir}
	for _, dir := range []string{l.RulesDir(), l.ConfigsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return l, nil
}

// Home returns the base installation directory.
func (l *Layout) Home() string {
	return l.home
}

// Cmd returns the full path to the Falco binary.
func (l *Layout) Cmd() string {
	return filepath.Join(l.home, "usr/bin/falco")
}

// PluginsDir returns the full path to the Falco plugins directory.
func (l *Layout) PluginsDir() string {
	return filepath.Join(l.home, "usr/share/falco/plugins")
}

// DefaultRulesDir returns the full path to the shipped read-only rules.
func (l *Layout) DefaultRulesDir() string {
	return filepath.Join(l.home, "etc/falco/default_rules")
}

// RulesDir returns the rule override directory (sync destination).
func (l *Layout) RulesDir() string {
	return filepath.Join(l.home, "etc/falco/rules.d")
}

// ConfigsDir returns the config override directory (sync destination).
func (l *Layout) ConfigsDir() string {
	return filepath.Join(l.home, "etc/falco/config.overrides.d")
}

// ConfigFile returns the full path to the rendered main config file.
func (l *Layout) ConfigFile() string {
	return filepath.Join(l.home, "etc/falco/falco.yaml")
}

// ClearOverrides removes all previously synced content from both override
// directories, leaving the directories themselves in place. Used when no
// setting repository is configured.
func (l *Layout) ClearOverrides() error {
	for _, dir := range []string{l.RulesDir(), l.ConfigsDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to read %s: %w", dir, err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove %s: %w", filepath.Join(dir, entry.Name()), err)
			}
		}
	}
	return nil
}
