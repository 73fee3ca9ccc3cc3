package catalog

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/picogrid/scenario-config/pkg/scenario"
)

// DefaultDirName is the conventional directory holding scenario documents
const DefaultDirName = "scenario_configs"

// Entry describes one discovered scenario document
type Entry struct {
	Path   string
	Format scenario.Format
	Config *scenario.ScenarioConfig // nil when Err is set
	Err    error
}

// OK reports whether the document loaded cleanly
func (e Entry) OK() bool { return e.Err == nil }

// Name returns the description when set, otherwise the scenario task reference
func (e Entry) Name() string {
	if e.Config == nil {
		return filepath.Base(e.Path)
	}
	if desc, ok := e.Config.Description(); ok && desc != "" {
		return desc
	}
	return e.Config.Scenario().Ref()
}

// IsScenarioFile reports whether path has a scenario document extension
func IsScenarioFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Discover loads every scenario document under root. A document that fails to
// load is returned with its error; only failures walking the tree abort.
func Discover(root string, loader *scenario.Loader) ([]Entry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &scenario.MissingResourceError{Source: root, Err: err}
	}
	if !info.IsDir() {
		return []Entry{load(root, loader)}, nil
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Hidden directories (.git and friends) are skipped
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if IsScenarioFile(path) {
			entries = append(entries, load(path, loader))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for scenarios: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func load(path string, loader *scenario.Loader) Entry {
	cfg, err := loader.LoadFile(path)
	return Entry{
		Path:   path,
		Format: scenario.FormatFromPath(path),
		Config: cfg,
		Err:    err,
	}
}

// FindScenarioDir walks up from start looking for a scenario_configs
// directory and returns start itself when none exists.
func FindScenarioDir(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, DefaultDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached the filesystem root
			return start, nil
		}
		dir = parent
	}
}
