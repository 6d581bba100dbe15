package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tsera-dev/tsera/internal/engine"
)

// ConfigFile is the project configuration file name.
const ConfigFile = "tsera.yaml"

// Config is the on-disk project configuration.
type Config struct {
	// EntitiesDir holds entity manifests, relative to the project root.
	EntitiesDir string `yaml:"entitiesDir"`

	Watch struct {
		// DebounceMs is the watch quiet window in milliseconds.
		DebounceMs int `yaml:"debounceMs"`

		// Ignore lists extra path substrings the watcher skips.
		Ignore []string `yaml:"ignore"`
	} `yaml:"watch"`

	// Journal toggles cycle history recording. Defaults to on.
	Journal *bool `yaml:"journal"`
}

// LoadConfig reads tsera.yaml under root. A missing file yields the
// defaults; a malformed one is an error.
func LoadConfig(root string) (Config, error) {
	cfg := Config{EntitiesDir: "entities"}

	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", ConfigFile, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ConfigFile, err)
	}
	if cfg.EntitiesDir == "" {
		cfg.EntitiesDir = "entities"
	}
	return cfg, nil
}

// engineConfig translates CLI options plus project config into an
// engine configuration with absolute paths.
func engineConfig(opts *RootOptions) (engine.Config, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return engine.Config{}, err
	}

	cfg, err := LoadConfig(root)
	if err != nil {
		return engine.Config{}, err
	}

	journalOn := cfg.Journal == nil || *cfg.Journal

	return engine.Config{
		Root:          root,
		EntitiesDir:   filepath.Join(root, cfg.EntitiesDir),
		WatchDebounce: time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
		WatchIgnore:   cfg.Watch.Ignore,
		Journal:       journalOn,
	}, nil
}
