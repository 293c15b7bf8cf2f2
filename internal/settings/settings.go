// Package settings persists ambient user preferences and the run cache.
//
// Both stores are plain values loaded from and saved to explicit
// directories; nothing in this package reads process-wide mutable state.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const configFileName = "config.toml"

// Settings holds the ambient preferences that seed a fresh editing
// session: the last used engine, scale and preamble.
type Settings struct {
	Engine       string  `toml:"engine"`
	Scale        float64 `toml:"scale"`
	Preamble     string  `toml:"preamble"`
	StrokeToPath bool    `toml:"stroke_to_path"`

	// Optional explicit executable paths overriding PATH lookup.
	Executables map[string]string `toml:"executables"`
}

// DefaultSettings are used when no config file exists yet.
func DefaultSettings() Settings {
	return Settings{Engine: "pdflatex", Scale: 1.0}
}

// ConfigDir resolves the per-user configuration directory.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "texsvg"), nil
}

// Load reads config.toml from dir. A missing file yields the defaults.
func Load(dir string) (Settings, error) {
	cfg := DefaultSettings()
	path := filepath.Join(dir, configFileName)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1.0
	}
	if cfg.Engine == "" {
		cfg.Engine = "pdflatex"
	}
	return cfg, nil
}

// Save writes config.toml to dir atomically.
func (s Settings) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	f, err := os.CreateTemp(dir, "tmp-config-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := toml.NewEncoder(f).Encode(s); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, configFileName))
}
