package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".helix"

// Paths are the on-disk locations helix reads and writes.
type Paths struct {
	Base   string // ~/.helix
	Config string // ~/.helix/config.yaml
	Data   string // ~/.helix/data
}

// ResolvePaths roots every path at $HELIX_HOME, or ~/.helix when unset.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("HELIX_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
	}, nil
}

// DBPath returns the SQLite database location, honoring an explicit
// store path from the config.
func (p Paths) DBPath(cfg StoreConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	return filepath.Join(p.Data, "helix.db")
}
