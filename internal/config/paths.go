package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".leechcore"

// Paths holds resolved filesystem paths for leechcore data.
type Paths struct {
	Base      string // ~/.leechcore
	Config    string // ~/.leechcore/config.yaml
	Logs      string // ~/.leechcore/logs
	Data      string // ~/.leechcore/data
	History   string // ~/.leechcore/data/history.db
	Downloads string // ~/.leechcore/downloads
}

// ResolvePaths computes all standard paths from the home directory.
// If LEECHCORE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("LEECHCORE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	data := filepath.Join(base, "data")
	return Paths{
		Base:      base,
		Config:    filepath.Join(base, "config.yaml"),
		Logs:      filepath.Join(base, "logs"),
		Data:      data,
		History:   filepath.Join(data, "history.db"),
		Downloads: filepath.Join(base, "downloads"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	dirs := []string{p.Base, p.Logs, p.Data, p.Downloads}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
