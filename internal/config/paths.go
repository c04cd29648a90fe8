package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".relayline"

// Paths holds resolved filesystem paths for Relayline data.
type Paths struct {
	Base   string // ~/.relayline
	Config string // ~/.relayline/config.yaml
	Data   string // ~/.relayline/data
	Media  string // ~/.relayline/media
	Logs   string // ~/.relayline/logs
}

// ResolvePaths computes all standard paths from the home directory.
// If RELAYLINE_HOME is set, it overrides the default base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("RELAYLINE_HOME")
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
		Media:  filepath.Join(base, "media"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Media, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
