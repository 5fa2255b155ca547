package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/runstash/runstash.yaml → ~/.config/runstash/runstash.yaml → ./runstash.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "runstash", "runstash.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "runstash", "runstash.yaml"))
	}

	candidates = append(candidates, "runstash.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/runstash if set, otherwise ~/.local/share/runstash.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "runstash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "runstash")
}
