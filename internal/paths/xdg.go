package paths

import (
	"os"
	"path/filepath"
)

func homeDir() string {
	if h := os.Getenv("HOME"); h != "" {
		return h
	}
	h, _ := os.UserHomeDir()
	return h
}

func xdgDir(envVar, fallbackSuffix string) string {
	if v := os.Getenv(envVar); v != "" {
		return filepath.Join(v, "ubridge")
	}
	return filepath.Join(homeDir(), fallbackSuffix, "ubridge")
}

// ConfigDir returns the ubridge config directory ($XDG_CONFIG_HOME/ubridge).
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the ubridge state directory ($XDG_STATE_HOME/ubridge).
func StateDir() string {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// ConfigFile returns the path to config.toml.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// InstanceIndexDir returns the directory where running editor instances
// drop their index files for discovery.
func InstanceIndexDir() string {
	return filepath.Join(StateDir(), "instances")
}

// EnsureDir creates a directory and parents if needed.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0700)
}
