package config

import (
	"os"
	"path/filepath"
)

// UserHomeDir is a variable to allow overriding in tests.
var UserHomeDir = os.UserHomeDir

// ResolveDataDir picks the data directory when data_dir is unset.
// Resolution order (first match wins):
// 1. Local ./.loomboard directory (if it exists)
// 2. $XDG_DATA_HOME/loomboard
// 3. ~/.loomboard
// 4. ./.loomboard
func ResolveDataDir() string {
	if info, err := os.Stat(configName); err == nil && info.IsDir() {
		return configName
	}

	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "loomboard")
	}

	home, err := UserHomeDir()
	if err != nil || home == "" {
		return configName
	}
	return filepath.Join(home, configName)
}

