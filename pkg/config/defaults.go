package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

// defaultsInstaller installs embedded default files on first run.
type defaultsInstaller struct {
	embedFS embed.FS
}

// newDefaultsInstaller creates a new defaultsInstaller with the given embedded filesystem.
func newDefaultsInstaller(embedFS embed.FS) *defaultsInstaller {
	return &defaultsInstaller{embedFS: embedFS}
}

// Install creates the config directory and installs default files if they don't
// exist. existing files are never overwritten: both installed defaults are
// commented templates the user is expected to edit.
func (d *defaultsInstaller) Install(configDir string) error {
	// create config directory (0700 - user only, it may hold key patterns)
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	for _, name := range []string{configFileName, catalogTmpl} {
		destPath := filepath.Join(configDir, name)
		_, statErr := os.Stat(destPath)
		if statErr != nil && !os.IsNotExist(statErr) {
			return fmt.Errorf("check %s: %w", name, statErr)
		}
		if statErr == nil {
			continue
		}

		data, err := d.embedFS.ReadFile("defaults/" + name)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", name, err)
		}
		if err := os.WriteFile(destPath, data, 0o600); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}

	return nil
}
