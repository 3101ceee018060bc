// Package config loads user settings for the resolution engine. settings follow
// a fallback chain: local project config, then the global config directory, then
// embedded defaults — local wins. the per-request strategy input is assembled by
// the caller from these settings plus a live key re-check.
package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults
var defaultsFS embed.FS

// file and directory names for the fallback chain.
const (
	globalDirName  = "resolve"     // under os.UserConfigDir()
	localDirName   = ".resolve"    // under the working directory
	configFileName = "config"      // ini-style settings
	catalogTmpl    = "catalog.yml" // commented catalog override template
)

// Config is the fully loaded user configuration.
type Config struct {
	Values

	GlobalDir         string // global config directory (created on first run)
	LocalDir          string // local .resolve directory, may not exist
	LocalCatalogPath  string // local catalog override, "" when absent
	GlobalCatalogPath string // global catalog override, "" when absent
}

// Load reads configuration using the default directory layout. configDir
// overrides the global directory when non-empty (tests use this).
func Load(configDir string) (*Config, error) {
	globalDir := configDir
	if globalDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve user config dir: %w", err)
		}
		globalDir = filepath.Join(base, globalDirName)
	}

	installer := newDefaultsInstaller(defaultsFS)
	if err := installer.Install(globalDir); err != nil {
		return nil, fmt.Errorf("install defaults: %w", err)
	}

	localDir := localDirName
	localConfig := filepath.Join(localDir, configFileName)
	globalConfig := filepath.Join(globalDir, configFileName)

	loader := newValuesLoader(defaultsFS)
	values, err := loader.Load(localConfig, globalConfig)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}

	cfg := &Config{
		Values:    values,
		GlobalDir: globalDir,
		LocalDir:  localDir,
	}
	cfg.LocalCatalogPath = existingPath(filepath.Join(localDir, catalogTmpl))
	cfg.GlobalCatalogPath = existingPath(filepath.Join(globalDir, catalogTmpl))

	return cfg, nil
}

// existingPath returns the path when the file exists, "" otherwise.
func existingPath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// stripComments removes comment lines (starting with #) from content.
func stripComments(content string) string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
