// Package conf loads and persists application settings.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IndexSettings configures the content-addressed model index.
type IndexSettings struct {
	Path  string // SQLite database path
	Debug bool   // enable verbose GORM logging
}

// ModelsSettings configures the local model directory layout.
type ModelsSettings struct {
	Root        string   // root directory holding model category subdirectories
	Categories  []string // recognized top-level category directories
	Extensions  []string // file extensions treated as model files
	ScanWorkers int      // concurrent hashing workers, 0 = all CPUs
}

// CatalogSettings points at the external node-pack catalog.
type CatalogSettings struct {
	Path string
}

// RegistrySettings configures the local node registry.
type RegistrySettings struct {
	Path            string
	CacheTTLMinutes int
}

// ResolveSettings tunes the resolution engine.
type ResolveSettings struct {
	ConfidenceThreshold float64 // fuzzy matches at/above this are auto-accepted
	MaxCandidates       int     // candidates shown per ambiguous reference
}

// ManifestSettings points at the persisted workflow manifest.
type ManifestSettings struct {
	Path string
}

// LogSettings configures logging output.
type LogSettings struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Settings is the root configuration structure.
type Settings struct {
	Index    IndexSettings
	Models   ModelsSettings
	Catalog  CatalogSettings
	Registry RegistrySettings
	Resolve  ResolveSettings
	Manifest ManifestSettings
	Log      LogSettings
}

// Load reads the configuration from disk, creating a default config file
// on first run, and returns the resulting settings.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the config search paths in priority order.
func GetDefaultConfigPaths() ([]string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error resolving user config dir: %w", err)
	}
	return []string{
		filepath.Join(configDir, "flowdeps"),
		".",
	}, nil
}

// ValidateSettings checks settings for values the rest of the system cannot work with.
func ValidateSettings(s *Settings) error {
	if s.Resolve.ConfidenceThreshold < 0 || s.Resolve.ConfidenceThreshold > 1 {
		return fmt.Errorf("resolve.confidencethreshold must be in [0,1], got %v", s.Resolve.ConfidenceThreshold)
	}
	if s.Resolve.MaxCandidates <= 0 {
		return fmt.Errorf("resolve.maxcandidates must be positive, got %d", s.Resolve.MaxCandidates)
	}
	if s.Index.Path == "" {
		return fmt.Errorf("index.path must not be empty")
	}
	return nil
}
