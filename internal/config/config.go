package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level wdlsema.yaml configuration: the persisted form of
// the options a caller of pkg/wdlsema can otherwise only set through the
// Options struct passed to New.
type Config struct {
	// StrictMode promotes the unused-symbol warnings (UnusedImport,
	// UnusedInput, UnusedDeclaration, UnusedCall) to errors, for CI usage.
	// Deprecation warnings raised during expression checking
	// (DeprecatedObject, DeprecatedPlaceholderOption) stay warnings.
	StrictMode bool `yaml:"strict_mode,omitempty"`

	// FallbackVersion is used when a document's version header is missing
	// or unrecognized, instead of failing the document outright.
	FallbackVersion string `yaml:"fallback_version,omitempty"`

	// FetchConcurrency bounds how many documents the graph scheduler fetches
	// through the host's Options.Fetch callback at once.
	FetchConcurrency int `yaml:"fetch_concurrency,omitempty"`

	// Cache configures the optional on-disk incremental analysis cache.
	Cache CacheConfig `yaml:"cache,omitempty"`

	// Excludes lists glob patterns that the CLI matches against each
	// document path given on its command line (after filepath.Clean); a
	// matching path is dropped from the root set. Imported documents are not
	// filtered.
	Excludes []string `yaml:"excludes,omitempty"`
}

// CacheConfig configures internal/cache's sqlite-backed store.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// LoadConfig reads and parses a wdlsema.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses wdlsema.yaml content from bytes. path is used only for
// error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for wdlsema.yaml starting from dir and walking up
// through parent directories. It returns the empty string, with no error,
// if no config file is found anywhere above dir.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range []string{"wdlsema.yaml", "wdlsema.yml"} {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func (c *Config) validate(path string) error {
	if c.FallbackVersion != "" && versionIndex(c.FallbackVersion) < 0 {
		return fmt.Errorf("%s: fallback_version %q is not a supported WDL version", path, c.FallbackVersion)
	}
	if c.FetchConcurrency < 0 {
		return fmt.Errorf("%s: fetch_concurrency must not be negative", path)
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("%s: cache.path is required when cache.enabled is true", path)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.FallbackVersion == "" {
		c.FallbackVersion = DefaultVersion
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = DefaultFetchConcurrency
	}
}
