// Package config loads the YAML run configuration. Values may reference
// environment variables with ${VAR} or ${VAR:-default} so credentials stay
// out of the file; a reference to an unset variable without a default is a
// configuration error.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBatchSize    = 100
	DefaultRetryCeiling = 3
	DefaultTimeout      = 30 * time.Second
	DefaultMappingDB    = "chartsync.db"
)

// Config is the full run configuration.
type Config struct {
	Remote  RemoteConfig            `yaml:"remote"`
	Sync    SyncConfig              `yaml:"sync"`
	Sources map[string]SourceConfig `yaml:"sources"`
}

// RemoteConfig configures the remote API endpoint.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryCeiling   int    `yaml:"retry_ceiling"`
}

// Timeout returns the per-request timeout.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// SyncConfig configures run behavior.
type SyncConfig struct {
	MappingDB string `yaml:"mapping_db"`
	SpecsDir  string `yaml:"specs_dir"`
	BatchSize int    `yaml:"batch_size"`
	DryRun    bool   `yaml:"dry_run"`

	// AbortOnFirstError stops the run at the first failed record. Off by
	// default: one record's failure never aborts the batch.
	AbortOnFirstError bool `yaml:"abort_on_first_error"`
}

// SourceConfig describes one record type's export file.
type SourceConfig struct {
	Path            string   `yaml:"path"`
	Delimiter       string   `yaml:"delimiter"`
	MinSignificance int      `yaml:"min_significance"`
	Limit           int      `yaml:"limit"`
	DateFormats     []string `yaml:"date_formats"`
}

// Load reads, expands and validates the configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded, err := ExpandEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.MappingDB == "" {
		c.Sync.MappingDB = DefaultMappingDB
	}
	if c.Sync.BatchSize <= 0 {
		c.Sync.BatchSize = DefaultBatchSize
	}
	if c.Remote.RetryCeiling <= 0 {
		c.Remote.RetryCeiling = DefaultRetryCeiling
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.Remote.BaseURL == "" {
		errs = append(errs, errors.New("remote.base_url is required"))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source must be configured"))
	}
	for name, src := range c.Sources {
		if src.Path == "" {
			errs = append(errs, fmt.Errorf("sources.%s.path is required", name))
		}
		if len(src.Delimiter) > 1 {
			errs = append(errs, fmt.Errorf("sources.%s.delimiter must be a single character", name))
		}
	}
	return errors.Join(errs...)
}

// envRef matches ${VAR} and ${VAR:-default}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv substitutes environment variable references in the raw config
// text. Expansion happens before YAML parsing so references work anywhere,
// including inside quoted strings.
func ExpandEnv(text string) (string, error) {
	var missing []string
	expanded := envRef.ReplaceAllStringFunc(text, func(ref string) string {
		groups := envRef.FindStringSubmatch(ref)
		name, hasDefault, fallback := groups[1], groups[2] != "", groups[3]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasDefault {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variables not set: %s", strings.Join(missing, ", "))
	}
	return expanded, nil
}
