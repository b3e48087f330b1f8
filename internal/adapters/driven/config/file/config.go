// Package file loads the pipeline configuration from a TOML file.
//
// The file declares the data directory, the blob store connection and
// the per-source ingestion settings. Blob store credentials never live
// in the file; they are read from the environment (optionally seeded
// from a .env file at startup).
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/annsync/internal/core/domain"
)

// Environment variable names for blob store credentials.
const (
	EnvBlobAccessKey = "ANNSYNC_BLOB_ACCESS_KEY"
	EnvBlobSecretKey = "ANNSYNC_BLOB_SECRET_KEY"
)

// Config is the full pipeline configuration.
type Config struct {
	// DataDir is where the SQLite database lives.
	// Empty means the store default (~/.annsync/data).
	DataDir string `toml:"data_dir"`

	// FailureThreshold is the per-run record failure tolerance.
	// Zero means the service default.
	FailureThreshold int `toml:"failure_threshold"`

	// HistoryKeep is how many run reports are retained per source.
	// Zero means the service default.
	HistoryKeep int `toml:"history_keep"`

	// Blob configures the attachment object store.
	Blob BlobConfig `toml:"blob"`

	// Sources are the configured announcement sources.
	Sources []SourceConfig `toml:"sources"`
}

// BlobConfig is the object store connection, minus credentials.
type BlobConfig struct {
	Endpoint string `toml:"endpoint"`
	Bucket   string `toml:"bucket"`
	UseSSL   bool   `toml:"use_ssl"`

	// AccessKey and SecretKey are filled from the environment, never
	// from the file.
	AccessKey string `toml:"-"`
	SecretKey string `toml:"-"`
}

// SourceConfig is one source entry in the file.
type SourceConfig struct {
	Name         string `toml:"name"`
	FeedURL      string `toml:"feed_url"`
	Timezone     string `toml:"timezone"`
	BackfillDays int    `toml:"backfill_days"`
	Interval     string `toml:"interval"`
	Workers      int    `toml:"workers"`
	Enabled      bool   `toml:"enabled"`
}

// DefaultPath returns the default config file location,
// ~/.annsync/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".annsync", "config.toml"), nil
}

// Load reads and validates the configuration file at path. An empty
// path means the default location. Credentials are read from the
// environment.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.Blob.AccessKey = os.Getenv(EnvBlobAccessKey)
	cfg.Blob.SecretKey = os.Getenv(EnvBlobSecretKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the pipeline cannot run with.
func (c *Config) validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("no sources configured: %w", domain.ErrInvalidInput)
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source with no name: %w", domain.ErrInvalidInput)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source %q: %w", src.Name, domain.ErrInvalidInput)
		}
		seen[src.Name] = true
		if src.FeedURL == "" {
			return fmt.Errorf("source %q has no feed_url: %w", src.Name, domain.ErrInvalidInput)
		}
		if src.Interval != "" {
			if _, err := time.ParseDuration(src.Interval); err != nil {
				return fmt.Errorf("source %q has a bad interval: %w", src.Name, err)
			}
		}
		if src.Timezone != "" {
			if _, err := time.LoadLocation(src.Timezone); err != nil {
				return fmt.Errorf("source %q has a bad timezone: %w", src.Name, err)
			}
		}
	}
	return nil
}

// DomainSources maps the file entries to normalized domain sources.
func (c *Config) DomainSources() []domain.Source {
	sources := make([]domain.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		interval, _ := time.ParseDuration(src.Interval) // validated in Load
		s := domain.Source{
			Name:         src.Name,
			FeedURL:      src.FeedURL,
			Timezone:     src.Timezone,
			BackfillDays: src.BackfillDays,
			Interval:     interval,
			Workers:      src.Workers,
			Enabled:      src.Enabled,
		}
		_ = s.Normalize() // name presence validated in Load
		sources = append(sources, s)
	}
	return sources
}
