// Package config loads docdedup settings from defaults, a config file,
// DOCDEDUP_* environment variables and command flags, in increasing
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ZaguanLabs/docdedup/index"
	"github.com/ZaguanLabs/docdedup/internal/logging"
)

// Default configuration values
const (
	DefaultService         = "openai:gpt-4o-mini"
	DefaultSourceLang      = "en"
	DefaultSegmentCacheTTL = 3600
	DefaultLogLevel        = "warn"
	DefaultMaxRetries      = 3
	DefaultConcurrency     = 1
	DefaultBatchSize       = 40
)

// Holds the configuration options for docdedup
type Config struct {
	// Directory holding the index and, by default, the outputs
	DataDir string
	// Path of the JSON index document
	IndexFile string
	// Directory translated outputs are written to
	OutputDir string

	// Translation service, "<provider>:<model>" or "mock"
	Service string
	// Overrides the model part of Service
	Model   string
	APIKey  string
	BaseURL string

	SourceLang string
	TargetLang string

	// Segment cache; empty RedisURL keeps it in memory
	RedisURL        string
	SegmentCacheTTL int

	LogLevel          string
	MaxRetries        int
	RequestsPerMinute int
	Concurrency       int
	BatchSize         int
}

// ProviderName returns the provider part of Service.
func (c *Config) ProviderName() string {
	name, _, _ := strings.Cut(c.Service, ":")
	return strings.ToLower(name)
}

// ModelName returns the model to use, preferring Model over the model part
// of Service.
func (c *Config) ModelName() string {
	if c.Model != "" {
		return c.Model
	}
	_, model, _ := strings.Cut(c.Service, ":")
	return model
}

// ServiceID is the service identifier that goes into cache keys. Two
// configurations that would translate differently must not share it.
func (c *Config) ServiceID() string {
	if model := c.ModelName(); model != "" {
		return c.ProviderName() + ":" + model
	}
	return c.ProviderName()
}

// Validate resolves paths to absolute form and checks field ranges.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data directory not specified")
	}

	var err error
	if c.DataDir, err = filepath.Abs(c.DataDir); err != nil {
		return fmt.Errorf("invalid data directory: %w", err)
	}

	if c.IndexFile == "" {
		c.IndexFile = filepath.Join(c.DataDir, index.DefaultFileName)
	}
	if c.IndexFile, err = filepath.Abs(c.IndexFile); err != nil {
		return fmt.Errorf("invalid index file path: %w", err)
	}

	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.DataDir, "outputs")
	}
	if c.OutputDir, err = filepath.Abs(c.OutputDir); err != nil {
		return fmt.Errorf("invalid output directory: %w", err)
	}

	switch c.ProviderName() {
	case "openai", "mock":
	case "":
		return errors.New("service not specified")
	default:
		return fmt.Errorf("unsupported service %q", c.Service)
	}

	if c.SegmentCacheTTL < 0 {
		return fmt.Errorf("segment_cache_ttl must not be negative: %d", c.SegmentCacheTTL)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative: %d", c.MaxRetries)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative: %d", c.RequestsPerMinute)
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}

	if !slices.Contains(logging.Levels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log level: %s", c.LogLevel)
	}

	return nil
}

// RequireTranslation checks the settings only a translation run needs.
func (c *Config) RequireTranslation() error {
	if c.TargetLang == "" {
		return errors.New("target language not specified")
	}
	if c.ProviderName() == "openai" && c.APIKey == "" {
		return errors.New("API key required (set api_key, DOCDEDUP_API_KEY or OPENAI_API_KEY)")
	}
	return nil
}

// defaultDataDir picks the per-user cache directory, falling back to a
// directory under the working directory.
func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "docdedup")
	}
	return ".docdedup"
}
