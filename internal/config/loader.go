package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the loader.
const EnvPrefix = "DOCDEDUP"

// flagKeys maps command flag names to configuration keys.
var flagKeys = map[string]string{
	"data-dir":   "data_dir",
	"index":      "index_file",
	"output-dir": "output_dir",
	"service":    "service",
	"model":      "model",
	"from":       "source_lang",
	"to":         "target_lang",
	"redis-url":  "redis_url",
	"log-level":  "log_level",
}

// Loader handles configuration loading from various sources
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Load reads configuration for cmd. configFile, when set, must exist;
// otherwise a config.{yaml,yml,json,toml} in the data directory is used if
// present.
func (l *Loader) Load(cmd *cobra.Command, configFile string) (*Config, error) {
	l.setupDefaults()
	l.setupEnv()
	if cmd != nil {
		l.bindCommandFlags(cmd)
	}

	if err := l.readConfigFile(configFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:           l.v.GetString("data_dir"),
		IndexFile:         l.v.GetString("index_file"),
		OutputDir:         l.v.GetString("output_dir"),
		Service:           l.v.GetString("service"),
		Model:             l.v.GetString("model"),
		APIKey:            l.v.GetString("api_key"),
		BaseURL:           l.v.GetString("base_url"),
		SourceLang:        l.v.GetString("source_lang"),
		TargetLang:        l.v.GetString("target_lang"),
		RedisURL:          l.v.GetString("redis_url"),
		SegmentCacheTTL:   l.v.GetInt("segment_cache_ttl"),
		LogLevel:          l.v.GetString("log_level"),
		MaxRetries:        l.v.GetInt("max_retries"),
		RequestsPerMinute: l.v.GetInt("requests_per_minute"),
		Concurrency:       l.v.GetInt("concurrency"),
		BatchSize:         l.v.GetInt("batch_size"),
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setupDefaults sets up default values for viper
func (l *Loader) setupDefaults() {
	l.v.SetDefault("data_dir", defaultDataDir())
	l.v.SetDefault("service", DefaultService)
	l.v.SetDefault("source_lang", DefaultSourceLang)
	l.v.SetDefault("segment_cache_ttl", DefaultSegmentCacheTTL)
	l.v.SetDefault("log_level", DefaultLogLevel)
	l.v.SetDefault("max_retries", DefaultMaxRetries)
	l.v.SetDefault("requests_per_minute", 0)
	l.v.SetDefault("concurrency", DefaultConcurrency)
	l.v.SetDefault("batch_size", DefaultBatchSize)

	// Keys without defaults still need to be known to AutomaticEnv.
	for _, key := range []string{"index_file", "output_dir", "model", "api_key", "base_url", "target_lang", "redis_url"} {
		l.v.SetDefault(key, "")
	}
}

func (l *Loader) setupEnv() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	l.v.AutomaticEnv()
}

// bindCommandFlags binds the flags cmd defines to their keys.
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			_ = l.v.BindPFlag(key, f)
		}
	}
}

func (l *Loader) readConfigFile(configFile string) error {
	if configFile != "" {
		l.v.SetConfigFile(configFile)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", configFile, err)
		}
		return nil
	}

	dir := l.v.GetString("data_dir")
	for _, ext := range []string{"yaml", "yml", "json", "toml"} {
		path := filepath.Join(dir, "config."+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}

		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		return nil
	}

	return nil
}
