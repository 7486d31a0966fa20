package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every input of the loader at a fresh directory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, key := range []string{
		"DATA_DIR", "INDEX_FILE", "OUTPUT_DIR", "SERVICE", "MODEL", "API_KEY", "BASE_URL",
		"SOURCE_LANG", "TARGET_LANG", "REDIS_URL", "SEGMENT_CACHE_TTL", "LOG_LEVEL",
		"MAX_RETRIES", "REQUESTS_PER_MINUTE", "CONCURRENCY", "BATCH_SIZE",
	} {
		t.Setenv(EnvPrefix+"_"+key, "")
		os.Unsetenv(EnvPrefix + "_" + key)
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv(EnvPrefix+"_DATA_DIR", dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := NewLoader().Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "index.json"), cfg.IndexFile)
	assert.Equal(t, filepath.Join(dir, "outputs"), cfg.OutputDir)
	assert.Equal(t, DefaultService, cfg.Service)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.ServiceID())
	assert.Equal(t, DefaultSourceLang, cfg.SourceLang)
	assert.Equal(t, DefaultSegmentCacheTTL, cfg.SegmentCacheTTL)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoad_Environment(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DOCDEDUP_TARGET_LANG", "zh")
	t.Setenv("DOCDEDUP_MODEL", "gpt-4.1")
	t.Setenv("DOCDEDUP_MAX_RETRIES", "5")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := NewLoader().Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, "zh", cfg.TargetLang)
	assert.Equal(t, "openai:gpt-4.1", cfg.ServiceID())
	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, "sk-env", cfg.APIKey, "OPENAI_API_KEY is the fallback")

	t.Setenv("DOCDEDUP_API_KEY", "sk-own")
	cfg, err = NewLoader().Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "sk-own", cfg.APIKey)
}

func TestLoad_ConfigFileInDataDir(t *testing.T) {
	dir := isolate(t)
	content := "service: mock\ntarget_lang: ja\nsegment_cache_ttl: 60\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := NewLoader().Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.ServiceID())
	assert.Equal(t, "ja", cfg.TargetLang)
	assert.Equal(t, 60, cfg.SegmentCacheTTL)
}

func TestLoad_ExplicitConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"source_lang": "de", "log_level": "debug"}`), 0o644))

	cfg, err := NewLoader().Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "de", cfg.SourceLang)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = NewLoader().Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DOCDEDUP_TARGET_LANG", "zh")

	cmd := &cobra.Command{Use: "translate"}
	cmd.Flags().String("to", "", "")
	cmd.Flags().String("service", "", "")
	cmd.Flags().String("index", "", "")
	require.NoError(t, cmd.Flags().Set("to", "fr"))
	require.NoError(t, cmd.Flags().Set("service", "mock"))
	require.NoError(t, cmd.Flags().Set("index", "custom.json"))

	cfg, err := NewLoader().Load(cmd, "")
	require.NoError(t, err)

	assert.Equal(t, "fr", cfg.TargetLang)
	assert.Equal(t, "mock", cfg.Service)
	assert.True(t, filepath.IsAbs(cfg.IndexFile))
	assert.Equal(t, "custom.json", filepath.Base(cfg.IndexFile))
	assert.Equal(t, filepath.Join(dir, "outputs"), cfg.OutputDir)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{DataDir: t.TempDir(), Service: "mock", LogLevel: "warn"}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"ok", func(c *Config) {}, ""},
		{"no data dir", func(c *Config) { c.DataDir = "" }, "data directory"},
		{"no service", func(c *Config) { c.Service = "" }, "service not specified"},
		{"unknown service", func(c *Config) { c.Service = "deepl:pro" }, "unsupported service"},
		{"negative ttl", func(c *Config) { c.SegmentCacheTTL = -1 }, "segment_cache_ttl"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"negative rpm", func(c *Config) { c.RequestsPerMinute = -1 }, "requests_per_minute"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errMsg)
		})
	}
}

func TestRequireTranslation(t *testing.T) {
	c := &Config{Service: "openai:gpt-4o-mini"}
	assert.ErrorContains(t, c.RequireTranslation(), "target language")

	c.TargetLang = "zh"
	assert.ErrorContains(t, c.RequireTranslation(), "API key")

	c.APIKey = "sk"
	assert.NoError(t, c.RequireTranslation())

	mock := &Config{Service: "mock", TargetLang: "zh"}
	assert.NoError(t, mock.RequireTranslation())
}
