package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeFile(t, "yf2db.yaml", "{}\n")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("financial_db", "finance.duckdb"), cfg.DB.URI)
	assert.Equal(t, DefaultTickers, cfg.Tickers)
	assert.Equal(t, 29, cfg.Ingest.LookbackDays)
	assert.Equal(t, 6, cfg.Ingest.MaxSpanDays)
	assert.Equal(t, 30*time.Second, cfg.Yahoo.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Yahoo.RetryInterval)
	assert.Equal(t, "parquet", cfg.Export.Format)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "US/Eastern", loc.String())

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "custom.yaml", `
db:
  uri: clickhouse://default:@localhost:9000/finance
tickers: [MSFT, BTC-USD]
ingest:
  lookback_days: 10
  timezone: UTC
yahoo:
  timeout: 5s
frozen:
  variants:
    v1:
      filename: frozen_v1.duckdb
      checksum: abc
      tickers: [BTC-USD]
`)
	t.Setenv("YF2DB_INGEST_CONCURRENCY", "8")
	t.Setenv("YF2DB_LOG_LEVEL", "debug")

	cfg, err := Load(Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "clickhouse://default:@localhost:9000/finance", cfg.DB.URI)
	assert.Equal(t, []string{"MSFT", "BTC-USD"}, cfg.Tickers)
	assert.Equal(t, 10, cfg.Ingest.LookbackDays)
	assert.Equal(t, 8, cfg.Ingest.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Yahoo.Timeout)
	require.Contains(t, cfg.Frozen.Variants, "v1")
	assert.Equal(t, "frozen_v1.duckdb", cfg.Frozen.Variants["v1"].Filename)
	assert.Equal(t, []string{"BTC-USD"}, cfg.Frozen.Variants["v1"].Tickers)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "YF2DB_EXPORT_OUTPUT_DIR"
	require.Empty(t, os.Getenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	cfgPath := writeFile(t, "yf2db.yaml", "{}\n")
	envPath := writeFile(t, ".env", key+"=/tmp/yf2db-out\n")

	cfg, err := Load(Options{ConfigFile: cfgPath, EnvFile: envPath})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/yf2db-out", cfg.Export.OutputDir)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(Options{ConfigFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	bad := writeFile(t, "bad.yaml", "ingest:\n  lookback_days: 30\n  max_span_days: 0\n")
	_, err = Load(Options{ConfigFile: bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.lookback_days")
	assert.Contains(t, err.Error(), "ingest.max_span_days")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DB:     DBConfig{URI: "finance.duckdb"},
			Ingest: IngestConfig{LookbackDays: 29, MaxSpanDays: 6, Concurrency: 1, Timezone: "UTC"},
			Yahoo:  YahooConfig{Timeout: time.Second},
			Log:    LogConfig{Level: "warn"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"empty uri", func(c *Config) { c.DB.URI = " " }, false},
		{"bad timezone", func(c *Config) { c.Ingest.Timezone = "Mars/Olympus" }, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"bad format", func(c *Config) { c.Export.Format = "json" }, false},
		{"variant without file", func(c *Config) {
			c.Frozen.Variants = map[string]FrozenVariant{"v1": {Checksum: "x"}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
