package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 60, cfg.Browser.ActionTimeoutSecs)
	assert.Equal(t, "https://www.findchildcarewa.org", cfg.Collect.BaseURL)
	assert.Equal(t, "/PSS_Provider?id=", cfg.Collect.DetailPattern)
	assert.Equal(t, 5, cfg.Collect.InitialWaitSecs)
	assert.Equal(t, 3, cfg.Collect.PauseSecs)
	assert.Equal(t, int64(1000), cfg.Collect.JiggleOffset)
	assert.Equal(t, 5, cfg.Collect.MaxRetries)
	assert.Equal(t, "childcare_links_full.txt", cfg.Collect.LinksFile)
	assert.Equal(t, "childcare_data_final.jsonl", cfg.Scrape.Output)
	assert.Equal(t, 1, cfg.Scrape.Concurrency)
	assert.Equal(t, "browser", cfg.Scrape.Fetcher)
	assert.False(t, cfg.Scrape.UseCache)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.InDelta(t, 2.0, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, "Vendor", cfg.Ledger.Columns.Vendor)
	assert.Equal(t, "Amounts Sum", cfg.Ledger.Columns.Amount)
	assert.Equal(t, 85, cfg.Match.Threshold)
	assert.Equal(t, "MASTER_CHILDCARE_DB.json", cfg.Merge.Output)
	assert.Equal(t, "childcare.db", cfg.Store.Path)
	assert.Equal(t, int32(4), cfg.Postgres.MaxConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
  format: console
scrape:
  concurrency: 4
  fetcher: http
ledger:
  path: payments.xlsx
  columns:
    vendor: Payee
match:
  threshold: 90
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 4, cfg.Scrape.Concurrency)
	assert.Equal(t, "http", cfg.Scrape.Fetcher)
	assert.Equal(t, "payments.xlsx", cfg.Ledger.Path)
	assert.Equal(t, "Payee", cfg.Ledger.Columns.Vendor)
	assert.Equal(t, 90, cfg.Match.Threshold)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, "Amounts Sum", cfg.Ledger.Columns.Amount)
	assert.Equal(t, "childcare_data_final.jsonl", cfg.Scrape.Output)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
scrape:
  output: from-file.jsonl
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CHILDCARE_SCRAPE_OUTPUT", "from-env.jsonl")
	t.Setenv("CHILDCARE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "from-env.jsonl", cfg.Scrape.Output)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CHILDCARE_SERVER_PORT", "3000")
	t.Setenv("CHILDCARE_POSTGRES_DATABASE_URL", "postgres://localhost/childcare")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/childcare", cfg.Postgres.DatabaseURL)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Scrape.Output = "out.jsonl"
	cfg.Scrape.Concurrency = 1
	cfg.Scrape.Fetcher = "browser"
	cfg.Ledger.Path = "ledger.csv"
	cfg.Merge.Output = "merged.json"
	cfg.Match.Threshold = 85
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"scrape", "merge", "serve", "collect"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateScrape_BadFetcher(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Fetcher = "curl"
	err := cfg.Validate("scrape")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrape.fetcher")
}

func TestValidateScrape_Concurrency(t *testing.T) {
	cfg := validDefaults()
	cfg.Scrape.Concurrency = 0
	assert.Error(t, cfg.Validate("scrape"))
}

func TestValidateMerge_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Ledger.Path = ""
	cfg.Merge.Output = ""
	err := cfg.Validate("merge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.path")
	assert.Contains(t, err.Error(), "merge.output")
}

func TestValidateMerge_Threshold(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.Threshold = 101
	assert.Error(t, cfg.Validate("merge"))
}

func TestValidatePublish_NoDB(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres.database_url")

	cfg.Postgres.DatabaseURL = "postgres://localhost/childcare"
	assert.NoError(t, cfg.Validate("publish"))
}
