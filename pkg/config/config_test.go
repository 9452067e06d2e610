package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)

	// Scrape defaults
	assert.Equal(t, 2*time.Second, cfg.Scrape.SettleDelay)
	assert.Equal(t, 2*time.Second, cfg.Scrape.ScrollDelay)
	assert.Equal(t, 20, cfg.Scrape.MaxScrollIterations)
	assert.Equal(t, 30*time.Second, cfg.Scrape.PageLoadTimeout)
	assert.Equal(t, 50, cfg.Scrape.MaxPages)

	// Browser defaults
	assert.True(t, cfg.Browser.Headless)
	assert.False(t, cfg.Browser.NoSandbox)
	assert.NotEmpty(t, cfg.Browser.UserAgent)

	// Download defaults
	assert.Equal(t, 3, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 30*time.Second, cfg.Download.DownloadTimeout)

	// Output and rate limit defaults
	assert.Equal(t, "./downloads", cfg.Output.BaseDirectory)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)

	// Metrics off by default
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9464", cfg.Metrics.Addr)

	// Logging defaults
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.File)

	// Defaults must pass their own validation
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	envVars := map[string]string{
		"PAGEGRAB_OUTPUT_DIR":           "/tmp/test-grabs",
		"PAGEGRAB_CONCURRENT_DOWNLOADS": "5",
		"PAGEGRAB_REQUESTS_PER_MINUTE":  "30",
		"PAGEGRAB_MAX_PAGES":            "7",
		"PAGEGRAB_SETTLE_DELAY":         "5s",
		"PAGEGRAB_SCROLL_DELAY":         "500ms",
		"PAGEGRAB_LOG_LEVEL":            "debug",
		"PAGEGRAB_METRICS_ADDR":         ":9999",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "/tmp/test-grabs", cfg.Output.BaseDirectory)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 7, cfg.Scrape.MaxPages)
	assert.Equal(t, 5*time.Second, cfg.Scrape.SettleDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.Scrape.ScrollDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9999", cfg.Metrics.Addr)
}

func TestLoadFromFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pagegrab.yaml")

	content := `
scrape:
  settle_delay: 1s
  scroll_delay: 250ms
  max_scroll_iterations: 5
  max_pages: 10
browser:
  headless: false
download:
  concurrent_downloads: 4
output:
  base_directory: /tmp/from-file
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(configPath))

	assert.Equal(t, 1*time.Second, cfg.Scrape.SettleDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.Scrape.ScrollDelay)
	assert.Equal(t, 5, cfg.Scrape.MaxScrollIterations)
	assert.Equal(t, 10, cfg.Scrape.MaxPages)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 4, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, "/tmp/from-file", cfg.Output.BaseDirectory)

	// Values absent from the file keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Scrape.PageLoadTimeout)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()

	// An explicit path that does not exist is an error
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid defaults",
			mutate:    func(c *Config) {},
			wantError: false,
		},
		{
			name:      "negative settle delay",
			mutate:    func(c *Config) { c.Scrape.SettleDelay = -time.Second },
			wantError: true,
		},
		{
			name:      "zero scroll iterations",
			mutate:    func(c *Config) { c.Scrape.MaxScrollIterations = 0 },
			wantError: true,
		},
		{
			name:      "zero max pages",
			mutate:    func(c *Config) { c.Scrape.MaxPages = 0 },
			wantError: true,
		},
		{
			name:      "too many concurrent downloads",
			mutate:    func(c *Config) { c.Download.ConcurrentDownloads = 11 },
			wantError: true,
		},
		{
			name:      "missing output directory",
			mutate:    func(c *Config) { c.Output.BaseDirectory = "" },
			wantError: true,
		},
		{
			name:      "zero rate limit",
			mutate:    func(c *Config) { c.RateLimit.RequestsPerMinute = 0 },
			wantError: true,
		},
		{
			name: "metrics enabled without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Addr = ""
			},
			wantError: true,
		},
		{
			name:      "invalid log level",
			mutate:    func(c *Config) { c.Logging.Level = "loud" },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nested", "pagegrab.yaml")

	cfg := DefaultConfig()
	cfg.Scrape.MaxPages = 12
	cfg.Output.BaseDirectory = "/tmp/saved"
	require.NoError(t, cfg.Save(configPath))

	reloaded := DefaultConfig()
	require.NoError(t, reloaded.LoadFromFile(configPath))

	assert.Equal(t, 12, reloaded.Scrape.MaxPages)
	assert.Equal(t, "/tmp/saved", reloaded.Output.BaseDirectory)
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":       "/tmp/flag-output",
		"concurrent":   5,
		"max-pages":    2,
		"settle-delay": 3 * time.Second,
		"headless":     false,
		"metrics-addr": ":7777",
		"log-level":    "debug",
	})

	assert.Equal(t, "/tmp/flag-output", cfg.Output.BaseDirectory)
	assert.Equal(t, 5, cfg.Download.ConcurrentDownloads)
	assert.Equal(t, 2, cfg.Scrape.MaxPages)
	assert.Equal(t, 3*time.Second, cfg.Scrape.SettleDelay)
	assert.False(t, cfg.Browser.Headless)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":7777", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadPrecedence(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pagegrab.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("scrape:\n  max_pages: 10\n"), 0644))

	// Env overrides file
	t.Setenv("PAGEGRAB_MAX_PAGES", "20")

	// Flags override env
	cfg, err := Load(configPath, map[string]interface{}{"max-pages": 30})
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Scrape.MaxPages)

	// Without the flag, env wins
	cfg, err = Load(configPath, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Scrape.MaxPages)
}
