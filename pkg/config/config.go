package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for pagegrab.
type Config struct {
	// Scrape timing and bounds
	Scrape ScrapeConfig `yaml:"scrape" json:"scrape"`

	// Browser settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ScrapeConfig bounds the scrape-paginate cycle. Every wait in the page agent
// is a best-effort heuristic, so each one is configurable rather than a
// constant baked into the code.
type ScrapeConfig struct {
	// SettleDelay is the extra wait after the document reports complete, to
	// let deferred scripts populate content.
	SettleDelay time.Duration `yaml:"settle_delay" json:"settle_delay"`
	// ScrollDelay is the wait between a scroll-to-bottom and the height
	// measurement in the lazy-load loop.
	ScrollDelay time.Duration `yaml:"scroll_delay" json:"scroll_delay"`
	// MaxScrollIterations caps the lazy-load loop so a page that grows
	// forever cannot stall a run.
	MaxScrollIterations int `yaml:"max_scroll_iterations" json:"max_scroll_iterations"`
	// PageLoadTimeout bounds the readyState poll after navigation.
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" json:"page_load_timeout"`
	// MaxPages caps how many pages one run will visit.
	MaxPages int `yaml:"max_pages" json:"max_pages"`
}

// BrowserConfig holds headless Chrome settings.
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" json:"headless"`
	NoSandbox bool   `yaml:"no_sandbox" json:"no_sandbox"`
	ExecPath  string `yaml:"exec_path" json:"exec_path"`
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// DownloadConfig holds download-specific configuration.
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// OutputConfig holds output directory configuration. Downloaded files always
// land in the scraped_images subdirectory of the base directory.
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// RateLimitConfig holds rate limiting configuration for downloads.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			SettleDelay:         2 * time.Second,
			ScrollDelay:         2 * time.Second,
			MaxScrollIterations: 20,
			PageLoadTimeout:     30 * time.Second,
			MaxPages:            50,
		},
		Browser: BrowserConfig{
			Headless:  true,
			NoSandbox: false,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory: "./downloads",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9464",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables.
func (c *Config) LoadFromEnv() error {
	if outputDir := os.Getenv("PAGEGRAB_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent := os.Getenv("PAGEGRAB_CONCURRENT_DOWNLOADS"); concurrent != "" {
		var val int
		fmt.Sscanf(concurrent, "%d", &val)
		if val > 0 {
			c.Download.ConcurrentDownloads = val
		}
	}
	if rpm := os.Getenv("PAGEGRAB_REQUESTS_PER_MINUTE"); rpm != "" {
		var val int
		fmt.Sscanf(rpm, "%d", &val)
		if val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if maxPages := os.Getenv("PAGEGRAB_MAX_PAGES"); maxPages != "" {
		var val int
		fmt.Sscanf(maxPages, "%d", &val)
		if val > 0 {
			c.Scrape.MaxPages = val
		}
	}
	if settle := os.Getenv("PAGEGRAB_SETTLE_DELAY"); settle != "" {
		if d, err := time.ParseDuration(settle); err == nil && d >= 0 {
			c.Scrape.SettleDelay = d
		}
	}
	if scroll := os.Getenv("PAGEGRAB_SCROLL_DELAY"); scroll != "" {
		if d, err := time.ParseDuration(scroll); err == nil && d >= 0 {
			c.Scrape.ScrollDelay = d
		}
	}
	if execPath := os.Getenv("PAGEGRAB_CHROME_PATH"); execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if logLevel := os.Getenv("PAGEGRAB_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metricsAddr := os.Getenv("PAGEGRAB_METRICS_ADDR"); metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = metricsAddr
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations.
func (c *Config) findConfigFile() string {
	locations := []string{
		".pagegrab.yaml",
		".pagegrab.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "pagegrab", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "pagegrab", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".pagegrab.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if c.Scrape.SettleDelay < 0 {
		errs = append(errs, errors.New("settle delay cannot be negative"))
	}
	if c.Scrape.ScrollDelay < 0 {
		errs = append(errs, errors.New("scroll delay cannot be negative"))
	}
	if c.Scrape.MaxScrollIterations <= 0 {
		errs = append(errs, errors.New("max scroll iterations must be positive"))
	}
	if c.Scrape.PageLoadTimeout <= 0 {
		errs = append(errs, errors.New("page load timeout must be positive"))
	}
	if c.Scrape.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}

	if c.Download.ConcurrentDownloads <= 0 {
		errs = append(errs, errors.New("concurrent downloads must be positive"))
	}
	if c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads should not exceed 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, errors.New("metrics listener address is required when metrics are enabled"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if concurrent, ok := flags["concurrent"].(int); ok && concurrent > 0 {
		c.Download.ConcurrentDownloads = concurrent
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Scrape.MaxPages = maxPages
	}
	if settle, ok := flags["settle-delay"].(time.Duration); ok && settle >= 0 {
		c.Scrape.SettleDelay = settle
	}
	if scroll, ok := flags["scroll-delay"].(time.Duration); ok && scroll >= 0 {
		c.Scrape.ScrollDelay = scroll
	}
	if iters, ok := flags["max-scroll-iterations"].(int); ok && iters > 0 {
		c.Scrape.MaxScrollIterations = iters
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.Scrape.PageLoadTimeout = timeout
	}
	if rpm, ok := flags["rate-limit"].(int); ok && rpm > 0 {
		c.RateLimit.RequestsPerMinute = rpm
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if noSandbox, ok := flags["no-sandbox"].(bool); ok && noSandbox {
		c.Browser.NoSandbox = true
	}
	if execPath, ok := flags["chrome-path"].(string); ok && execPath != "" {
		c.Browser.ExecPath = execPath
	}
	if metricsAddr, ok := flags["metrics-addr"].(string); ok && metricsAddr != "" {
		c.Metrics.Enabled = true
		c.Metrics.Addr = metricsAddr
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".pagegrab.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
