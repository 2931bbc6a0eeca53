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

// Config holds all configuration options for the harvest pipeline
type Config struct {
	// Search crawl settings
	Search SearchConfig `yaml:"search" json:"search"`

	// Browser (rendering engine) settings
	Browser BrowserConfig `yaml:"browser" json:"browser"`

	// Catalog/download API settings
	API APIConfig `yaml:"api" json:"api"`

	// Record store settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Pacing between downloads and search terms
	Pacing PacingConfig `yaml:"pacing" json:"pacing"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig holds search crawl configuration
type SearchConfig struct {
	BaseURL  string   `yaml:"base_url" json:"base_url"`
	Terms    []string `yaml:"terms" json:"terms"`
	MaxPages int      `yaml:"max_pages" json:"max_pages"`

	// TermsExplicit is true when the terms came from a flag or the
	// environment; callers then skip interactive prompting
	TermsExplicit bool `yaml:"-" json:"-"`
}

// BrowserConfig holds rendering engine configuration
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	SelectorTimeout   time.Duration `yaml:"selector_timeout" json:"selector_timeout"`
	SettleDelay       time.Duration `yaml:"settle_delay" json:"settle_delay"`
}

// APIConfig holds catalog/download API configuration
type APIConfig struct {
	Key     string        `yaml:"key" json:"key"`
	BaseURL string        `yaml:"base_url" json:"base_url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// DownloadTimeout bounds a single archive transfer
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MaxRetries      int           `yaml:"max_retries" json:"max_retries"`
}

// DatabaseConfig holds record store configuration
type DatabaseConfig struct {
	Path string `yaml:"path" json:"path"`
}

// OutputConfig holds download output configuration
type OutputConfig struct {
	ResultsDir string `yaml:"results_dir" json:"results_dir"`
}

// PacingConfig holds the fixed delays that cap harvest throughput
type PacingConfig struct {
	DownloadDelay time.Duration `yaml:"download_delay" json:"download_delay"`
	TermDelay     time.Duration `yaml:"term_delay" json:"term_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			BaseURL:  "https://universe.roboflow.com",
			Terms:    []string{"bottle", "object detection"},
			MaxPages: 3,
		},
		Browser: BrowserConfig{
			Headless:          true,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
			NavigationTimeout: 30 * time.Second,
			SelectorTimeout:   20 * time.Second,
			SettleDelay:       2 * time.Second,
		},
		API: APIConfig{
			BaseURL:         "https://api.roboflow.com",
			Timeout:         30 * time.Second,
			DownloadTimeout: 5 * time.Minute,
			MaxRetries:      3,
		},
		Database: DatabaseConfig{
			Path: "./data/rfharvest.db",
		},
		Output: OutputConfig{
			ResultsDir: "./results",
		},
		Pacing: PacingConfig{
			DownloadDelay: 1 * time.Second,
			TermDelay:     2 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if terms := os.Getenv("RFHARVEST_SEARCH_TERMS"); terms != "" {
		c.Search.Terms = splitTerms(terms)
		c.Search.TermsExplicit = true
	}
	if maxPages := os.Getenv("RFHARVEST_MAX_PAGES"); maxPages != "" {
		var val int
		fmt.Sscanf(maxPages, "%d", &val)
		if val > 0 {
			c.Search.MaxPages = val
		}
	}
	if baseURL := os.Getenv("RFHARVEST_SEARCH_BASE_URL"); baseURL != "" {
		c.Search.BaseURL = baseURL
	}

	// ROBOFLOW_API_KEY is the name the catalog API documents; the prefixed
	// variable wins when both are set.
	if key := os.Getenv("ROBOFLOW_API_KEY"); key != "" {
		c.API.Key = key
	}
	if key := os.Getenv("RFHARVEST_API_KEY"); key != "" {
		c.API.Key = key
	}
	if apiURL := os.Getenv("RFHARVEST_API_BASE_URL"); apiURL != "" {
		c.API.BaseURL = apiURL
	}

	if dbPath := os.Getenv("RFHARVEST_DATABASE_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if resultsDir := os.Getenv("RFHARVEST_RESULTS_DIR"); resultsDir != "" {
		c.Output.ResultsDir = resultsDir
	}

	if headless := os.Getenv("RFHARVEST_HEADLESS"); headless != "" {
		c.Browser.Headless = strings.ToLower(headless) != "false"
	}
	if userAgent := os.Getenv("RFHARVEST_USER_AGENT"); userAgent != "" {
		c.Browser.UserAgent = userAgent
	}

	if logLevel := os.Getenv("RFHARVEST_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("RFHARVEST_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// splitTerms splits a comma-separated term list, trimming whitespace and
// dropping empty entries
func splitTerms(s string) []string {
	var terms []string
	for _, term := range strings.Split(s, ",") {
		term = strings.TrimSpace(term)
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}

// LoadFromFile loads configuration from a YAML file
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

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	// Check in order of precedence
	locations := []string{
		".rfharvest.yaml",
		".rfharvest.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "rfharvest", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "rfharvest", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".rfharvest.yaml"),
		filepath.Join(os.Getenv("HOME"), ".rfharvest.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid. The API key is deliberately
// not required: an absent credential means downloads are skipped, not that
// the run is invalid.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.BaseURL == "" {
		errs = append(errs, errors.New("search base URL is required"))
	}
	if c.Search.MaxPages <= 0 {
		errs = append(errs, errors.New("max pages must be positive"))
	}

	if c.Browser.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.Browser.SelectorTimeout <= 0 {
		errs = append(errs, errors.New("selector timeout must be positive"))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("API base URL is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("API timeout must be positive"))
	}
	if c.API.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Output.ResultsDir == "" {
		errs = append(errs, errors.New("results directory is required"))
	}

	if c.Pacing.DownloadDelay < 0 {
		errs = append(errs, errors.New("download delay cannot be negative"))
	}
	if c.Pacing.TermDelay < 0 {
		errs = append(errs, errors.New("term delay cannot be negative"))
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

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if terms, ok := flags["terms"].(string); ok && terms != "" {
		c.Search.Terms = splitTerms(terms)
		c.Search.TermsExplicit = true
	}
	if maxPages, ok := flags["max-pages"].(int); ok && maxPages > 0 {
		c.Search.MaxPages = maxPages
	}
	if apiKey, ok := flags["api-key"].(string); ok && apiKey != "" {
		c.API.Key = apiKey
	}
	if dbPath, ok := flags["database"].(string); ok && dbPath != "" {
		c.Database.Path = dbPath
	}
	if resultsDir, ok := flags["results"].(string); ok && resultsDir != "" {
		c.Output.ResultsDir = resultsDir
	}
	if headless, ok := flags["headless"].(bool); ok {
		c.Browser.Headless = headless
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// Try to load .env files (don't fail if they don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".rfharvest.env"))

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
