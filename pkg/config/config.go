package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Overwrite policies for destinations that already exist
const (
	OverwriteSkip   = "skip"
	OverwritePrompt = "prompt"
	OverwriteAlways = "overwrite"
)

// Config holds all tunables for audiograb. Strategy tables are compiled in and not configurable here.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
	Pacing     PacingConfig     `yaml:"pacing" json:"pacing"`
	Extraction ExtractionConfig `yaml:"extraction" json:"extraction"`
	Download   DownloadConfig   `yaml:"download" json:"download"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// HTTPConfig holds per call class timeouts
type HTTPConfig struct {
	PageTimeout       time.Duration `yaml:"page_timeout" json:"page_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout" json:"probe_timeout"`
	FallbackTimeout   time.Duration `yaml:"fallback_probe_timeout" json:"fallback_probe_timeout"`
	DownloadTimeout   time.Duration `yaml:"download_timeout" json:"download_timeout"`
	MaxPageBytes      int64         `yaml:"max_page_bytes" json:"max_page_bytes"`
}

// PacingConfig controls the delays between strategy attempts and probes
type PacingConfig struct {
	MinDelay     time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
	ProbesPerSec float64       `yaml:"probes_per_second" json:"probes_per_second"`
	ProbeBurst   int           `yaml:"probe_burst" json:"probe_burst"`
}

// ExtractionConfig holds candidate extractor toggles
type ExtractionConfig struct {
	// SkipSpeculativeWhenFound skips the probe-based heuristics once a cheaper one found something
	SkipSpeculativeWhenFound bool     `yaml:"skip_speculative_when_found" json:"skip_speculative_when_found"`
	Speculative              bool     `yaml:"speculative" json:"speculative"`
	QueryAPIs                bool     `yaml:"query_apis" json:"query_apis"`
	SpeculativeHosts         []string `yaml:"speculative_hosts" json:"speculative_hosts"`
}

// DownloadConfig holds download transport settings
type DownloadConfig struct {
	// ChunkSize overrides every transport's chunk size when positive
	ChunkSize int   `yaml:"chunk_size" json:"chunk_size"`
	MinBytes  int64 `yaml:"min_bytes" json:"min_bytes"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string   `yaml:"directory" json:"directory"`
	Overwrite string   `yaml:"overwrite" json:"overwrite"`
	Formats   []string `yaml:"formats" json:"formats"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level"`
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
	File    string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			PageTimeout:       30 * time.Second,
			NavigationTimeout: 15 * time.Second,
			ProbeTimeout:      10 * time.Second,
			FallbackTimeout:   5 * time.Second,
			DownloadTimeout:   30 * time.Second,
			MaxPageBytes:      16 << 20,
		},
		Pacing: PacingConfig{
			MinDelay:     200 * time.Millisecond,
			MaxDelay:     500 * time.Millisecond,
			PollInterval: 100 * time.Millisecond,
			ProbesPerSec: 4,
			ProbeBurst:   2,
		},
		Extraction: ExtractionConfig{
			SkipSpeculativeWhenFound: true,
			Speculative:              true,
			QueryAPIs:                true,
			SpeculativeHosts:         []string{"japaneseasmr.com"},
		},
		Download: DownloadConfig{
			ChunkSize: 0,
			MinBytes:  1,
		},
		Output: OutputConfig{
			Directory: "./downloads",
			Overwrite: OverwritePrompt,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("AUDIOGRAB_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("AUDIOGRAB_OVERWRITE"); v != "" {
		c.Output.Overwrite = strings.ToLower(v)
	}
	if v := os.Getenv("AUDIOGRAB_FORMATS"); v != "" {
		c.Output.Formats = splitList(v)
	}

	durations := map[string]*time.Duration{
		"AUDIOGRAB_PAGE_TIMEOUT":     &c.HTTP.PageTimeout,
		"AUDIOGRAB_PROBE_TIMEOUT":    &c.HTTP.ProbeTimeout,
		"AUDIOGRAB_DOWNLOAD_TIMEOUT": &c.HTTP.DownloadTimeout,
		"AUDIOGRAB_MIN_DELAY":        &c.Pacing.MinDelay,
		"AUDIOGRAB_MAX_DELAY":        &c.Pacing.MaxDelay,
	}
	for key, dst := range durations {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		*dst = d
	}

	if v := os.Getenv("AUDIOGRAB_SKIP_SPECULATIVE_WHEN_FOUND"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUDIOGRAB_SKIP_SPECULATIVE_WHEN_FOUND: %w", err))
		} else {
			c.Extraction.SkipSpeculativeWhenFound = b
		}
	}
	if v := os.Getenv("AUDIOGRAB_SPECULATIVE_HOSTS"); v != "" {
		c.Extraction.SpeculativeHosts = splitList(v)
	}

	if v := os.Getenv("AUDIOGRAB_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("AUDIOGRAB_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("AUDIOGRAB_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.Logging.NoColor = true
	}

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
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

// DefaultPath is where `config init` writes when no path is given
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "audiograb", "config.yaml")
}

func (c *Config) findConfigFile() string {
	locations := []string{
		"audiograb.yaml",
		".audiograb.yaml",
		DefaultPath(),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.PageTimeout <= 0 {
		errs = append(errs, errors.New("page timeout must be positive"))
	}
	if c.HTTP.ProbeTimeout <= 0 || c.HTTP.FallbackTimeout <= 0 {
		errs = append(errs, errors.New("probe timeouts must be positive"))
	}
	if c.HTTP.NavigationTimeout <= 0 {
		errs = append(errs, errors.New("navigation timeout must be positive"))
	}
	if c.HTTP.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	if c.Pacing.MinDelay < 0 || c.Pacing.MaxDelay < c.Pacing.MinDelay {
		errs = append(errs, errors.New("pacing delays must satisfy 0 <= min_delay <= max_delay"))
	}
	if c.Pacing.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.Pacing.ProbesPerSec < 0 {
		errs = append(errs, errors.New("probes per second cannot be negative"))
	}

	if c.Download.ChunkSize < 0 {
		errs = append(errs, errors.New("chunk size cannot be negative"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	switch c.Output.Overwrite {
	case OverwriteSkip, OverwritePrompt, OverwriteAlways:
	default:
		errs = append(errs, fmt.Errorf("invalid overwrite policy %q", c.Output.Overwrite))
	}
	validFormats := map[string]bool{"mp3": true, "m4a": true, "wav": true, "flac": true, "audio": true}
	for _, f := range c.Output.Formats {
		if !validFormats[f] {
			errs = append(errs, fmt.Errorf("unknown format %q", f))
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
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
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if overwrite, ok := flags["overwrite"].(string); ok && overwrite != "" {
		c.Output.Overwrite = strings.ToLower(overwrite)
	}
	if formats, ok := flags["format"].([]string); ok && len(formats) > 0 {
		c.Output.Formats = nil
		for _, f := range formats {
			c.Output.Formats = append(c.Output.Formats, splitList(f)...)
		}
	}
	if noGate, ok := flags["no-gate"].(bool); ok && noGate {
		c.Extraction.SkipSpeculativeWhenFound = false
	}
	if noSpec, ok := flags["no-speculative"].(bool); ok && noSpec {
		c.Extraction.Speculative = false
		c.Extraction.QueryAPIs = false
	}
	if timeout, ok := flags["timeout"].(time.Duration); ok && timeout > 0 {
		c.HTTP.PageTimeout = timeout
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat, ok := flags["log-format"].(string); ok && logFormat != "" {
		c.Logging.Format = logFormat
	}
	if noColor, ok := flags["no-color"].(bool); ok && noColor {
		c.Logging.NoColor = true
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".audiograb.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
