package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"skycast/internal/errorutil"
	"skycast/internal/logger"
)

// Server contains HTTP listener configuration
type Server struct {
	Address            string `toml:"address"`
	VisitorName        string `toml:"visitor_name"` // Name used in the home page greeting
	ReadTimeoutSec     int    `toml:"read_timeout_sec"`
	WriteTimeoutSec    int    `toml:"write_timeout_sec"`
	ShutdownTimeoutSec int    `toml:"shutdown_timeout_sec"`
}

// APIs contains API key configurations
type APIs struct {
	Anthropic string `toml:"anthropic"` // Optional; summaries are disabled without it
}

// Claude contains Claude AI model configuration
type Claude struct {
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature *float64 `toml:"temperature"` // nil means unset; 0 is a valid setting
	MaxRetries  int      `toml:"max_retries"`
	BaseDelayMs int      `toml:"base_delay_ms"` // Base delay in milliseconds
	MaxDelayMs  int      `toml:"max_delay_ms"`  // Max delay in milliseconds
	RateLimit   int      `toml:"rate_limit"`    // Requests per minute
	TimeoutSec  int      `toml:"timeout_sec"`   // Per-attempt timeout
	BaseURL     string   `toml:"base_url"`      // Empty uses the SDK default
}

// Weather contains Open-Meteo configuration
type Weather struct {
	BaseURL      string `toml:"base_url"`
	ForecastDays int    `toml:"forecast_days"`
	TimeoutSec   int    `toml:"timeout_sec"`
	MaxRetries   int    `toml:"max_retries"`
}

// Catalog contains city catalog source configuration
type Catalog struct {
	Path              string `toml:"path"`         // On-disk catalog; empty uses the bundled one
	FallbackURL       string `toml:"fallback_url"` // Fetched when the primary source has no data
	DisableFallback   bool   `toml:"disable_fallback"`
	ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
	RequestTimeoutSec int    `toml:"request_timeout_sec"`
}

// Logging contains logging configuration with rotation and cross-platform support
type Logging struct {
	Enabled         bool   `toml:"enabled"`          // Enable file logging
	Directory       string `toml:"directory"`        // Log directory (relative or absolute)
	FilenamePattern string `toml:"filename_pattern"` // Log filename with date patterns
	Level           string `toml:"level"`            // Log level: debug, info, warn, error
	MaxFiles        int    `toml:"max_files"`        // Number of log files to keep
	MaxSizeMB       int    `toml:"max_size_mb"`      // Rotate when file exceeds this size
	ConsoleOutput   bool   `toml:"console_output"`   // Also output to console
}

// Config represents the complete application configuration
type Config struct {
	Server  Server  `toml:"server"`
	APIs    APIs    `toml:"apis"`
	Claude  Claude  `toml:"claude"`
	Weather Weather `toml:"weather"`
	Catalog Catalog `toml:"catalog"`
	Logging Logging `toml:"logging"`
}

const (
	DefaultAddress     = ":8080"
	DefaultModel       = "claude-3-5-haiku-latest"
	DefaultTemperature = 0.7
	DefaultWeatherURL  = "https://api.open-meteo.com"
	DefaultFallbackURL = "https://raw.githubusercontent.com/isaric/weather-app/main/city_search/cities.json"
)

// LoadConfig reads and parses a TOML configuration file
func LoadConfig(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigNotFoundError{Path: cleanPath}
		}
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse TOML configuration: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults sets default values for optional configuration fields
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Server.Address) == "" {
		c.Server.Address = DefaultAddress
	}
	if strings.TrimSpace(c.Server.VisitorName) == "" {
		c.Server.VisitorName = "Traveler"
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = 60 // summaries can take a while
	}
	if c.Server.ShutdownTimeoutSec <= 0 {
		c.Server.ShutdownTimeoutSec = 10
	}

	if strings.TrimSpace(c.Claude.Model) == "" {
		c.Claude.Model = DefaultModel
	}
	if c.Claude.MaxTokens <= 0 {
		c.Claude.MaxTokens = 512
	}
	if c.Claude.Temperature == nil {
		temperature := DefaultTemperature
		c.Claude.Temperature = &temperature
	}
	if c.Claude.MaxRetries <= 0 {
		c.Claude.MaxRetries = 3
	}
	if c.Claude.BaseDelayMs <= 0 {
		c.Claude.BaseDelayMs = 1000
	}
	if c.Claude.MaxDelayMs <= 0 {
		c.Claude.MaxDelayMs = 30000
	}
	if c.Claude.RateLimit <= 0 {
		c.Claude.RateLimit = 50
	}
	if c.Claude.TimeoutSec <= 0 {
		c.Claude.TimeoutSec = 30
	}

	if strings.TrimSpace(c.Weather.BaseURL) == "" {
		c.Weather.BaseURL = DefaultWeatherURL
	}
	if c.Weather.ForecastDays <= 0 {
		c.Weather.ForecastDays = 3
	}
	if c.Weather.TimeoutSec <= 0 {
		c.Weather.TimeoutSec = 15
	}
	if c.Weather.MaxRetries < 0 {
		c.Weather.MaxRetries = 0
	}

	if strings.TrimSpace(c.Catalog.FallbackURL) == "" {
		c.Catalog.FallbackURL = DefaultFallbackURL
	}
	if c.Catalog.ConnectTimeoutSec <= 0 {
		c.Catalog.ConnectTimeoutSec = 10
	}
	if c.Catalog.RequestTimeoutSec <= 0 {
		c.Catalog.RequestTimeoutSec = 20
	}

	if strings.TrimSpace(c.Logging.Directory) == "" {
		c.Logging.Directory = "logs"
	}
	if strings.TrimSpace(c.Logging.FilenamePattern) == "" {
		c.Logging.FilenamePattern = "skycast-YYYYMMDD.log"
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxFiles <= 0 {
		c.Logging.MaxFiles = 7
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
}

// ApplyEnvOverrides lets the environment (or a .env file) supply secrets and
// deployment-specific values without editing the TOML file
func (c *Config) ApplyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		c.APIs.Anthropic = v
	}
	if v := strings.TrimSpace(os.Getenv("SKYCAST_ADDR")); v != "" {
		c.Server.Address = v
	}
	if v := strings.TrimSpace(os.Getenv("SKYCAST_CATALOG_PATH")); v != "" {
		c.Catalog.Path = v
	}
}

func (s Server) ReadTimeout() time.Duration     { return seconds(s.ReadTimeoutSec) }
func (s Server) WriteTimeout() time.Duration    { return seconds(s.WriteTimeoutSec) }
func (s Server) ShutdownTimeout() time.Duration { return seconds(s.ShutdownTimeoutSec) }
func (w Weather) Timeout() time.Duration        { return seconds(w.TimeoutSec) }
func (c Claude) Timeout() time.Duration         { return seconds(c.TimeoutSec) }
func (c Catalog) ConnectTimeout() time.Duration { return seconds(c.ConnectTimeoutSec) }
func (c Catalog) RequestTimeout() time.Duration { return seconds(c.RequestTimeoutSec) }

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ConfigNotFoundError represents a missing configuration file
type ConfigNotFoundError struct {
	Path string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration file not found: %s\n\nTo create a sample configuration file, run:\n  %s --generate-config", e.Path, filepath.Base(os.Args[0]))
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field       string
	Message     string
	Suggestions []string
}

func (e ValidationError) Error() string {
	if len(e.Suggestions) > 0 {
		return fmt.Sprintf("validation error in %s: %s (try: %s)", e.Field, e.Message, strings.Join(e.Suggestions, ", "))
	}
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors
type MultiValidationError struct {
	Errors []ValidationError
}

func (e *MultiValidationError) Error() string {
	var messages []string
	for _, err := range e.Errors {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  %s", strings.Join(messages, "\n  "))
}

// Validate checks the configuration for correctness and completeness
func (c *Config) Validate() error {
	var errs errorutil.ValidationErrors

	c.validateServer(&errs)
	c.validateAPIKeys(&errs)
	c.validateClaude(&errs)
	c.validateWeather(&errs)
	c.validateCatalog(&errs)
	c.validateLogging(&errs)

	if !errs.HasErrors() {
		return nil
	}
	errorutil.LogValidationErrors(logger.Get().Logger, &errs)

	multi := &MultiValidationError{}
	for _, e := range errs.Errors {
		multi.Errors = append(multi.Errors, ValidationError{Field: e.Field, Message: e.Message, Suggestions: e.Suggestions})
	}
	return multi
}

func (c *Config) validateServer(errs *errorutil.ValidationErrors) {
	errs.Append(errorutil.ValidateRequired("server.address", c.Server.Address))
	errs.Append(errorutil.ValidateIntRange("server.read_timeout_sec", c.Server.ReadTimeoutSec, 1, 300))
	errs.Append(errorutil.ValidateIntRange("server.write_timeout_sec", c.Server.WriteTimeoutSec, 1, 600))
	errs.Append(errorutil.ValidateIntRange("server.shutdown_timeout_sec", c.Server.ShutdownTimeoutSec, 1, 120))
}

// validateAPIKeys only checks the key shape; a blank key is allowed
func (c *Config) validateAPIKeys(errs *errorutil.ValidationErrors) {
	if strings.TrimSpace(c.APIs.Anthropic) == "" {
		return
	}
	errs.Append(errorutil.ValidateAPIKey("apis.anthropic", c.APIs.Anthropic, 10))
}

func (c *Config) validateClaude(errs *errorutil.ValidationErrors) {
	errs.Append(errorutil.ValidateRequired("claude.model", c.Claude.Model))
	errs.Append(errorutil.ValidateIntRange("claude.max_tokens", c.Claude.MaxTokens, 100, 4096))
	if c.Claude.Temperature != nil {
		errs.Append(errorutil.ValidateRange("claude.temperature", *c.Claude.Temperature, 0, 1))
	}
	errs.Append(errorutil.ValidateIntRange("claude.max_retries", c.Claude.MaxRetries, 0, 10))
	errs.Append(errorutil.ValidateIntRange("claude.rate_limit", c.Claude.RateLimit, 1, 1000))
	if c.Claude.BaseDelayMs > c.Claude.MaxDelayMs {
		errs.Add("claude.base_delay_ms", "order",
			fmt.Sprintf("base_delay_ms (%d) must not exceed max_delay_ms (%d)", c.Claude.BaseDelayMs, c.Claude.MaxDelayMs),
			c.Claude.BaseDelayMs)
	}
	if strings.TrimSpace(c.Claude.BaseURL) != "" {
		errs.Append(errorutil.ValidateURL("claude.base_url", c.Claude.BaseURL))
	}
}

func (c *Config) validateWeather(errs *errorutil.ValidationErrors) {
	errs.Append(errorutil.ValidateURL("weather.base_url", c.Weather.BaseURL))
	// Open-Meteo serves at most 16 forecast days
	errs.Append(errorutil.ValidateIntRange("weather.forecast_days", c.Weather.ForecastDays, 1, 16))
	errs.Append(errorutil.ValidateIntRange("weather.max_retries", c.Weather.MaxRetries, 0, 10))
}

func (c *Config) validateCatalog(errs *errorutil.ValidationErrors) {
	if !c.Catalog.DisableFallback {
		errs.Append(errorutil.ValidateURL("catalog.fallback_url", c.Catalog.FallbackURL))
	}
	if path := strings.TrimSpace(c.Catalog.Path); path != "" {
		if _, err := os.Stat(path); err != nil {
			errs.Add("catalog.path", "file_exists", fmt.Sprintf("cannot read catalog file: %v", err), path)
		}
	}
}

func (c *Config) validateLogging(errs *errorutil.ValidationErrors) {
	if strings.TrimSpace(c.Logging.Level) != "" {
		errs.Append(errorutil.ValidateEnum("logging.level", c.Logging.Level, []string{"debug", "info", "warn", "error"}))
	}
	errs.Append(errorutil.ValidateIntRange("logging.max_files", c.Logging.MaxFiles, 0, 365))
	errs.Append(errorutil.ValidateIntRange("logging.max_size_mb", c.Logging.MaxSizeMB, 0, 1000))

	if c.Logging.Enabled {
		errs.Append(errorutil.ValidateRequired("logging.directory", c.Logging.Directory))
		errs.Append(errorutil.ValidateRequired("logging.filename_pattern", c.Logging.FilenamePattern))
		if err := logger.ValidateFilenamePattern(c.Logging.FilenamePattern); err != nil {
			errs.Add("logging.filename_pattern", "filename", err.Error(),
				c.Logging.FilenamePattern, logger.GetSafeFilenamePatterns()...)
		}
	}
}

const sampleConfig = `# Skycast Configuration File
# City search, Open-Meteo forecasts and AI weather summaries

[server]
address = ":8080"                # Listen address (SKYCAST_ADDR overrides)
visitor_name = "Traveler"        # Name in the home page greeting
read_timeout_sec = 15
write_timeout_sec = 60
shutdown_timeout_sec = 10

[apis]
# Get your Anthropic API key at: https://console.anthropic.com/
# Leave empty to run without AI summaries. ANTHROPIC_API_KEY overrides.
anthropic = ""

[claude]
model = "claude-3-5-haiku-latest"
max_tokens = 512                 # 100-4096
temperature = 0.7                # 0-1, higher = more creative
max_retries = 3
base_delay_ms = 1000
max_delay_ms = 30000
rate_limit = 50                  # Requests per minute
timeout_sec = 30                 # Per attempt
base_url = ""                    # Empty uses the Anthropic default

[weather]
base_url = "https://api.open-meteo.com"
forecast_days = 3                # 1-16
timeout_sec = 15
max_retries = 2                  # Retries on 429/5xx

[catalog]
path = ""                        # Empty uses the catalog built into the binary
fallback_url = "https://raw.githubusercontent.com/isaric/weather-app/main/city_search/cities.json"
disable_fallback = false
connect_timeout_sec = 10
request_timeout_sec = 20

[logging]
enabled = true                              # Enable file logging
directory = "logs"                          # Relative to working dir or absolute
                                            # Windows default: %APPDATA%\Skycast\logs
                                            # macOS/Linux default: ~/.skycast/logs
filename_pattern = "skycast-YYYYMMDD.log"   # YYYY=year, MM=month, DD=day, HH=hour
level = "info"                              # debug, info, warn, error
max_files = 7                               # 0 = unlimited
max_size_mb = 10                            # 0 = unlimited
console_output = true
`

// GenerateSampleConfig writes a commented sample configuration file
func GenerateSampleConfig(configPath string) error {
	if err := errorutil.EnsureDirectoryWithLogging(nil, filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := errorutil.SafeFileWrite(nil, configPath, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write sample config: %w", err)
	}
	return nil
}
