package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ivikasavnish/salonbook/pkg/booking"
	"github.com/ivikasavnish/salonbook/pkg/browser"
)

// Payload schemas accepted by the webhook. Only one is active per deployment.
const (
	SchemaFlat   = "flat"
	SchemaNested = "nested"
)

// DefaultBookingURL is the DaySmart booking plugin for the salon.
const DefaultBookingURL = "https://plugin.mysalononline.com/External/BookingPlugin/?sid=0&guid=2916c169-4ac8-4384-8161-c996c086627b"

// Config is built once at startup and only read afterwards.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Booking BookingConfig `yaml:"booking"`
	Logging LoggingConfig `yaml:"logging"`
	Trace   TraceConfig   `yaml:"trace"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	Schema          string        `yaml:"schema"`
	MetricsPort     int           `yaml:"metrics_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type BrowserConfig struct {
	Headless bool             `yaml:"headless"`
	SlowMo   time.Duration    `yaml:"slow_mo"`
	BinPath  string           `yaml:"bin_path"`
	ViewPort browser.ViewPort `yaml:"viewport"`
	// ActionTimeout bounds each click, query or keystroke. Zero disables it.
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

type BookingConfig struct {
	URL                string                     `yaml:"url"`
	TimePreferenceMode booking.TimePreferenceMode `yaml:"time_preference_mode"`
	Timings            booking.Timings            `yaml:"timings"`
	// Defaults fill whatever a direct run's request file leaves out.
	Defaults booking.Request `yaml:"defaults"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type TraceConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			MaxBodyBytes:    1_000_000,
			Schema:          SchemaFlat,
			ShutdownTimeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			SlowMo:        300 * time.Millisecond,
			ViewPort:      browser.DefaultViewPort,
			ActionTimeout: booking.DefaultActionTimeout,
		},
		Booking: BookingConfig{
			URL:                DefaultBookingURL,
			TimePreferenceMode: booking.TimePreferenceSkip,
			Timings:            booking.DefaultTimings(),
			Defaults: booking.Request{
				TimePreference: booking.AnyTime,
				Employee:       booking.DefaultEmployee,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load reads an optional .env file, then the YAML file at path (skipped when
// path is empty), then environment variables, and validates the result.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		expanded := []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Server.Schema = strings.ToLower(getEnv("WEBHOOK_SCHEMA", c.Server.Schema))
	c.Server.MetricsPort = getEnvAsInt("METRICS_PORT", c.Server.MetricsPort)
	c.Browser.Headless = getEnvAsBool("HEADLESS", c.Browser.Headless)
	c.Browser.SlowMo = time.Duration(getEnvAsInt("SLOW_MO", int(c.Browser.SlowMo/time.Millisecond))) * time.Millisecond
	c.Browser.BinPath = getEnv("BROWSER_BIN", c.Browser.BinPath)
	c.Browser.ActionTimeout = time.Duration(getEnvAsInt("ACTION_TIMEOUT",
		int(c.Browser.ActionTimeout/time.Millisecond))) * time.Millisecond
	c.Booking.URL = getEnv("BOOKING_URL", c.Booking.URL)
	c.Booking.TimePreferenceMode = booking.TimePreferenceMode(strings.ToLower(
		getEnv("TIME_PREFERENCE_MODE", string(c.Booking.TimePreferenceMode))))
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Trace.Dir = getEnv("TRACE_DIR", c.Trace.Dir)
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("server.metrics_port %d out of range", c.Server.MetricsPort)
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		return errors.New("server.metrics_port must differ from server.port")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New("server.max_body_bytes must be positive")
	}
	if c.Browser.ActionTimeout < 0 {
		return errors.New("browser.action_timeout must not be negative")
	}
	switch c.Server.Schema {
	case SchemaFlat, SchemaNested:
	default:
		return fmt.Errorf("server.schema must be %q or %q, got %q", SchemaFlat, SchemaNested, c.Server.Schema)
	}
	switch c.Booking.TimePreferenceMode {
	case booking.TimePreferenceSkip, booking.TimePreferenceKeyboard:
	default:
		return fmt.Errorf("booking.time_preference_mode must be %q or %q, got %q",
			booking.TimePreferenceSkip, booking.TimePreferenceKeyboard, c.Booking.TimePreferenceMode)
	}
	if c.Booking.URL == "" {
		return errors.New("booking.url is required")
	}
	return nil
}

// BaseRequest is the request every booking starts from before the caller's
// fields are merged in. Each call returns a fresh copy.
func (c Config) BaseRequest() booking.Request {
	req := c.Booking.Defaults
	req.URL = c.Booking.URL
	req.Headless = c.Browser.Headless
	req.SlowMo = c.Browser.SlowMo
	if req.Employee == "" {
		req.Employee = booking.DefaultEmployee
	}
	return req
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
