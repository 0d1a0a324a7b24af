// Package config provides configuration management for the relay server.
// It loads an optional YAML file, overlays environment variables and exposes
// a single immutable Config shared by every request.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kiosk-llm/relay/internal/constant"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost                   = "127.0.0.1"
	DefaultPort                   = 18080
	DefaultBackend                = constant.Local
	DefaultLocalBaseURL           = "http://127.0.0.1:8080"
	DefaultGeminiBaseURL          = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel            = "gemini-2.5-flash"
	DefaultUpstreamTimeoutSeconds = 120
	DefaultRetryMaxAttempts       = 3
	DefaultRetryDelaySeconds      = 60
)

// Config represents the relay configuration, loaded from YAML and overlaid by env and flags.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Host is the network interface the server binds to.
	Host string `yaml:"host" json:"host"`

	// Port is the TCP port the server listens on.
	Port int `yaml:"port" json:"port"`

	// Backend selects the upstream. Accepted names are listed in constant.CanonicalBackend.
	// An unknown value is kept as-is and every chat request is rejected with a 400.
	Backend string `yaml:"backend" json:"backend"`

	// LocalBaseURL is the base URL of the OpenAI-compatible local completion server.
	LocalBaseURL string `yaml:"llama-base" json:"llama-base"`

	// Gemini configures the Gemini backend.
	Gemini GeminiConfig `yaml:"gemini" json:"gemini"`

	// UpstreamTimeoutSeconds bounds non-streaming upstream calls and the wait for streaming
	// response headers.
	UpstreamTimeoutSeconds int `yaml:"upstream-timeout-seconds" json:"upstream-timeout-seconds"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size of log files in the logs directory.
	// <= 0 disables cleanup.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// GeminiConfig holds the Gemini API settings.
type GeminiConfig struct {
	// APIKey is sent as x-goog-api-key. Usually supplied via GEMINI_API_KEY.
	APIKey string `yaml:"api-key" json:"-"`

	// Model is the Gemini model every request is served by.
	Model string `yaml:"model" json:"model"`

	// BaseURL is the Gemini API root including the version segment.
	BaseURL string `yaml:"base-url" json:"base-url"`
}

// MetricsConfig controls the /metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// ErrMissingAPIKey is returned by Validate when the Gemini backend has no API key.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY not set")

// UnknownBackendError reports a backend name with no known alias.
type UnknownBackendError struct {
	Name string
}

func (e *UnknownBackendError) Error() string {
	return "Unknown backend: " + e.Name
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		SDKConfig: SDKConfig{
			RequestLog: true,
			Retry: RetryConfig{
				MaxAttempts:         DefaultRetryMaxAttempts,
				DefaultDelaySeconds: DefaultRetryDelaySeconds,
			},
		},
		Host:         DefaultHost,
		Port:         DefaultPort,
		Backend:      DefaultBackend,
		LocalBaseURL: DefaultLocalBaseURL,
		Gemini: GeminiConfig{
			Model:   DefaultGeminiModel,
			BaseURL: DefaultGeminiBaseURL,
		},
		UpstreamTimeoutSeconds: DefaultUpstreamTimeoutSeconds,
		Metrics:                MetricsConfig{Enabled: true},
	}
}

// LoadConfig reads the YAML configuration file at configFile over the defaults.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads the configuration file over the defaults. When optional is true
// a missing or empty file yields the defaults instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(configFile) == "" {
		if optional {
			cfg.Sanitize()
			return cfg, nil
		}
		return nil, errors.New("config: no configuration file given")
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg.Sanitize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.Sanitize()
	return cfg, nil
}

// LookupFunc returns the value of an environment variable and whether it was set.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays environment variables onto cfg. Blank values are ignored.
// Malformed numeric or boolean values are reported and leave the field unchanged.
func (cfg *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	var errs []error
	if v, ok := get("PROXY_HOST"); ok {
		cfg.Host = v
	}
	if v, ok := get("PROXY_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROXY_PORT: %w", err))
		} else {
			cfg.Port = port
		}
	}
	if v, ok := get("LLM_BACKEND"); ok {
		cfg.Backend = v
	}
	if v, ok := get("LLAMA_BASE"); ok {
		cfg.LocalBaseURL = v
	}
	if v, ok := get("GEMINI_API_KEY"); ok {
		cfg.Gemini.APIKey = v
	}
	if v, ok := get("GEMINI_MODEL"); ok {
		cfg.Gemini.Model = v
	}
	if v, ok := get("GEMINI_BASE_URL"); ok {
		cfg.Gemini.BaseURL = v
	}
	if v, ok := get("PROXY_URL"); ok {
		cfg.ProxyURL = v
	}
	if v, ok := get("PROXY_DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PROXY_DEBUG: %w", err))
		} else {
			cfg.Debug = debug
		}
	}
	cfg.Sanitize()
	return errors.Join(errs...)
}

// Sanitize normalizes names and URLs and restores defaults for out-of-range values.
func (cfg *Config) Sanitize() {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend == "" {
		cfg.Backend = DefaultBackend
	}
	if canonical, ok := constant.CanonicalBackend(cfg.Backend); ok {
		cfg.Backend = canonical
	}

	cfg.LocalBaseURL = strings.TrimRight(strings.TrimSpace(cfg.LocalBaseURL), "/")
	if cfg.LocalBaseURL == "" {
		cfg.LocalBaseURL = DefaultLocalBaseURL
	}

	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)
	cfg.Gemini.Model = strings.TrimSpace(cfg.Gemini.Model)
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = DefaultGeminiModel
	}
	cfg.Gemini.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Gemini.BaseURL), "/")
	if cfg.Gemini.BaseURL == "" {
		cfg.Gemini.BaseURL = DefaultGeminiBaseURL
	}

	cfg.ProxyURL = strings.TrimSpace(cfg.ProxyURL)
	if cfg.UpstreamTimeoutSeconds <= 0 {
		cfg.UpstreamTimeoutSeconds = DefaultUpstreamTimeoutSeconds
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = DefaultRetryMaxAttempts
	}
	if cfg.Retry.DefaultDelaySeconds <= 0 {
		cfg.Retry.DefaultDelaySeconds = DefaultRetryDelaySeconds
	}
	if cfg.Streaming.KeepAliveSeconds < 0 {
		cfg.Streaming.KeepAliveSeconds = 0
	}
}

// Validate reports the configuration error every chat request would be rejected with,
// or nil when requests can be served.
func (cfg *Config) Validate() error {
	backend, ok := constant.CanonicalBackend(cfg.Backend)
	if !ok {
		return &UnknownBackendError{Name: cfg.Backend}
	}
	if backend == constant.Gemini && cfg.Gemini.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Address returns the host:port the server listens on.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// UpstreamTimeout returns UpstreamTimeoutSeconds as a duration.
func (cfg *Config) UpstreamTimeout() time.Duration {
	return time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second
}

// RetryDefaultDelay returns Retry.DefaultDelaySeconds as a duration.
func (cfg *Config) RetryDefaultDelay() time.Duration {
	return time.Duration(cfg.Retry.DefaultDelaySeconds * float64(time.Second))
}
