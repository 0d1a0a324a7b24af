package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigOptional_Defaults(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}
	if cfg.Address() != "127.0.0.1:18080" {
		t.Fatalf("address = %q", cfg.Address())
	}
	if cfg.Backend != "local" || cfg.LocalBaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("backend = %q base = %q", cfg.Backend, cfg.LocalBaseURL)
	}
	if cfg.Gemini.Model != "gemini-2.5-flash" || cfg.Gemini.BaseURL != DefaultGeminiBaseURL {
		t.Fatalf("gemini = %+v", cfg.Gemini)
	}
	if cfg.UpstreamTimeout() != 120*time.Second {
		t.Fatalf("timeout = %v", cfg.UpstreamTimeout())
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.RetryDefaultDelay() != 60*time.Second {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics should default to enabled")
	}
	if !cfg.RequestLog {
		t.Fatal("request input logging should default to enabled")
	}
}

func TestLoadConfigOptional_MissingRequired(t *testing.T) {
	if _, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatal("expected error for missing required config")
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
host: 0.0.0.0
port: 9000
backend: " Google "
llama-base: http://llama:8080/
proxy-url: socks5://127.0.0.1:1080
request-log: false
gemini:
  model: gemini-2.0-flash
  base-url: http://fake/v1beta/
retry:
  max-attempts: 5
  default-delay-seconds: 1.5
metrics:
  enabled: false
streaming:
  keepalive-seconds: 15
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Address() != "0.0.0.0:9000" {
		t.Fatalf("address = %q", cfg.Address())
	}
	if cfg.Backend != "gemini" {
		t.Fatalf("backend = %q, want gemini", cfg.Backend)
	}
	if cfg.LocalBaseURL != "http://llama:8080" || cfg.Gemini.BaseURL != "http://fake/v1beta" {
		t.Fatalf("urls not trimmed: %q %q", cfg.LocalBaseURL, cfg.Gemini.BaseURL)
	}
	if cfg.Gemini.Model != "gemini-2.0-flash" {
		t.Fatalf("model = %q", cfg.Gemini.Model)
	}
	if cfg.RequestLog || cfg.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("sdk config = %+v", cfg.SDKConfig)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.RetryDefaultDelay() != 1500*time.Millisecond {
		t.Fatalf("retry = %+v", cfg.Retry)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics should be disabled")
	}
	if cfg.Streaming.KeepAliveSeconds != 15 {
		t.Fatalf("keepalive = %d", cfg.Streaming.KeepAliveSeconds)
	}
	if cfg.UpstreamTimeoutSeconds != DefaultUpstreamTimeoutSeconds {
		t.Fatalf("timeout default lost: %d", cfg.UpstreamTimeoutSeconds)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "port: [")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PROXY_HOST":     "0.0.0.0",
		"PROXY_PORT":     "8081",
		"LLM_BACKEND":    "aistudio",
		"LLAMA_BASE":     "http://10.0.0.2:8080",
		"GEMINI_API_KEY": "  secret  ",
		"GEMINI_MODEL":   "",
		"PROXY_DEBUG":    "true",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.Address() != "0.0.0.0:8081" || cfg.Backend != "gemini" || !cfg.Debug {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Gemini.APIKey != "secret" {
		t.Fatalf("api key = %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != DefaultGeminiModel {
		t.Fatalf("blank env must not override model: %q", cfg.Gemini.Model)
	}
	if cfg.LocalBaseURL != "http://10.0.0.2:8080" {
		t.Fatalf("llama base = %q", cfg.LocalBaseURL)
	}
}

func TestApplyEnv_BadValues(t *testing.T) {
	env := map[string]string{"PROXY_PORT": "eighty", "PROXY_DEBUG": "maybe"}
	cfg := Default()
	err := cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	if err == nil {
		t.Fatal("expected error for malformed values")
	}
	if cfg.Port != DefaultPort || cfg.Debug {
		t.Fatalf("malformed values must leave defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("local backend: %v", err)
	}

	cfg.Backend = "gemini"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("gemini without key: %v", err)
	}
	cfg.Gemini.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("gemini with key: %v", err)
	}

	cfg.Backend = "openrouter"
	cfg.Sanitize()
	err := cfg.Validate()
	var unknown *UnknownBackendError
	if !errors.As(err, &unknown) || unknown.Name != "openrouter" {
		t.Fatalf("unknown backend: %v", err)
	}
	if err.Error() != "Unknown backend: openrouter" {
		t.Fatalf("message = %q", err.Error())
	}
}
