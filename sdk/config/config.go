// Package config provides the public SDK configuration API.
//
// It re-exports the server configuration types and helpers so external projects can
// embed the relay without importing internal packages.
package config

import internalconfig "github.com/kiosk-llm/relay/internal/config"

type SDKConfig = internalconfig.SDKConfig

type Config = internalconfig.Config

type StreamingConfig = internalconfig.StreamingConfig
type RetryConfig = internalconfig.RetryConfig
type GeminiConfig = internalconfig.GeminiConfig
type MetricsConfig = internalconfig.MetricsConfig

type UnknownBackendError = internalconfig.UnknownBackendError

var ErrMissingAPIKey = internalconfig.ErrMissingAPIKey

func Default() *Config { return internalconfig.Default() }

func LoadConfig(configFile string) (*Config, error) { return internalconfig.LoadConfig(configFile) }

func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	return internalconfig.LoadConfigOptional(configFile, optional)
}
