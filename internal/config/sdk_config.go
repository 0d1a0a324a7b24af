package config

// SDKConfig holds the settings that shape how requests are sent upstream and streamed back.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are socks5, http and https.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestLog enables logging of each chat request's input (parameters and truncated messages).
	// Defaults to true.
	RequestLog bool `yaml:"request-log" json:"request-log"`

	// Streaming configures server-side streaming behavior.
	Streaming StreamingConfig `yaml:"streaming" json:"streaming"`

	// Retry configures how upstream 429 responses are retried on streaming requests.
	Retry RetryConfig `yaml:"retry" json:"retry"`
}

// StreamingConfig holds server streaming behavior configuration.
type StreamingConfig struct {
	// KeepAliveSeconds controls how often the server emits SSE heartbeats (": keep-alive\n\n").
	// <= 0 disables keep-alives. Default is 0.
	KeepAliveSeconds int `yaml:"keepalive-seconds,omitempty" json:"keepalive-seconds,omitempty"`
}

// RetryConfig bounds the rate limit retry loop.
type RetryConfig struct {
	// MaxAttempts is the total number of upstream attempts, including the first. Default is 3.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`

	// DefaultDelaySeconds is the wait used when a 429 carries no parsable retryDelay. Default is 60.
	DefaultDelaySeconds float64 `yaml:"default-delay-seconds" json:"default-delay-seconds"`
}
