package app

import "time"

// Config holds runtime configuration for one extraction.
type Config struct {
	URL string

	// LLM
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string
	LLMTimeout  time.Duration
	LLMAttempts int

	// Fetch
	UserAgent     string
	FetchTimeout  time.Duration
	FetchAttempts int
	MaxBodyBytes  int64

	// Cache; an empty CacheDir disables both caches.
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	Verbose bool
}

const (
	defaultUserAgent     = "aiscrape/1.0 (+https://github.com/hyperifyio/aiscrape)"
	defaultFetchTimeout  = 20 * time.Second
	defaultFetchAttempts = 2
	defaultLLMTimeout    = 60 * time.Second
	defaultLLMAttempts   = 2
)

// ApplyDefaults fills every still-unset field with its built-in default.
// It runs last, after flags, environment and config file.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = defaultFetchTimeout
	}
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = defaultFetchAttempts
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	if cfg.LLMAttempts <= 0 {
		cfg.LLMAttempts = defaultLLMAttempts
	}
}
