package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvToConfig populates unset fields of cfg from environment variables.
// Explicit cfg values take precedence over env. OPENAI_* names win over the
// generic LLM_* names when both are set.
func ApplyEnvToConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = firstEnv("OPENAI_API_KEY", "LLM_API_KEY")
	}
	if cfg.LLMBaseURL == "" {
		cfg.LLMBaseURL = firstEnv("OPENAI_BASE_URL", "LLM_BASE_URL")
	}
	if cfg.LLMModel == "" {
		cfg.LLMModel = firstEnv("OPENAI_MODEL", "LLM_MODEL")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = os.Getenv("CACHE_DIR")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("FETCH_USER_AGENT")
	}

	setDuration := func(dst *time.Duration, key string) {
		if *dst != 0 {
			return
		}
		if s := strings.TrimSpace(os.Getenv(key)); s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				*dst = d
			}
		}
	}
	setDuration(&cfg.CacheMaxAge, "CACHE_MAX_AGE")
	setDuration(&cfg.FetchTimeout, "FETCH_TIMEOUT")
	setDuration(&cfg.LLMTimeout, "LLM_TIMEOUT")

	setInt := func(dst *int, key string) {
		if *dst != 0 {
			return
		}
		if n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key))); err == nil && n > 0 {
			*dst = n
		}
	}
	setInt(&cfg.FetchAttempts, "FETCH_ATTEMPTS")
	setInt(&cfg.LLMAttempts, "LLM_ATTEMPTS")

	setBool := func(dst *bool, key string) {
		if *dst {
			return
		}
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes", "on":
			*dst = true
		}
	}
	setBool(&cfg.Verbose, "VERBOSE")
	setBool(&cfg.CacheClear, "CACHE_CLEAR")
	setBool(&cfg.CacheStrictPerms, "CACHE_STRICT_PERMS")
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}
