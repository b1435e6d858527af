package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// ErrNoURL is returned by ValidateConfig when no URL was given.
var ErrNoURL = errors.New("config: a URL is required")

// Duration is a time.Duration that reads "30s" style strings from both YAML
// and JSON. Bare integers are nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("duration: want a string like \"30s\", got %s", string(b))
	}
	*d = Duration(n)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	switch n.Tag {
	case "!!null":
		return nil
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

// FileConfig is the YAML/JSON config file schema.
type FileConfig struct {
	LLM struct {
		BaseURL  string   `yaml:"base" json:"base"`
		Model    string   `yaml:"model" json:"model"`
		APIKey   string   `yaml:"key" json:"key"`
		Timeout  Duration `yaml:"timeout" json:"timeout"`
		Attempts int      `yaml:"attempts" json:"attempts"`
	} `yaml:"llm" json:"llm"`

	Fetch struct {
		UserAgent string   `yaml:"userAgent" json:"userAgent"`
		Timeout   Duration `yaml:"timeout" json:"timeout"`
		Attempts  int      `yaml:"attempts" json:"attempts"`
		MaxBytes  int64    `yaml:"maxBytes" json:"maxBytes"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// LoadConfigFile reads YAML or JSON into FileConfig, picking the decoder by
// extension and trying both for anything else.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays fc onto fields of cfg that are still unset, so
// flags and environment keep precedence over the file.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.LLMBaseURL == "" { cfg.LLMBaseURL = fc.LLM.BaseURL }
	if cfg.LLMModel == "" { cfg.LLMModel = fc.LLM.Model }
	if cfg.LLMAPIKey == "" { cfg.LLMAPIKey = fc.LLM.APIKey }
	if cfg.LLMTimeout == 0 { cfg.LLMTimeout = time.Duration(fc.LLM.Timeout) }
	if cfg.LLMAttempts == 0 { cfg.LLMAttempts = fc.LLM.Attempts }

	if cfg.UserAgent == "" { cfg.UserAgent = fc.Fetch.UserAgent }
	if cfg.FetchTimeout == 0 { cfg.FetchTimeout = time.Duration(fc.Fetch.Timeout) }
	if cfg.FetchAttempts == 0 { cfg.FetchAttempts = fc.Fetch.Attempts }
	if cfg.MaxBodyBytes == 0 { cfg.MaxBodyBytes = fc.Fetch.MaxBytes }

	if cfg.CacheDir == "" { cfg.CacheDir = fc.Cache.Dir }
	if cfg.CacheMaxAge == 0 { cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge) }
	if !cfg.CacheClear && fc.Cache.Clear { cfg.CacheClear = true }
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms { cfg.CacheStrictPerms = true }

	if !cfg.Verbose && fc.Verbose { cfg.Verbose = true }
}

// ValidateConfig checks settings that no default can fill. The credential is
// deliberately not checked here; the extractor reports it as a credential error.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return ErrNoURL
	}
	if cfg.FetchAttempts < 0 || cfg.LLMAttempts < 0 || cfg.MaxBodyBytes < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	if cfg.FetchTimeout < 0 || cfg.LLMTimeout < 0 || cfg.CacheMaxAge < 0 {
		return errors.New("config: negative durations are not allowed")
	}
	return nil
}
