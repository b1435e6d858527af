package app

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/aiscrape/internal/cache"
	"github.com/hyperifyio/aiscrape/internal/fetch"
	"github.com/hyperifyio/aiscrape/internal/llm"
	"github.com/hyperifyio/aiscrape/internal/scrape"
)

// App wires configuration to a ready Extractor.
type App struct {
	cfg       Config
	extractor *scrape.Extractor
}

// New validates cfg and builds the fetcher, the model client and the
// extractor. It performs no network I/O, so a missing credential is reported
// by Run before anything is fetched.
func New(cfg Config) (*App, error) {
	ApplyDefaults(&cfg)
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	backstop := cfg.FetchTimeout
	if cfg.LLMTimeout > backstop {
		backstop = cfg.LLMTimeout
	}
	httpClient := newHTTPClient(backstop)

	var httpCache *cache.HTTPCache
	var opts []scrape.Option
	if cfg.CacheDir != "" {
		if cfg.CacheClear {
			if err := cache.ClearDir(cfg.CacheDir); err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache clear failed")
			}
		}
		if cfg.CacheMaxAge > 0 {
			st, err := cache.Purge(cfg.CacheDir, cfg.CacheMaxAge)
			if err != nil {
				log.Warn().Err(err).Str("dir", cfg.CacheDir).Msg("cache purge failed")
			} else if st.Pages+st.Answers > 0 {
				log.Debug().Int("pages", st.Pages).Int("answers", st.Answers).Msg("purged expired cache entries")
			}
		}
		httpCache = &cache.HTTPCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}
		opts = append(opts, scrape.WithCache(&cache.LLMCache{Dir: cfg.CacheDir, StrictPerms: cfg.CacheStrictPerms}))
	}

	fetcher := &fetch.Client{
		HTTPClient:        httpClient,
		UserAgent:         cfg.UserAgent,
		MaxAttempts:       cfg.FetchAttempts,
		PerRequestTimeout: cfg.FetchTimeout,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Cache:             httpCache,
		BypassCache:       cfg.CacheClear,
		RedirectMaxHops:   5,
	}
	client := llm.NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL, httpClient)

	ex := scrape.New(scrape.Config{
		APIKey:      cfg.LLMAPIKey,
		Model:       cfg.LLMModel,
		MaxAttempts: cfg.LLMAttempts,
		CallTimeout: cfg.LLMTimeout,
	}, fetcher, client, opts...)

	return &App{cfg: cfg, extractor: ex}, nil
}

// Run extracts the main content of the configured URL and writes it to w
// followed by a newline. On error nothing is written.
func (a *App) Run(ctx context.Context, w io.Writer) error {
	log.Debug().Str("url", a.cfg.URL).Str("model", a.extractor.Model()).Msg("extracting")
	res, err := a.extractor.Extract(ctx, a.cfg.URL)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, res.MainContent); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("url", a.cfg.URL).Int("start", res.Range.Start).Int("end", res.Range.End).Msg("extracted main content")
	return nil
}
