package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/aiscrape/internal/app"
	"github.com/hyperifyio/aiscrape/internal/scrape"
)

// Exit codes.
const (
	exitOK          = 0
	exitFetch       = 1
	exitModel       = 2
	exitCredentials = 3
	// usage and config problems share the fetch code
	exitUsage = exitFetch
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	os.Exit(realMain(os.Args[1:], os.Stdout))
}

func realMain(args []string, stdout io.Writer) int {
	var (
		cfg         app.Config
		configPath  string
		envFiles    string
		showVersion bool
	)

	fs := flag.NewFlagSet("aiscrape", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: aiscrape [flags] <url>\n\nPrints the main content of the page at <url>.\n\nFlags:\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&cfg.LLMModel, "model", "", "Chat model name (env OPENAI_MODEL, LLM_MODEL; default "+scrape.DefaultModel+")")
	fs.StringVar(&cfg.LLMBaseURL, "llm.base", "", "OpenAI-compatible base URL (env OPENAI_BASE_URL, LLM_BASE_URL)")
	fs.StringVar(&cfg.LLMAPIKey, "llm.key", "", "API key (env OPENAI_API_KEY, LLM_API_KEY)")
	fs.DurationVar(&cfg.LLMTimeout, "llm.timeout", 0, "Timeout per model call (default 60s)")
	fs.IntVar(&cfg.LLMAttempts, "llm.attempts", 0, "Model attempts including the first (default 2)")
	fs.DurationVar(&cfg.FetchTimeout, "fetch.timeout", 0, "Timeout per page request (default 20s)")
	fs.IntVar(&cfg.FetchAttempts, "fetch.attempts", 0, "Page fetch attempts including the first (default 2)")
	fs.StringVar(&cfg.UserAgent, "fetch.ua", "", "User-Agent for page requests")
	fs.Int64Var(&cfg.MaxBodyBytes, "fetch.maxBytes", 0, "Maximum page size in bytes (default 10MiB)")
	fs.StringVar(&cfg.CacheDir, "cache.dir", "", "Cache directory for pages and answers; empty disables caching (env CACHE_DIR)")
	fs.DurationVar(&cfg.CacheMaxAge, "cache.maxAge", 0, "Purge cache entries older than this before the run; 0 disables")
	fs.BoolVar(&cfg.CacheClear, "cache.clear", false, "Clear the cache directory before the run")
	fs.BoolVar(&cfg.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	fs.StringVar(&envFiles, "env", ".env", "Comma-separated dotenv files to load; missing files are ignored")
	fs.BoolVar(&cfg.Verbose, "v", false, "Verbose logging")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if showVersion {
		fmt.Fprintln(stdout, app.VersionString())
		return exitOK
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}
	cfg.URL = strings.TrimSpace(fs.Arg(0))

	if err := app.LoadEnvFiles(strings.Split(envFiles, ",")...); err != nil {
		log.Error().Err(err).Msg("load env files")
		return exitUsage
	}
	app.ApplyEnvToConfig(&cfg)
	if configPath != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			log.Error().Err(err).Str("path", configPath).Msg("load config file")
			return exitUsage
		}
		app.ApplyFileConfig(&cfg, fc)
	}

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, stdout); err != nil {
		log.Error().Err(err).Str("url", cfg.URL).Msg("extraction failed")
		return exitCode(err)
	}
	return exitOK
}

func run(ctx context.Context, cfg app.Config, stdout io.Writer) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	return a.Run(ctx, stdout)
}

// exitCode maps the extractor's error kinds to the documented exit codes.
func exitCode(err error) int {
	var (
		ce *scrape.CredentialError
		me *scrape.ModelError
		fe *scrape.FetchError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ce):
		return exitCredentials
	case errors.As(err, &me):
		return exitModel
	case errors.As(err, &fe):
		return exitFetch
	default:
		return exitUsage
	}
}
