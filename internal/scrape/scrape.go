// Package scrape fetches a page and asks a chat model which span of its
// visible text is the main content.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/aiscrape/internal/bounds"
	"github.com/hyperifyio/aiscrape/internal/budget"
	"github.com/hyperifyio/aiscrape/internal/cache"
	"github.com/hyperifyio/aiscrape/internal/extract"
	"github.com/hyperifyio/aiscrape/internal/llm"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// ErrNoVisibleText is wrapped in a FetchError when a page has nothing to read.
var ErrNoVisibleText = errors.New("page has no visible text")

// Fetcher retrieves a page body and its Content-Type.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, string, error)
}

// Config carries everything the Extractor needs. The credential is passed in
// explicitly; the Extractor never reads the environment.
type Config struct {
	APIKey string
	Model  string
	// MaxAttempts bounds model calls, including the first. Zero means 2.
	MaxAttempts int
	// RetryBaseDelay is the first backoff between attempts; it doubles. Zero means 500ms.
	RetryBaseDelay time.Duration
	// CallTimeout bounds each model call. Zero means 60s.
	CallTimeout time.Duration
	// ReservedOutputTokens is kept free in the context window for the answer. Zero means 256.
	ReservedOutputTokens int
}

// Page is the fetched page. It is not modified after creation.
type Page struct {
	URL         string
	RawHTML     []byte
	ContentType string
	Title       string
	VisibleText string
}

// Result is a successful extraction. MainContent is exactly the characters
// of Page.VisibleText covered by Range.
type Result struct {
	Page        Page
	Range       bounds.Range
	MainContent string
}

// Extractor runs fetch, text reduction, the model call and slicing.
type Extractor struct {
	cfg     Config
	fetcher Fetcher
	client  llm.Client
	text    extract.Extractor
	cache   *cache.LLMCache
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCache reuses resolved answers across runs.
func WithCache(c *cache.LLMCache) Option {
	return func(e *Extractor) { e.cache = c }
}

// WithTextExtractor replaces the default HTML to text reduction.
func WithTextExtractor(x extract.Extractor) Option {
	return func(e *Extractor) { e.text = x }
}

// New returns an Extractor. Zero Config fields take their documented defaults.
func New(cfg Config, f Fetcher, c llm.Client, opts ...Option) *Extractor {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 60 * time.Second
	}
	if cfg.ReservedOutputTokens <= 0 {
		cfg.ReservedOutputTokens = 256
	}
	e := &Extractor{cfg: cfg, fetcher: f, client: c, text: extract.TextExtractor{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Model returns the configured model name.
func (e *Extractor) Model() string { return e.cfg.Model }

// Extract returns the main content of the page at url. Errors are
// *CredentialError, *FetchError or *ModelError; nothing partial is returned.
func (e *Extractor) Extract(ctx context.Context, url string) (*Result, error) {
	if strings.TrimSpace(e.cfg.APIKey) == "" {
		return nil, &CredentialError{Reason: "no API key configured (set OPENAI_API_KEY)"}
	}
	page, err := e.load(ctx, url)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("url", url).Str("title", page.Title).Int("chars", len([]rune(page.VisibleText))).Msg("page loaded")

	r, err := e.locate(ctx, page.VisibleText)
	if err != nil {
		return nil, err
	}
	main, err := bounds.Slice(page.VisibleText, r)
	if err != nil {
		return nil, &ModelError{Model: e.cfg.Model, Err: err}
	}
	log.Debug().Int("start", r.Start).Int("end", r.End).Msg("main content located")
	return &Result{Page: page, Range: r, MainContent: main}, nil
}

func (e *Extractor) load(ctx context.Context, url string) (Page, error) {
	body, ct, err := e.fetcher.Get(ctx, url)
	if err != nil {
		return Page{}, &FetchError{URL: url, Err: err}
	}
	doc, err := e.text.Extract(body, ct)
	if err != nil {
		return Page{}, &FetchError{URL: url, Err: err}
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Page{}, &FetchError{URL: url, Err: ErrNoVisibleText}
	}
	return Page{URL: url, RawHTML: body, ContentType: ct, Title: doc.Title, VisibleText: doc.Text}, nil
}

// locate asks the model for bounds, retrying with exponential backoff when
// the call fails or the answer does not resolve against text.
func (e *Extractor) locate(ctx context.Context, text string) (bounds.Range, error) {
	prompt, truncated := budget.FitText(e.cfg.Model, e.cfg.ReservedOutputTokens, bounds.SystemPrompt, text)
	if truncated {
		log.Warn().Str("model", e.cfg.Model).Int("sent_chars", len([]rune(prompt))).Int("total_chars", len([]rune(text))).Msg("page text truncated to fit model context")
	}
	key := cache.KeyFrom(e.cfg.Model, bounds.SystemPrompt+"\n\n"+prompt)
	if e.cache != nil {
		if raw, ok, _ := e.cache.Get(ctx, key); ok {
			if r, err := resolveAnswer(text, string(raw)); err == nil {
				log.Debug().Str("model", e.cfg.Model).Msg("answer served from cache")
				return r, nil
			}
		}
	}

	var lastErr error
	for i := 0; i < e.cfg.MaxAttempts; i++ {
		if i > 0 {
			delay := e.cfg.RetryBaseDelay << (i - 1)
			log.Debug().Err(lastErr).Int("attempt", i+1).Dur("backoff", delay).Msg("model retry")
			select {
			case <-ctx.Done():
				return bounds.Range{}, &ModelError{Model: e.cfg.Model, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}
		content, err := e.complete(ctx, prompt)
		if err != nil {
			if llm.IsAuthError(err) {
				return bounds.Range{}, &CredentialError{Reason: "API rejected the key", Err: err}
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		r, err := resolveAnswer(text, content)
		if err != nil {
			lastErr = err
			continue
		}
		if e.cache != nil {
			if err := e.cache.Save(ctx, key, []byte(content)); err != nil {
				log.Warn().Err(err).Msg("answer cache save failed")
			}
		}
		return r, nil
	}
	return bounds.Range{}, &ModelError{Model: e.cfg.Model, Err: lastErr}
}

func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: bounds.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
		Temperature:    0,
		N:              1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func resolveAnswer(text, content string) (bounds.Range, error) {
	a, err := bounds.Parse(content)
	if err != nil {
		return bounds.Range{}, err
	}
	return bounds.Resolve(text, a)
}
