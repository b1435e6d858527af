package scrape

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperifyio/aiscrape/internal/bounds"
	"github.com/hyperifyio/aiscrape/internal/cache"
	"github.com/hyperifyio/aiscrape/internal/extract"
	"github.com/hyperifyio/aiscrape/internal/fetch"
)

const examplePage = `<html><nav>Home</nav><body>Hello world. This is the article.</body></html>`

type stubFetcher struct {
	body  string
	ct    string
	err   error
	calls int
}

func (f *stubFetcher) Get(_ context.Context, _ string) ([]byte, string, error) {
	f.calls++
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte(f.body), f.ct, nil
}

// scriptedClient replies with the next entry of replies; an error entry is
// returned as the call error.
type scriptedClient struct {
	replies []any
	calls   int
	lastReq openai.ChatCompletionRequest
}

func (c *scriptedClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.lastReq = req
	i := c.calls
	c.calls++
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	switch v := c.replies[i].(type) {
	case error:
		return openai.ChatCompletionResponse{}, v
	case string:
		return openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: v},
			}},
		}, nil
	}
	return openai.ChatCompletionResponse{}, nil
}

func newTestExtractor(f Fetcher, c *scriptedClient, opts ...Option) *Extractor {
	return New(Config{APIKey: "sk-test", Model: "test-model", RetryBaseDelay: time.Millisecond}, f, c, opts...)
}

func TestExtract_EndToEndMarkers(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{"BEGIN": "Hello world.", "END": "This is the article."}`}}
	res, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MainContent != "Hello world. This is the article." {
		t.Fatalf("main content = %q", res.MainContent)
	}
	if res.Page.URL != "http://example.test/page" || res.Page.VisibleText != "Hello world. This is the article." {
		t.Fatalf("unexpected page: %+v", res.Page)
	}
}

func TestExtract_ValidOffsetsReturnExactSlice(t *testing.T) {
	f := &stubFetcher{body: `<body><p>Menu Links</p><p>The real story.</p><p>Footer</p></body>`, ct: "text/html"}
	// visible text: "Menu Links The real story. Footer"
	c := &scriptedClient{replies: []any{`{"BEGIN": 11, "END": 26}`}}
	res, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MainContent != "The real story." {
		t.Fatalf("main content = %q", res.MainContent)
	}
	if res.Range != (bounds.Range{Start: 11, End: 26}) {
		t.Fatalf("range = %+v", res.Range)
	}
}

func TestExtract_RequestShape(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{"BEGIN": "Hello", "END": "article."}`}}
	if _, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := c.lastReq
	if req.Model != "test-model" {
		t.Fatalf("model = %q", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Content != bounds.SystemPrompt || req.Messages[1].Content != "Hello world. This is the article." {
		t.Fatalf("unexpected messages: %+v", req.Messages)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatalf("expected JSON response format")
	}
}

func TestExtract_MissingCredentialMakesNoCalls(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{}`}}
	e := New(Config{Model: "test-model"}, f, c)
	_, err := e.Extract(context.Background(), "http://example.test/page")
	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if f.calls != 0 || c.calls != 0 {
		t.Fatalf("expected no network calls, fetch=%d model=%d", f.calls, c.calls)
	}
}

func TestExtract_FetchFailureSkipsModel(t *testing.T) {
	f := &stubFetcher{err: &fetch.StatusError{Code: http.StatusNotFound}}
	c := &scriptedClient{replies: []any{`{"BEGIN": "a", "END": "b"}`}}
	_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/missing")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.URL != "http://example.test/missing" {
		t.Fatalf("FetchError URL = %q", fe.URL)
	}
	var se *fetch.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected wrapped StatusError, got %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("model called %d times after fetch failure", c.calls)
	}
}

func TestExtract_NoVisibleTextIsFetchError(t *testing.T) {
	f := &stubFetcher{body: `<html><body><script>app()</script></body></html>`, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{}`}}
	_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/spa")
	if !errors.Is(err, ErrNoVisibleText) {
		t.Fatalf("expected ErrNoVisibleText, got %v", err)
	}
	if c.calls != 0 {
		t.Fatalf("model should not be called")
	}
}

func TestExtract_UnparseableIsModelError(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{"The main content starts at Hello."}}
	res, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	var me *ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected ModelError, got %v", err)
	}
	if !errors.Is(err, bounds.ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable cause, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no partial result")
	}
	if c.calls != 2 {
		t.Fatalf("expected default 2 attempts, got %d", c.calls)
	}
}

func TestExtract_OutOfRangeOffsetsAreModelError(t *testing.T) {
	for _, reply := range []string{`{"BEGIN": 10, "END": 5}`, `{"BEGIN": 0, "END": 9999}`} {
		f := &stubFetcher{body: examplePage, ct: "text/html"}
		c := &scriptedClient{replies: []any{reply}}
		_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
		var me *ModelError
		if !errors.As(err, &me) || !errors.Is(err, bounds.ErrOutOfRange) {
			t.Fatalf("%s: expected ModelError with ErrOutOfRange, got %v", reply, err)
		}
	}
}

func TestExtract_MarkerNotFoundIsModelError(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{"BEGIN": "Lorem ipsum", "END": "dolor"}`}}
	_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	if !errors.Is(err, bounds.ErrMarkerNotFound) {
		t.Fatalf("expected ErrMarkerNotFound, got %v", err)
	}
}

func TestExtract_RetriesTransientCallFailure(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{
		&openai.APIError{HTTPStatusCode: http.StatusServiceUnavailable, Message: "overloaded"},
		`{"BEGIN": "Hello world.", "END": "article."}`,
	}}
	res, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	if err != nil {
		t.Fatalf("expected success after retry, got %v", err)
	}
	if res.MainContent != "Hello world. This is the article." || c.calls != 2 {
		t.Fatalf("unexpected result %q after %d calls", res.MainContent, c.calls)
	}
}

func TestExtract_RejectedKeyIsCredentialError(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{&openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "invalid key"}}}
	_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	var ce *CredentialError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CredentialError, got %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("auth failures must not be retried, got %d calls", c.calls)
	}
}

func TestExtract_EmptyChoicesIsModelError(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{nil}}
	_, err := newTestExtractor(f, c).Extract(context.Background(), "http://example.test/page")
	var me *ModelError
	if !errors.As(err, &me) {
		t.Fatalf("expected ModelError, got %v", err)
	}
}

func TestExtract_UsesAnswerCache(t *testing.T) {
	lc := &cache.LLMCache{Dir: t.TempDir()}
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{"BEGIN": "This is", "END": "article."}`}}
	e := newTestExtractor(f, c, WithCache(lc))

	first, err := e.Extract(context.Background(), "http://example.test/page")
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := e.Extract(context.Background(), "http://example.test/page")
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected cached answer on second run, model calls = %d", c.calls)
	}
	if first.MainContent != "This is the article." || second.MainContent != first.MainContent {
		t.Fatalf("unexpected content %q / %q", first.MainContent, second.MainContent)
	}
}

type failingText struct{}

func (failingText) Extract([]byte, string) (extract.Document, error) {
	return extract.Document{}, errors.New("cannot decode")
}

func TestExtract_TextReductionFailureIsFetchError(t *testing.T) {
	f := &stubFetcher{body: examplePage, ct: "text/html"}
	c := &scriptedClient{replies: []any{`{}`}}
	_, err := newTestExtractor(f, c, WithTextExtractor(failingText{})).Extract(context.Background(), "http://example.test/page")
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{APIKey: "k"}, &stubFetcher{}, &scriptedClient{})
	if e.Model() != DefaultModel {
		t.Fatalf("model = %q, want %q", e.Model(), DefaultModel)
	}
	if e.cfg.MaxAttempts != 2 || e.cfg.CallTimeout != 60*time.Second || e.cfg.ReservedOutputTokens != 256 {
		t.Fatalf("unexpected defaults: %+v", e.cfg)
	}
}
