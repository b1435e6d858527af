package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hyperifyio/aiscrape/internal/scrape"
)

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{&scrape.FetchError{URL: "u", Err: errors.New("dns")}, 1},
		{fmt.Errorf("run: %w", &scrape.ModelError{Model: "m", Err: errors.New("bad")}), 2},
		{&scrape.CredentialError{Reason: "missing"}, 3},
		{errors.New("init app: config"), 1},
	}
	for _, c := range cases {
		if got := exitCode(c.err); got != c.want {
			t.Fatalf("exitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestRealMain_Usage(t *testing.T) {
	var out bytes.Buffer
	if code := realMain([]string{"-env="}, &out); code != exitUsage {
		t.Fatalf("code = %d, want %d", code, exitUsage)
	}
	if out.Len() != 0 {
		t.Fatalf("usage must not go to stdout")
	}
}

func TestRealMain_Version(t *testing.T) {
	var out bytes.Buffer
	if code := realMain([]string{"-version"}, &out); code != exitOK {
		t.Fatalf("code = %d", code)
	}
	if !strings.HasPrefix(out.String(), "aiscrape ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
}

func TestRealMain_MissingCredential(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LLM_API_KEY", "")
	var hits int32
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer page.Close()

	var out bytes.Buffer
	if code := realMain([]string{"-env=", page.URL}, &out); code != exitCredentials {
		t.Fatalf("code = %d, want %d", code, exitCredentials)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("page fetched despite missing credential")
	}
}

func TestRealMain_EndToEnd(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><nav>Home</nav><body>Hello world. This is the article.</body></html>`))
	}))
	defer page.Close()
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"BEGIN\": 0, \"END\": 33}"},"finish_reason":"stop"}]}`))
	}))
	defer model.Close()

	var out bytes.Buffer
	args := []string{"-env=", "-llm.key=sk-test", "-llm.base=" + model.URL + "/v1", "-model=test-model", page.URL + "/page"}
	if code := realMain(args, &out); code != exitOK {
		t.Fatalf("code = %d, want 0", code)
	}
	if out.String() != "Hello world. This is the article.\n" {
		t.Fatalf("stdout = %q", out.String())
	}
}

func TestRealMain_FetchFailureCode(t *testing.T) {
	page := httptest.NewServer(http.NotFoundHandler())
	defer page.Close()
	var out bytes.Buffer
	args := []string{"-env=", "-llm.key=sk-test", "-llm.base=http://127.0.0.1:1/v1", "-fetch.attempts=1", page.URL}
	if code := realMain(args, &out); code != exitFetch {
		t.Fatalf("code = %d, want %d", code, exitFetch)
	}
}

func TestRealMain_ModelFailureCode(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<p>Hello world.</p>`))
	}))
	defer page.Close()
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"BEGIN\": 5, \"END\": 500}"},"finish_reason":"stop"}]}`))
	}))
	defer model.Close()

	var out bytes.Buffer
	args := []string{"-env=", "-llm.key=sk-test", "-llm.base=" + model.URL + "/v1", "-llm.attempts=1", page.URL}
	if code := realMain(args, &out); code != exitModel {
		t.Fatalf("code = %d, want %d", code, exitModel)
	}
	if out.Len() != 0 {
		t.Fatalf("expected nothing on stdout, got %q", out.String())
	}
}
