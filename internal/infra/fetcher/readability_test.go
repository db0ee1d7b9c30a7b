package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newsintel/internal/infra/fetcher"
	"newsintel/internal/resilience/retry"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Chip Makers Rally</title></head>
<body>
	<nav><a href="/">Home</a></nav>
	<article>
		<h1>Chip makers rally on cloud demand</h1>
		<p>Semiconductor shares rose sharply on Tuesday after a run of strong orders from cloud providers.</p>
		<p>Analysts said the second quarter could exceed expectations as data center spending keeps growing.</p>
		<p>Several manufacturers announced new capacity to meet demand for accelerators through next year.</p>
	</article>
</body>
</html>`

func noRetry() retry.Config {
	return retry.Config{MaxAttempts: 1}
}

func newFetcher(mutate func(*fetcher.Config)) *fetcher.ReadabilityFetcher {
	cfg := fetcher.DefaultConfig()
	cfg.DenyPrivateIPs = false // httptest listens on loopback
	if mutate != nil {
		mutate(&cfg)
	}
	return fetcher.NewReadabilityFetcher(cfg).WithRetryConfig(noRetry())
}

func serveHTML(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchContent_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "NewsIntelBot/1.0" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	content, err := newFetcher(nil).FetchContent(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if !strings.Contains(content, "strong orders from cloud providers") {
		t.Errorf("content missing article text: %q", content)
	}
	if strings.ContainsAny(content, "\n\t") || strings.Contains(content, "  ") {
		t.Errorf("content whitespace not normalised: %q", content)
	}
}

func TestFetchContent_TruncatesToMaxChars(t *testing.T) {
	srv := serveHTML(t, articleHTML)
	f := newFetcher(func(c *fetcher.Config) { c.MaxChars = 60 })

	content, err := f.FetchContent(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if !strings.HasSuffix(content, "...") {
		t.Errorf("expected ellipsis, got %q", content)
	}
	if n := len([]rune(content)); n > 63 {
		t.Errorf("content has %d runes, want at most 63", n)
	}
}

func TestFetchContent_InvalidURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"ftp scheme", "ftp://example.com/article"},
		{"file scheme", "file:///etc/passwd"},
		{"no host", "http:///path"},
		{"relative", "/just/a/path"},
		{"unparsable", "http://[::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newFetcher(nil).FetchContent(context.Background(), tt.url)
			if !errors.Is(err, fetcher.ErrInvalidURL) {
				t.Errorf("error = %v, want ErrInvalidURL", err)
			}
		})
	}
}

func TestFetchContent_PrivateIP(t *testing.T) {
	urls := []string{
		"http://127.0.0.1/article",
		"http://10.1.2.3/article",
		"http://172.16.0.10/article",
		"http://192.168.1.1/article",
		"http://169.254.169.254/latest/meta-data",
		"http://[::1]/article",
	}
	f := fetcher.NewReadabilityFetcher(fetcher.DefaultConfig()).WithRetryConfig(noRetry())
	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			_, err := f.FetchContent(context.Background(), u)
			if !errors.Is(err, fetcher.ErrPrivateIP) {
				t.Errorf("error = %v, want ErrPrivateIP", err)
			}
		})
	}
}

func TestFetchContent_ReadabilityFailed(t *testing.T) {
	srv := serveHTML(t, `<!DOCTYPE html><html><head><title>Empty</title></head><body></body></html>`)

	_, err := newFetcher(nil).FetchContent(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error for page without readable content")
	}
	if !errors.Is(err, fetcher.ErrReadabilityFailed) {
		t.Errorf("error = %v, want ErrReadabilityFailed", err)
	}
}

func TestFetchContent_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	f := newFetcher(func(c *fetcher.Config) { c.Timeout = 50 * time.Millisecond })
	_, err := f.FetchContent(context.Background(), srv.URL)
	if !errors.Is(err, fetcher.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}

func TestFetchContent_HTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"not found is not retried", http.StatusNotFound, 1},
		{"forbidden is not retried", http.StatusForbidden, 1},
		{"server error is retried", http.StatusBadGateway, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			f := newFetcher(nil).WithRetryConfig(retry.Config{
				MaxAttempts:  2,
				InitialDelay: time.Millisecond,
				MaxDelay:     time.Millisecond,
				Multiplier:   1,
			})
			_, err := f.FetchContent(context.Background(), srv.URL)
			var httpErr *retry.HTTPError
			if !errors.As(err, &httpErr) || httpErr.StatusCode != tt.status {
				t.Fatalf("error = %v, want HTTP %d", err, tt.status)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("server called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestFetchContent_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := newFetcher(nil).FetchContent(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestFetchContent_BodyTooLarge(t *testing.T) {
	big := "<html><body><article><p>" + strings.Repeat("word ", 1000) + "</p></article></body></html>"
	srv := serveHTML(t, big)

	f := newFetcher(func(c *fetcher.Config) { c.MaxBodySize = 1024 })
	_, err := f.FetchContent(context.Background(), srv.URL)
	if !errors.Is(err, fetcher.ErrBodyTooLarge) {
		t.Errorf("error = %v, want ErrBodyTooLarge", err)
	}
}

func TestFetchContent_TooManyRedirects(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
	}))
	defer srv.Close()

	f := newFetcher(func(c *fetcher.Config) { c.MaxRedirects = 2 })
	_, err := f.FetchContent(context.Background(), srv.URL)
	if !errors.Is(err, fetcher.ErrTooManyRedirects) {
		t.Errorf("error = %v, want ErrTooManyRedirects", err)
	}
}

func TestFetchContent_SuccessfulRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/short", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/news/chip-makers", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/news/chip-makers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(articleHTML))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	content, err := newFetcher(nil).FetchContent(context.Background(), srv.URL+"/short")
	if err != nil {
		t.Fatalf("FetchContent() error = %v", err)
	}
	if !strings.Contains(content, "data center spending") {
		t.Errorf("content missing article text: %q", content)
	}
}

func TestFetchContent_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFetcher(nil)
	for i := 0; i < 10; i++ {
		if _, err := f.FetchContent(context.Background(), srv.URL); err == nil {
			t.Fatal("expected error from failing server")
		}
	}
	before := calls.Load()

	_, err := f.FetchContent(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected rejection while breaker is open")
	}
	if calls.Load() != before {
		t.Errorf("server reached while breaker open: %d calls, want %d", calls.Load(), before)
	}
}
