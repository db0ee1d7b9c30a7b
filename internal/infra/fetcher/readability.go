package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-shiori/go-readability"
	"go.opentelemetry.io/otel/attribute"

	"newsintel/internal/observability/tracing"
	"newsintel/internal/resilience/circuitbreaker"
	"newsintel/internal/resilience/retry"
	"newsintel/internal/utils/text"
)

// ReadabilityFetcher extracts article text from publisher pages with
// go-readability. It is safe for concurrent use.
type ReadabilityFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	config         Config
}

// NewReadabilityFetcher creates a fetcher. Every redirect hop is checked
// against MaxRedirects and the private IP policy.
func NewReadabilityFetcher(cfg Config) *ReadabilityFetcher {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}

	f := &ReadabilityFetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.ArticlePageConfig()),
		retryConfig:    retry.ArticlePageConfig(),
		config:         cfg,
	}
	f.client = &http.Client{
		Timeout: 3 * cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateURL(req.URL.String(), f.config.DenyPrivateIPs); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
	return f
}

// WithRetryConfig overrides the retry policy.
func (f *ReadabilityFetcher) WithRetryConfig(cfg retry.Config) *ReadabilityFetcher {
	f.retryConfig = cfg
	return f
}

// FetchContent returns the whitespace-normalised readable text of the page
// at urlStr, truncated to MaxChars.
func (f *ReadabilityFetcher) FetchContent(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, f.config.DenyPrivateIPs); err != nil {
		return "", err
	}

	ctx, span := tracing.StartSpan(ctx, "fetcher.FetchContent", attribute.String("url", urlStr))
	var content string
	err := retry.WithBackoff(ctx, f.retryConfig, func() error {
		out, err := circuitbreaker.Run(f.circuitBreaker, func() (string, error) {
			return f.doFetch(ctx, urlStr)
		})
		if circuitbreaker.IsRejection(err) {
			slog.Debug("article page circuit breaker open, request rejected",
				slog.String("url", urlStr),
				slog.String("state", f.circuitBreaker.State().String()))
		}
		content = out
		return err
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return "", err
	}

	content = text.NormalizeSpace(content)
	if f.config.MaxChars > 0 {
		content = text.Truncate(content, f.config.MaxChars)
	}
	return content, nil
}

func (f *ReadabilityFetcher) doFetch(ctx context.Context, urlStr string) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("%w: failed to create request: %v", ErrInvalidURL, err))
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", retry.Permanent(fmt.Errorf("%w: request exceeded %v", ErrTimeout, f.config.Timeout))
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && (errors.Is(urlErr.Err, ErrTooManyRedirects) ||
			errors.Is(urlErr.Err, ErrPrivateIP) || errors.Is(urlErr.Err, ErrInvalidURL)) {
			return "", retry.Permanent(urlErr.Err)
		}
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		httpErr := retry.NewHTTPError(resp, resp.Status)
		if !retry.IsRetryable(httpErr) {
			return "", retry.Permanent(httpErr)
		}
		return "", httpErr
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(htmlBytes)) > f.config.MaxBodySize {
		return "", retry.Permanent(fmt.Errorf("%w: response size exceeds limit %d bytes",
			ErrBodyTooLarge, f.config.MaxBodySize))
	}

	pageURL, _ := url.Parse(urlStr)
	if resp.Request != nil && resp.Request.URL != nil {
		pageURL = resp.Request.URL
	}

	article, err := readability.FromReader(bytes.NewReader(htmlBytes), pageURL)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("%w: %v", ErrReadabilityFailed, err))
	}
	if article.TextContent == "" {
		return "", retry.Permanent(fmt.Errorf("%w: no readable content found", ErrReadabilityFailed))
	}
	return article.TextContent, nil
}
