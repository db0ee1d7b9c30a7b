// Package newsapi searches the NewsAPI /v2/everything endpoint and returns
// the raw article objects for the ingest pipeline to decode.
package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"newsintel/internal/observability/tracing"
	"newsintel/internal/pkg/config"
	"newsintel/internal/resilience/circuitbreaker"
	"newsintel/internal/resilience/retry"
)

var (
	// ErrMissingAPIKey is returned by New when no key is configured.
	ErrMissingAPIKey = errors.New("newsapi: NEWS_API_KEY not set")
	// ErrAPIStatus is returned when the response envelope is not "ok".
	ErrAPIStatus = errors.New("newsapi: request not ok")
)

// maxResponseBytes bounds the body read for one search; 100 articles is far below it.
const maxResponseBytes = 16 << 20

// Config holds NewsAPI request settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Language string
	SortBy   string
	PageSize int
	Timeout  time.Duration
	// RequestsPerSecond and Burst shape outgoing requests across all terms.
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns the request shape used by the fetch cycle:
// English articles sorted by relevancy, 100 per term.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://newsapi.org/v2",
		Language:          "en",
		SortBy:            "relevancy",
		PageSize:          100,
		Timeout:           30 * time.Second,
		RequestsPerSecond: 1,
		Burst:             2,
	}
}

// LoadConfigFromEnv reads NEWS_API_KEY and the NEWSAPI_* overrides.
func LoadConfigFromEnv(m *config.ConfigMetrics) Config {
	cfg := DefaultConfig()
	cfg.APIKey = config.LoadEnvString("NEWS_API_KEY", "")
	cfg.BaseURL = config.LoadEnvString("NEWSAPI_BASE_URL", cfg.BaseURL)
	cfg.Language = config.LoadEnvWithFallback("NEWSAPI_LANGUAGE", cfg.Language, func(s string) error {
		if len(s) != 2 {
			return fmt.Errorf("language must be a two letter code")
		}
		return nil
	}).Resolve("newsapi_language", m)
	cfg.SortBy = config.LoadEnvWithFallback("NEWSAPI_SORT_BY", cfg.SortBy,
		config.OneOf("relevancy", "popularity", "publishedAt")).Resolve("newsapi_sort_by", m)
	cfg.PageSize = config.LoadEnvInt("NEWSAPI_PAGE_SIZE", cfg.PageSize, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	}).Resolve("newsapi_page_size", m)
	cfg.RequestsPerSecond = config.LoadEnvFloat("NEWSAPI_REQUESTS_PER_SECOND", cfg.RequestsPerSecond, func(v float64) error {
		if v <= 0 {
			return fmt.Errorf("must be positive")
		}
		return nil
	}).Resolve("newsapi_requests_per_second", m)
	return cfg
}

// Client implements the ingest Searcher for NewsAPI.
type Client struct {
	httpClient     *http.Client
	cfg            Config
	limiter        *rate.Limiter
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// New creates a Client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = def.PageSize
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = def.Timeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient:     httpClient,
		cfg:            cfg,
		limiter:        rate.NewLimiter(limit, cfg.Burst),
		circuitBreaker: circuitbreaker.New(circuitbreaker.NewsAPIConfig()),
		retryConfig:    retry.SearchConfig(),
	}, nil
}

// WithRetryConfig overrides the retry policy.
func (c *Client) WithRetryConfig(cfg retry.Config) *Client {
	c.retryConfig = cfg
	return c
}

type envelope struct {
	Status       string            `json:"status"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	TotalResults int               `json:"totalResults"`
	Articles     []json.RawMessage `json:"articles"`
}

// Search returns the raw article objects for term, in provider order.
// A non-"ok" envelope is reported as ErrAPIStatus so that the caller can
// skip the term.
func (c *Client) Search(ctx context.Context, term string) ([]json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "newsapi.Search", attribute.String("term", term))

	var env *envelope
	err := retry.WithBackoff(ctx, c.retryConfig, func() error {
		out, err := circuitbreaker.Run(c.circuitBreaker, func() (*envelope, error) {
			return c.doSearch(ctx, term)
		})
		if circuitbreaker.IsRejection(err) {
			slog.Warn("newsapi circuit breaker open, request rejected",
				slog.String("service", "newsapi"),
				slog.String("term", term),
				slog.String("state", c.circuitBreaker.State().String()))
		}
		env = out
		return err
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("newsapi search %q: %w", term, err)
	}

	slog.Debug("newsapi search completed",
		slog.String("term", term),
		slog.Int("total_results", env.TotalResults),
		slog.Int("returned", len(env.Articles)))
	if env.Articles == nil {
		return []json.RawMessage{}, nil
	}
	return env.Articles, nil
}

func (c *Client) doSearch(ctx context.Context, term string) (*envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", term)
	q.Set("pageSize", strconv.Itoa(c.cfg.PageSize))
	if c.cfg.Language != "" {
		q.Set("language", c.cfg.Language)
	}
	if c.cfg.SortBy != "" {
		q.Set("sortBy", c.cfg.SortBy)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/everything?"+q.Encode(), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "newsintel/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.Message != "" {
			msg = env.Code + ": " + env.Message
		}
		httpErr := retry.NewHTTPError(resp, msg)
		wrapped := fmt.Errorf("%w: %w", ErrAPIStatus, httpErr)
		if !retry.IsRetryable(httpErr) {
			return nil, retry.Permanent(wrapped)
		}
		return nil, wrapped
	}

	if decodeErr != nil {
		return nil, retry.Permanent(fmt.Errorf("decode response: %w", decodeErr))
	}
	if env.Status != "ok" {
		return nil, retry.Permanent(fmt.Errorf("%w: status %q: %s %s", ErrAPIStatus, env.Status, env.Code, env.Message))
	}
	return &env, nil
}
