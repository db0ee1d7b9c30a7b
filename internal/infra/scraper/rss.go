// Package scraper searches Google News through its RSS search feed and
// returns the items reshaped as NewsAPI-style article objects, so the ingest
// pipeline decodes every provider the same way.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/attribute"

	"newsintel/internal/observability/tracing"
	"newsintel/internal/pkg/config"
	"newsintel/internal/resilience/circuitbreaker"
	"newsintel/internal/resilience/retry"
	"newsintel/internal/utils/text"
)

// maxFeedSize bounds the feed body read per search.
const maxFeedSize = 5 * 1024 * 1024

// Config configures the Google News searcher.
type Config struct {
	BaseURL  string
	Language string // hl, e.g. "en-US"
	Country  string // gl, e.g. "US"
	MaxItems int
	Timeout  time.Duration
}

// DefaultConfig returns the public Google News endpoint in US English.
func DefaultConfig() Config {
	return Config{
		BaseURL:  "https://news.google.com/rss/search",
		Language: "en-US",
		Country:  "US",
		MaxItems: 100,
		Timeout:  30 * time.Second,
	}
}

// LoadConfigFromEnv reads the GOOGLENEWS_* overrides.
func LoadConfigFromEnv(m *config.ConfigMetrics) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = config.LoadEnvString("GOOGLENEWS_BASE_URL", cfg.BaseURL)
	cfg.Language = config.LoadEnvString("GOOGLENEWS_LANGUAGE", cfg.Language)
	cfg.Country = config.LoadEnvWithFallback("GOOGLENEWS_COUNTRY", cfg.Country, func(s string) error {
		if len(s) != 2 {
			return fmt.Errorf("country must be a two letter code")
		}
		return nil
	}).Resolve("googlenews_country", m)
	cfg.MaxItems = config.LoadEnvInt("GOOGLENEWS_MAX_ITEMS", cfg.MaxItems, func(v int) error {
		return config.ValidateIntRange(v, 1, 100)
	}).Resolve("googlenews_max_items", m)
	return cfg
}

// GoogleNewsSearcher implements the ingest Searcher on the Google News RSS
// search feed, with circuit breaker and retry.
type GoogleNewsSearcher struct {
	client         *http.Client
	cfg            Config
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewGoogleNewsSearcher creates a searcher. client may be nil.
func NewGoogleNewsSearcher(cfg Config, client *http.Client) *GoogleNewsSearcher {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = def.MaxItems
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &GoogleNewsSearcher{
		client:         client,
		cfg:            cfg,
		circuitBreaker: circuitbreaker.New(circuitbreaker.GoogleNewsConfig()),
		retryConfig:    retry.SearchConfig(),
	}
}

// WithRetryConfig overrides the retry policy.
func (g *GoogleNewsSearcher) WithRetryConfig(cfg retry.Config) *GoogleNewsSearcher {
	g.retryConfig = cfg
	return g
}

// Search returns the feed items for term as NewsAPI-shaped JSON objects,
// in feed order.
func (g *GoogleNewsSearcher) Search(ctx context.Context, term string) ([]json.RawMessage, error) {
	ctx, span := tracing.StartSpan(ctx, "googlenews.Search", attribute.String("term", term))

	var feed *gofeed.Feed
	err := retry.WithBackoff(ctx, g.retryConfig, func() error {
		out, err := circuitbreaker.Run(g.circuitBreaker, func() (*gofeed.Feed, error) {
			return g.doSearch(ctx, term)
		})
		if circuitbreaker.IsRejection(err) {
			slog.Warn("google news circuit breaker open, request rejected",
				slog.String("service", "google-news"),
				slog.String("term", term),
				slog.String("state", g.circuitBreaker.State().String()))
		}
		feed = out
		return err
	})
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("google news search %q: %w", term, err)
	}

	records := make([]json.RawMessage, 0, len(feed.Items))
	for _, it := range feed.Items {
		if len(records) == g.cfg.MaxItems {
			break
		}
		rec, err := toRecord(it)
		if err != nil {
			slog.Warn("google news item skipped",
				slog.String("term", term),
				slog.String("link", it.Link),
				slog.Any("error", err))
			continue
		}
		records = append(records, rec)
	}
	slog.Debug("google news search completed",
		slog.String("term", term),
		slog.Int("items", len(feed.Items)),
		slog.Int("returned", len(records)))
	return records, nil
}

func (g *GoogleNewsSearcher) searchURL(term string) string {
	q := url.Values{}
	q.Set("q", term)
	if g.cfg.Language != "" {
		q.Set("hl", g.cfg.Language)
	}
	if g.cfg.Country != "" {
		q.Set("gl", g.cfg.Country)
		lang, _, _ := strings.Cut(g.cfg.Language, "-")
		if lang == "" {
			lang = "en"
		}
		q.Set("ceid", g.cfg.Country+":"+lang)
	}
	return g.cfg.BaseURL + "?" + q.Encode()
}

func (g *GoogleNewsSearcher) doSearch(ctx context.Context, term string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.searchURL(term), nil)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", "NewsIntelBot/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		httpErr := retry.NewHTTPError(resp, resp.Status)
		if !retry.IsRetryable(httpErr) {
			return nil, retry.Permanent(httpErr)
		}
		return nil, httpErr
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("parse feed: %w", err))
	}
	return feed, nil
}

// newsRecord mirrors the NewsAPI article object.
type newsRecord struct {
	Source      newsSource `json:"source"`
	Author      *string    `json:"author"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	URL         string     `json:"url"`
	URLToImage  *string    `json:"urlToImage"`
	PublishedAt *string    `json:"publishedAt"`
	Content     *string    `json:"content"`
}

type newsSource struct {
	ID   *string `json:"id"`
	Name string  `json:"name"`
}

var errNoLink = errors.New("item has no link")

// toRecord reshapes a feed item. Google News titles end in " - Publisher";
// the suffix becomes the source name.
func toRecord(it *gofeed.Item) (json.RawMessage, error) {
	if it.Link == "" {
		return nil, errNoLink
	}
	title, publisher := splitPublisher(it.Title)
	rec := newsRecord{
		Source: newsSource{Name: publisher},
		Title:  title,
		URL:    it.Link,
	}
	if it.Author != nil && it.Author.Name != "" {
		rec.Author = &it.Author.Name
	}
	if it.Image != nil && it.Image.URL != "" {
		rec.URLToImage = &it.Image.URL
	}
	if desc := stripHTML(it.Description); desc != "" {
		rec.Description = &desc
		rec.Content = &desc
	}
	switch {
	case it.PublishedParsed != nil:
		ts := it.PublishedParsed.UTC().Format(time.RFC3339)
		rec.PublishedAt = &ts
	case it.Published != "":
		rec.PublishedAt = &it.Published
	}
	return json.Marshal(rec)
}

func splitPublisher(title string) (string, string) {
	i := strings.LastIndex(title, " - ")
	if i <= 0 {
		return title, ""
	}
	return strings.TrimSpace(title[:i]), strings.TrimSpace(title[i+3:])
}

// stripHTML returns the visible text of an HTML fragment.
func stripHTML(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return text.NormalizeSpace(fragment)
	}
	return text.NormalizeSpace(doc.Text())
}
