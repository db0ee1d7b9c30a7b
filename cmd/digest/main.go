// Package main provides a CLI that ranks stored articles against the
// configured profile.
// Usage: newsintel-digest [--limit N] [--scan N] [--min-relevance X] [--min-importance X] [--output json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"newsintel/internal/config"
	"newsintel/internal/domain/entity"
	"newsintel/internal/infra/store"
	"newsintel/internal/observability/logging"
	"newsintel/internal/usecase/scoring"
)

// DigestOutput is the JSON output format.
type DigestOutput struct {
	Scanned     int             `json:"scanned"`
	ResultCount int             `json:"result_count"`
	Articles    []ArticleOutput `json:"articles"`
}

// ArticleOutput is one ranked article.
type ArticleOutput struct {
	ArticleID   int64    `json:"article_id"`
	Title       string   `json:"title"`
	URL         string   `json:"url"`
	Source      string   `json:"source,omitempty"`
	PublishedAt string   `json:"published_at,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Sectors     []string `json:"sectors,omitempty"`
	Sentiment   string   `json:"sentiment,omitempty"`
	Priority    float64  `json:"priority"`
	Urgency     string   `json:"urgency"`
	Action      string   `json:"action"`
}

func main() {
	var (
		limit         int
		scan          int
		minRelevance  float64
		minImportance float64
		outputFormat  string
	)
	flag.IntVar(&limit, "limit", 20, "Maximum number of articles to print")
	flag.IntVar(&scan, "scan", 500, "Number of most recent articles to consider")
	flag.Float64Var(&minRelevance, "min-relevance", -1, "Override the profile relevance threshold (0.0 to 1.0)")
	flag.Float64Var(&minImportance, "min-importance", -1, "Override the profile importance threshold (0.0 to 1.0)")
	flag.StringVar(&outputFormat, "output", "text", "Output format: text or json")
	flag.Parse()

	// Logs go to stderr so that stdout stays parseable.
	logger := logging.NewLoggerTo(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	slog.SetDefault(logger)

	appConfig, err := config.LoadAppConfig(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	profile := appConfig.Scoring.ProfileEntity()
	if minRelevance >= 0 {
		profile.MinRelevance = minRelevance
	}
	if minImportance >= 0 {
		profile.MinImportance = minImportance
	}
	if err := entity.ValidateProfile(profile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid profile: %v\n", err)
		os.Exit(1)
	}
	if scan < 1 {
		scan = 500
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := store.Open(ctx, appConfig.StoreDriver, appConfig.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()

	articles, err := st.Repo.ListRecent(ctx, scan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to list articles: %v\n", err)
		_ = st.Close()
		os.Exit(1)
	}

	ranked := scoring.Select(articles, profile, appConfig.Scoring.Weights(), time.Now())
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	if outputFormat == "json" {
		if err := writeJSON(os.Stdout, len(articles), ranked); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to encode JSON: %v\n", err)
		}
		return
	}
	writeText(os.Stdout, len(articles), ranked)
}

func toOutput(r scoring.Ranked) ArticleOutput {
	a := r.Article
	out := ArticleOutput{
		ArticleID: a.ID,
		Title:     a.Title,
		URL:       a.Key,
		Source:    a.SourceName,
		Topic:     a.Topic,
		Sectors:   a.Sectors,
		Sentiment: string(a.Sentiment),
		Priority:  r.Priority,
		Urgency:   string(r.Urgency),
		Action:    string(r.Action),
	}
	switch {
	case a.PublishedAt.Valid():
		out.PublishedAt = a.PublishedAt.Time.Format(time.RFC3339)
	case a.PublishedAt.Present():
		out.PublishedAt = a.PublishedAt.Raw
	}
	return out
}

// writeText prints the digest in human-readable format.
func writeText(w io.Writer, scanned int, ranked []scoring.Ranked) {
	fmt.Fprintf(w, "Scanned: %d articles\n", scanned)
	fmt.Fprintf(w, "Matching: %d\n\n", len(ranked))

	if len(ranked) == 0 {
		fmt.Fprintln(w, "No articles match the current profile.")
		return
	}
	for i, r := range ranked {
		o := toOutput(r)
		fmt.Fprintf(w, "%d. %s\n", i+1, o.Title)
		fmt.Fprintf(w, "   Priority: %.2f  Urgency: %s  Action: %s\n", o.Priority, o.Urgency, o.Action)
		if o.Topic != "" {
			fmt.Fprintf(w, "   Topic: %s  Sectors: %v  Sentiment: %s\n", o.Topic, o.Sectors, o.Sentiment)
		}
		fmt.Fprintf(w, "   URL: %s\n\n", o.URL)
	}
}

// writeJSON prints the digest in JSON format.
func writeJSON(w io.Writer, scanned int, ranked []scoring.Ranked) error {
	out := DigestOutput{
		Scanned:     scanned,
		ResultCount: len(ranked),
		Articles:    make([]ArticleOutput, len(ranked)),
	}
	for i, r := range ranked {
		out.Articles[i] = toOutput(r)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
