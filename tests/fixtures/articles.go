// Package fixtures provides reusable test data for package tests: stored
// articles, raw search records and filler body text.
package fixtures

import (
	"strings"
	"time"

	"newsintel/internal/domain/entity"
)

// ArticleOption is a functional option for customizing test articles.
type ArticleOption func(*entity.Article)

// NewTestArticle creates a stored, enriched Article with sensible defaults.
//
// Example:
//
//	a := NewTestArticle(WithKey("https://example.com/x"), WithTopic("AI"))
func NewTestArticle(opts ...ArticleOption) *entity.Article {
	published := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	enriched := published.Add(2 * time.Hour)
	a := &entity.Article{
		ID:          1,
		Key:         "https://news.example.com/articles/1",
		SourceID:    "example-news",
		SourceName:  "Example News",
		Author:      "Jane Reporter",
		Title:       "Chipmakers rally on cloud demand",
		Summary:     "Semiconductor stocks climbed after cloud providers raised capex guidance.",
		PublishedAt: entity.ParsedTimestamp(published, published.Format(time.RFC3339)),
		FetchedAt:   published.Add(time.Hour),
		Scores: entity.Scores{
			entity.SignalRelevance:  0.7,
			entity.SignalImportance: 0.6,
			entity.SignalActionable: 0.4,
			entity.SignalUrgency:    0.5,
		},
		Topic:         "Technology",
		Sectors:       []string{"cloud"},
		Sentiment:     entity.SentimentPositive,
		UrgencyBucket: entity.BucketMedium,
		EnrichedAt:    &enriched,
	}

	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithID sets the store identity.
func WithID(id int64) ArticleOption {
	return func(a *entity.Article) { a.ID = id }
}

// WithKey sets the dedup key.
func WithKey(key string) ArticleOption {
	return func(a *entity.Article) { a.Key = key }
}

// WithPublishedAt sets a parsed publication time.
func WithPublishedAt(t time.Time) ArticleOption {
	return func(a *entity.Article) {
		a.PublishedAt = entity.ParsedTimestamp(t, t.Format(time.RFC3339))
	}
}

// WithRawPublishedAt sets an unparsable publication time.
func WithRawPublishedAt(raw string) ArticleOption {
	return func(a *entity.Article) { a.PublishedAt = entity.UnparsedTimestamp(raw) }
}

// WithScores replaces the scores.
func WithScores(s entity.Scores) ArticleOption {
	return func(a *entity.Article) { a.Scores = s }
}

// WithTopic sets the topic label.
func WithTopic(topic string) ArticleOption {
	return func(a *entity.Article) { a.Topic = topic }
}

// WithSectors sets the sector tags.
func WithSectors(sectors ...string) ArticleOption {
	return func(a *entity.Article) { a.Sectors = sectors }
}

// WithSentiment sets the sentiment label.
func WithSentiment(s entity.Sentiment) ArticleOption {
	return func(a *entity.Article) { a.Sentiment = s }
}

// Unenriched clears every enrichment field.
func Unenriched() ArticleOption {
	return func(a *entity.Article) {
		a.Scores = nil
		a.Topic = ""
		a.Sectors = nil
		a.Sentiment = ""
		a.UrgencyBucket = ""
		a.EnrichedAt = nil
	}
}

var bodySentences = []string{
	"Markets opened higher as investors weighed fresh data on inflation.",
	"Analysts expect cloud spending to keep growing through the next quarter.",
	"Regulators signalled a closer look at stablecoin issuers and exchanges.",
	"The company said revenue from its software subscriptions rose sharply.",
	"Energy prices eased after producers agreed to lift output targets.",
	"Several lenders tightened credit standards for commercial real estate.",
	"Researchers released a model that outperforms earlier benchmarks.",
	"Shipping costs fell as congestion at major ports cleared.",
}

// GenerateBody returns English filler text of roughly length characters.
// The result is never shorter than length.
func GenerateBody(length int) string {
	var b strings.Builder
	for i := 0; b.Len() < length; i++ {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(bodySentences[i%len(bodySentences)])
	}
	return b.String()
}
