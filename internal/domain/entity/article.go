// Package entity defines the core domain entities and validation logic for the application.
// It contains the fundamental business objects such as Article and Profile, along with
// their validation rules and domain-specific errors.
package entity

import "time"

// Signal names carried in Article.Scores.
const (
	SignalRelevance  = "relevance"
	SignalImportance = "importance"
	SignalActionable = "actionable"
	SignalUrgency    = "urgency"
)

// Sentiment is the coarse sentiment label attached during enrichment.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"

	// SentimentAny is only meaningful as a profile preference.
	SentimentAny Sentiment = "any"
)

// IsLabel reports whether s is one of the three article sentiment labels.
func (s Sentiment) IsLabel() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// OrNeutral returns s, or SentimentNeutral when s is empty.
func (s Sentiment) OrNeutral() Sentiment {
	if s == "" {
		return SentimentNeutral
	}
	return s
}

// Bucket is a coarse three-level label derived from a continuous score.
type Bucket string

const (
	BucketHigh   Bucket = "High"
	BucketMedium Bucket = "Medium"
	BucketLow    Bucket = "Low"
)

// Scores maps a signal name to a value in [0.0, 1.0].
type Scores map[string]float64

// Get returns the score for name, or 0.0 when the signal is absent.
// A nil Scores is valid and reads as all zeros.
func (s Scores) Get(name string) float64 {
	if s == nil {
		return 0.0
	}
	return s[name]
}

// Timestamp is a publication time as received from the source.
// It has three states: absent (zero value), parsed (Parsed set), and
// unparsable (Parsed unset, Raw holds the original text). Parsed is explicit
// so that a source value of 0001-01-01T00:00:00Z still counts as parsed.
type Timestamp struct {
	Time   time.Time
	Raw    string
	Parsed bool
}

// ParsedTimestamp returns a valid Timestamp for t.
func ParsedTimestamp(t time.Time, raw string) Timestamp {
	return Timestamp{Time: t, Raw: raw, Parsed: true}
}

// UnparsedTimestamp keeps a value that could not be parsed.
func UnparsedTimestamp(raw string) Timestamp {
	return Timestamp{Raw: raw}
}

// Valid reports whether the timestamp holds a parsed time.
func (t Timestamp) Valid() bool {
	return t.Parsed
}

// Present reports whether the source supplied any value at all.
func (t Timestamp) Present() bool {
	return t.Valid() || t.Raw != ""
}

// Before reports whether the timestamp is valid and strictly before u.
// Absent and unparsable timestamps never compare as before anything.
func (t Timestamp) Before(u time.Time) bool {
	return t.Valid() && t.Time.Before(u)
}

// Article represents one ingested news item.
//
// Fetch-time fields are written once by InsertIfAbsent. Enrichment fields
// (Scores, Topic, Sectors, Sentiment, UrgencyBucket) are written later by a
// separate UpdateByID call.
type Article struct {
	ID          int64
	Key         string
	SourceID    string
	SourceName  string
	Author      string
	Title       string
	Summary     string
	BodyExcerpt string
	ImageURL    string
	PublishedAt Timestamp
	FetchedAt   time.Time

	Scores        Scores
	Topic         string
	Sectors       []string
	Sentiment     Sentiment
	UrgencyBucket Bucket
	EnrichedAt    *time.Time
}

// Enriched reports whether the enrichment update has been applied.
func (a *Article) Enriched() bool {
	return a.EnrichedAt != nil
}

// HasSector reports whether the article is tagged with sector.
func (a *Article) HasSector(sector string) bool {
	for _, s := range a.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// Enrichment holds the derived fields produced by the enrichment step.
type Enrichment struct {
	Scores        Scores
	Topic         string
	Sectors       []string
	Sentiment     Sentiment
	UrgencyBucket Bucket
}

// Apply copies the enrichment fields onto a and stamps EnrichedAt.
func (e Enrichment) Apply(a *Article, at time.Time) {
	a.Scores = e.Scores
	a.Topic = e.Topic
	a.Sectors = e.Sectors
	a.Sentiment = e.Sentiment
	a.UrgencyBucket = e.UrgencyBucket
	a.EnrichedAt = &at
}
