package ingest

import (
	"strings"
	"time"

	"newsintel/internal/domain/entity"
)

// timestampLayouts are the ISO-8601 forms accepted for publishedAt.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 publication time.
// An empty string yields the absent Timestamp; an unparsable one keeps the
// original text in Raw and is not Valid. It never substitutes "now".
func ParseTimestamp(raw string) entity.Timestamp {
	s := strings.TrimSpace(raw)
	if s == "" {
		return entity.Timestamp{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return entity.ParsedTimestamp(t.UTC(), raw)
		}
	}
	return entity.UnparsedTimestamp(raw)
}

// Normalize maps a raw record onto an Article. It never fails: missing
// nested objects and fields become empty strings. Callers decide whether
// the result is storable (see Storable).
func Normalize(rec RawArticle) entity.Article {
	a := entity.Article{
		Key:         strings.TrimSpace(rec.URL),
		Title:       strings.TrimSpace(rec.Title),
		Author:      strings.TrimSpace(rec.Author),
		Summary:     strings.TrimSpace(rec.Description),
		BodyExcerpt: strings.TrimSpace(rec.Content),
		ImageURL:    strings.TrimSpace(rec.URLToImage),
		PublishedAt: ParseTimestamp(rec.PublishedAt),
	}
	if rec.Source != nil {
		a.SourceID = strings.TrimSpace(rec.Source.ID)
		a.SourceName = strings.TrimSpace(rec.Source.Name)
	}
	return a
}

// Storable reports whether a has the two fields required for storage.
func Storable(a entity.Article) bool {
	return a.Title != "" && a.Key != ""
}
