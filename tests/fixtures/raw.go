package fixtures

import (
	"encoding/json"
	"fmt"
)

// RawRecord builds one NewsAPI-shaped search record. fields override or add
// keys; a nil value is encoded as JSON null.
//
// Example:
//
//	rec := RawRecord(3, map[string]any{"publishedAt": "not a date"})
func RawRecord(n int, fields map[string]any) json.RawMessage {
	m := map[string]any{
		"source":      map[string]any{"id": "example-news", "name": "Example News"},
		"author":      "Jane Reporter",
		"title":       fmt.Sprintf("Headline %d", n),
		"description": fmt.Sprintf("Description of story %d.", n),
		"url":         fmt.Sprintf("https://news.example.com/articles/%d", n),
		"urlToImage":  fmt.Sprintf("https://news.example.com/img/%d.jpg", n),
		"publishedAt": "2026-01-10T09:30:00Z",
		"content":     fmt.Sprintf("Body of story %d", n),
	}
	for k, v := range fields {
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// WithoutField builds a record and then drops key entirely.
func WithoutField(n int, key string) json.RawMessage {
	var m map[string]any
	if err := json.Unmarshal(RawRecord(n, nil), &m); err != nil {
		panic(err)
	}
	delete(m, key)
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// NewsAPIResponse wraps records in a successful NewsAPI envelope.
func NewsAPIResponse(records ...json.RawMessage) []byte {
	if records == nil {
		records = []json.RawMessage{}
	}
	b, err := json.Marshal(map[string]any{
		"status":       "ok",
		"totalResults": len(records),
		"articles":     records,
	})
	if err != nil {
		panic(err)
	}
	return b
}

// NewsAPIError builds a NewsAPI error envelope.
func NewsAPIError(code, message string) []byte {
	b, err := json.Marshal(map[string]any{
		"status":  "error",
		"code":    code,
		"message": message,
	})
	if err != nil {
		panic(err)
	}
	return b
}
