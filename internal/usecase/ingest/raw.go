package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RawArticle is the loosely typed record returned by a search adapter.
// Its field names follow the NewsAPI "everything" response; other adapters
// marshal their items into the same shape. Absent and null fields decode to
// empty values.
type RawArticle struct {
	Source      *RawSource `json:"source"`
	Author      string     `json:"author"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	URLToImage  string     `json:"urlToImage"`
	PublishedAt string     `json:"publishedAt"`
	Content     string     `json:"content"`
}

// RawSource is the nested source object of a RawArticle.
type RawSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DecodeRaw parses one search record. Anything other than a JSON object
// whose fields have the expected types yields ErrMalformedRecord.
func DecodeRaw(raw json.RawMessage) (RawArticle, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return RawArticle{}, fmt.Errorf("%w: not a JSON object", ErrMalformedRecord)
	}

	var rec RawArticle
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return RawArticle{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}
