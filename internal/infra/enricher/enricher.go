// Package enricher derives relevance, importance, actionability and urgency
// scores plus topic, sector and sentiment labels for stored articles.
//
// Claude and OpenAI call a hosted model with a JSON-only prompt; Glossary
// classifies offline from keyword lists. All three return values already
// clamped to the vocabulary and to [0, 1].
package enricher

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"newsintel/internal/domain/entity"
	"newsintel/internal/pkg/config"
	"newsintel/internal/utils/text"
)

var (
	// ErrEmptyResponse is returned when the model answers with no text.
	ErrEmptyResponse = errors.New("enricher: empty response")
	// ErrInvalidResponse is returned when the answer holds no usable JSON object.
	ErrInvalidResponse = errors.New("enricher: invalid response")
)

// Vocabulary is the closed set of labels an enrichment may use.
type Vocabulary struct {
	TopicLabels    []string
	SectorGlossary map[string][]string
}

// sectorNames returns the glossary keys in a stable order.
func (v Vocabulary) sectorNames() []string {
	names := make([]string, 0, len(v.SectorGlossary))
	for name := range v.SectorGlossary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config holds settings shared by the hosted-model enrichers.
type Config struct {
	Model     string
	MaxTokens int
	Timeout   time.Duration
	// MaxInputChars bounds the article text sent in the prompt, in runes.
	MaxInputChars int
}

// LoadConfig reads ENRICHER_MODEL, ENRICHER_MAX_TOKENS, ENRICHER_TIMEOUT and
// ENRICHER_MAX_INPUT_CHARS, using defaultModel when no model is set.
func LoadConfig(defaultModel string, m *config.ConfigMetrics) Config {
	return Config{
		Model: config.LoadEnvString("ENRICHER_MODEL", defaultModel),
		MaxTokens: config.LoadEnvInt("ENRICHER_MAX_TOKENS", 512, func(v int) error {
			return config.ValidateIntRange(v, 64, 4096)
		}).Resolve("enricher_max_tokens", m),
		Timeout: config.LoadEnvDuration("ENRICHER_TIMEOUT", 30*time.Second, func(d time.Duration) error {
			return config.ValidateDuration(d, time.Second, 5*time.Minute)
		}).Resolve("enricher_timeout", m),
		MaxInputChars: config.LoadEnvInt("ENRICHER_MAX_INPUT_CHARS", 4000, func(v int) error {
			return config.ValidateIntRange(v, 200, 100000)
		}).Resolve("enricher_max_input_chars", m),
	}
}

func (c Config) withDefaults(model string) Config {
	if c.Model == "" {
		c.Model = model
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 512
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxInputChars <= 0 {
		c.MaxInputChars = 4000
	}
	return c
}

const systemPrompt = `You classify business news for an analyst. Answer with one JSON object and nothing else.
Fields:
  "relevance", "importance", "actionable", "urgency": numbers from 0 to 1
  "topic": exactly one of the allowed topics, or "" if none fits
  "sectors": zero or more of the allowed sectors
  "sentiment": "positive", "neutral" or "negative"`

// buildPrompt renders the user message for one article.
func buildPrompt(a *entity.Article, v Vocabulary, maxChars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Allowed topics: %s\n", strings.Join(v.TopicLabels, ", "))
	b.WriteString("Allowed sectors:\n")
	for _, name := range v.sectorNames() {
		fmt.Fprintf(&b, "  %s (%s)\n", name, strings.Join(v.SectorGlossary[name], ", "))
	}
	b.WriteString("\nArticle:\n")
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	if a.SourceName != "" {
		fmt.Fprintf(&b, "Source: %s\n", a.SourceName)
	}
	if a.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	}
	if a.BodyExcerpt != "" {
		fmt.Fprintf(&b, "Body: %s\n", text.Truncate(a.BodyExcerpt, maxChars))
	}
	return b.String()
}

type modelAnswer struct {
	Relevance  *float64 `json:"relevance"`
	Importance *float64 `json:"importance"`
	Actionable *float64 `json:"actionable"`
	Urgency    *float64 `json:"urgency"`
	Topic      string   `json:"topic"`
	Sectors    []string `json:"sectors"`
	Sentiment  string   `json:"sentiment"`
}

// parseAnswer extracts the JSON object from a model reply and maps it onto
// the vocabulary. Out-of-range scores are clamped; unknown topics and
// sectors are dropped; an unknown sentiment becomes neutral. The second
// return value counts clamped scores.
func parseAnswer(reply string, v Vocabulary) (entity.Enrichment, int, error) {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return entity.Enrichment{}, 0, ErrEmptyResponse
	}
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return entity.Enrichment{}, 0, fmt.Errorf("%w: no JSON object", ErrInvalidResponse)
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(reply[start:end+1]), &ans); err != nil {
		return entity.Enrichment{}, 0, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	scores := entity.Scores{}
	clamped := 0
	for name, p := range map[string]*float64{
		entity.SignalRelevance:  ans.Relevance,
		entity.SignalImportance: ans.Importance,
		entity.SignalActionable: ans.Actionable,
		entity.SignalUrgency:    ans.Urgency,
	} {
		if p == nil {
			continue
		}
		s, c := clamp(*p)
		if c {
			clamped++
		}
		scores[name] = s
	}
	if len(scores) == 0 {
		return entity.Enrichment{}, 0, fmt.Errorf("%w: no scores", ErrInvalidResponse)
	}

	return entity.Enrichment{
		Scores:    scores,
		Topic:     canonicalTopic(ans.Topic, v.TopicLabels),
		Sectors:   knownSectors(ans.Sectors, v.SectorGlossary),
		Sentiment: sentimentLabel(ans.Sentiment),
	}, clamped, nil
}

// sentimentLabel maps a model reply onto positive, neutral or negative.
func sentimentLabel(raw string) entity.Sentiment {
	s := entity.Sentiment(strings.ToLower(strings.TrimSpace(raw)))
	if !s.IsLabel() {
		return entity.SentimentNeutral
	}
	return s
}

func clamp(f float64) (float64, bool) {
	switch {
	case f < 0:
		return 0, true
	case f > 1:
		return 1, true
	}
	return f, false
}

func canonicalTopic(topic string, labels []string) string {
	topic = strings.TrimSpace(topic)
	for _, l := range labels {
		if strings.EqualFold(l, topic) {
			return l
		}
	}
	return ""
}

func knownSectors(in []string, glossary map[string][]string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if _, ok := glossary[s]; !ok || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
