package enricher

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"newsintel/internal/domain/entity"
)

// Glossary is an offline enricher. Sectors come from the glossary keywords,
// the topic from label names and a few sector hints, and the scores from
// simple keyword counts. It never fails and is deterministic.
type Glossary struct {
	vocab    Vocabulary
	sectors  map[string][]*regexp.Regexp
	topics   map[string]*regexp.Regexp
	positive []*regexp.Regexp
	negative []*regexp.Regexp
	urgent   []*regexp.Regexp
	action   []*regexp.Regexp
	metrics  MetricsRecorder
}

// Topic hints applied when the label itself is not mentioned.
var sectorTopicHints = map[string]string{
	"crypto":           "Cryptocurrency",
	"fintech":          "Finance",
	"cloud":            "Technology",
	"saas":             "Technology",
	"cybersecurity":    "Technology",
	"biotech":          "Health",
	"renewable_energy": "Environment",
}

var (
	positiveWords = []string{"surge", "surges", "gain", "gains", "growth", "record high", "beats", "rally", "rallies", "profit", "upgrade", "expands", "breakthrough", "wins"}
	negativeWords = []string{"falls", "plunge", "plunges", "loss", "losses", "decline", "declines", "layoffs", "lawsuit", "breach", "downgrade", "recession", "crash", "fraud", "sanctions"}
	urgentWords   = []string{"breaking", "urgent", "just in", "today", "immediately", "emergency", "alert", "halted"}
	actionWords   = []string{"launch", "launches", "acquire", "acquires", "acquisition", "ipo", "invest", "investment", "funding", "earnings", "deal", "partnership", "merger", "announces"}
)

// NewGlossary builds the keyword matchers for vocab.
func NewGlossary(vocab Vocabulary) *Glossary {
	g := &Glossary{
		vocab:    vocab,
		sectors:  make(map[string][]*regexp.Regexp, len(vocab.SectorGlossary)),
		topics:   make(map[string]*regexp.Regexp, len(vocab.TopicLabels)),
		positive: wordPatterns(positiveWords),
		negative: wordPatterns(negativeWords),
		urgent:   wordPatterns(urgentWords),
		action:   wordPatterns(actionWords),
		metrics:  NewPrometheusMetrics(),
	}
	for sector, keywords := range vocab.SectorGlossary {
		g.sectors[sector] = wordPatterns(keywords)
	}
	for _, label := range vocab.TopicLabels {
		g.topics[label] = wordPattern(label)
	}
	return g
}

// wordPattern matches s case-insensitively on word boundaries.
func wordPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(s) + `\b`)
}

func wordPatterns(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = wordPattern(w)
	}
	return out
}

func countMatches(patterns []*regexp.Regexp, s string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(s) {
			n++
		}
	}
	return n
}

// Enrich classifies a by keyword matching over its title, summary and body.
func (g *Glossary) Enrich(_ context.Context, a *entity.Article) (entity.Enrichment, error) {
	body := strings.Join([]string{a.Title, a.Summary, a.BodyExcerpt}, "\n")

	var sectors []string
	for sector, patterns := range g.sectors {
		if countMatches(patterns, body) > 0 {
			sectors = append(sectors, sector)
		}
	}
	sort.Strings(sectors)

	topic := g.topic(body, sectors)

	pos, neg := countMatches(g.positive, body), countMatches(g.negative, body)
	sentiment := entity.SentimentNeutral
	switch {
	case pos > neg:
		sentiment = entity.SentimentPositive
	case neg > pos:
		sentiment = entity.SentimentNegative
	}

	titleHits := 0
	for _, patterns := range g.sectors {
		titleHits += countMatches(patterns, a.Title)
	}

	relevance := 0.2 + 0.2*float64(len(sectors))
	if topic != "" {
		relevance += 0.2
	}
	importance := 0.3 + 0.15*float64(titleHits) + 0.1*float64(pos+neg)
	actionable := 0.1 + 0.2*float64(countMatches(g.action, body))
	urgency := 0.1 + 0.3*float64(countMatches(g.urgent, body))

	e := entity.Enrichment{
		Scores: entity.Scores{
			entity.SignalRelevance:  capUnit(relevance),
			entity.SignalImportance: capUnit(importance),
			entity.SignalActionable: capUnit(actionable),
			entity.SignalUrgency:    capUnit(urgency),
		},
		Topic:     topic,
		Sectors:   sectors,
		Sentiment: sentiment,
	}
	g.metrics.RecordCall(providerGlossary, 0, nil)
	return e, nil
}

// topic prefers the label mentioned most often; ties and no mentions fall
// back to the first sector hint that names a known label.
func (g *Glossary) topic(body string, sectors []string) string {
	best, bestCount := "", 0
	for _, label := range g.vocab.TopicLabels {
		n := len(g.topics[label].FindAllStringIndex(body, -1))
		if n > bestCount {
			best, bestCount = label, n
		}
	}
	if best != "" {
		return best
	}
	for _, s := range sectors {
		if hint, ok := sectorTopicHints[s]; ok && canonicalTopic(hint, g.vocab.TopicLabels) != "" {
			return hint
		}
	}
	return ""
}

func capUnit(f float64) float64 {
	v, _ := clamp(f)
	return v
}
