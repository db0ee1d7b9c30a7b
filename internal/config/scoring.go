package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"newsintel/internal/domain/entity"
)

// ScoringConfig holds the consumer-side scoring defaults and the
// classification vocabulary used by the enrichers.
type ScoringConfig struct {
	Profile         ProfileConfig       `yaml:"profile"`
	PriorityWeights map[string]float64  `yaml:"priority_weights"`
	TopicLabels     []string            `yaml:"topic_labels"`
	SectorGlossary  map[string][]string `yaml:"sector_glossary"`
}

// ProfileConfig is the YAML form of entity.Profile.
type ProfileConfig struct {
	MinRelevance        float64  `yaml:"min_relevance"`
	MinImportance       float64  `yaml:"min_importance"`
	MinAgeDays          int      `yaml:"min_age_days"`
	InterestedTopics    []string `yaml:"interested_topics"`
	InterestedSectors   []string `yaml:"interested_sectors"`
	SentimentPreference string   `yaml:"sentiment_preference"`
}

// DefaultTopicLabels are the topics an article can be classified into.
func DefaultTopicLabels() []string {
	return []string{
		"Technology", "Business", "Finance", "Geopolitics", "Health",
		"AI", "Cryptocurrency", "Economics", "Politics", "Environment",
	}
}

// DefaultSectorGlossary maps a sector tag to the keywords that indicate it.
func DefaultSectorGlossary() map[string][]string {
	return map[string][]string{
		"cloud":            {"AWS", "Azure", "GCP", "cloud computing", "serverless"},
		"crypto":           {"bitcoin", "ethereum", "stablecoin", "blockchain", "NFT", "DeFi", "crypto currency", "cryptocurrency"},
		"saas":             {"SaaS", "subscription service", "cloud software", "software as a service"},
		"biotech":          {"biotech", "biotechnology", "gene editing", "CRISPR", "pharmaceutical"},
		"fintech":          {"fintech", "payment processing", "digital banking", "insurtech"},
		"e-commerce":       {"e-commerce", "online retail", "shopify", "amazon"},
		"cybersecurity":    {"cybersecurity", "data breach", "malware", "ransomware", "security"},
		"renewable_energy": {"solar", "wind power", "geothermal", "green energy", "renewable energy"},
		"automotive":       {"automotive", "electric vehicle", "EV", "tesla", "ford", "general motors"},
		"real_estate":      {"real estate", "property market", "housing market", "commercial real estate"},
	}
}

// DefaultScoringConfig returns the built-in profile, weights and vocabulary.
func DefaultScoringConfig() ScoringConfig {
	p := entity.DefaultProfile()
	return ScoringConfig{
		Profile: ProfileConfig{
			MinRelevance:        p.MinRelevance,
			MinImportance:       p.MinImportance,
			MinAgeDays:          p.MinAgeDays,
			InterestedTopics:    p.InterestedTopics,
			InterestedSectors:   p.InterestedSectors,
			SentimentPreference: string(p.SentimentPreference),
		},
		PriorityWeights: entity.DefaultPriorityWeights(),
		TopicLabels:     DefaultTopicLabels(),
		SectorGlossary:  DefaultSectorGlossary(),
	}
}

// LoadScoringConfig reads a YAML file over the defaults. Keys absent from
// the file keep their default; lists replace the default list; maps merge
// into the default map, so a weight is disabled by setting it to 0.
// The path is expected to come from the operator's environment.
func LoadScoringConfig(path string) (*ScoringConfig, error) {
	// #nosec G304 -- path is provided by trusted source (operator environment)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scoring config: %w", err)
	}

	cfg := DefaultScoringConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse scoring config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scoring config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks thresholds, weights and the vocabulary.
func (c *ScoringConfig) Validate() error {
	if err := entity.ValidateProfile(c.ProfileEntity()); err != nil {
		return err
	}
	if err := entity.ValidateWeights(c.Weights()); err != nil {
		return err
	}
	if len(c.TopicLabels) == 0 {
		return fmt.Errorf("topic_labels must not be empty")
	}
	for sector, keywords := range c.SectorGlossary {
		if len(keywords) == 0 {
			return fmt.Errorf("sector_glossary.%s has no keywords", sector)
		}
	}
	return nil
}

// ProfileEntity converts the profile section to an entity.Profile.
func (c *ScoringConfig) ProfileEntity() entity.Profile {
	return entity.Profile{
		MinRelevance:        c.Profile.MinRelevance,
		MinImportance:       c.Profile.MinImportance,
		MinAgeDays:          c.Profile.MinAgeDays,
		InterestedTopics:    append([]string(nil), c.Profile.InterestedTopics...),
		InterestedSectors:   append([]string(nil), c.Profile.InterestedSectors...),
		SentimentPreference: entity.Sentiment(c.Profile.SentimentPreference),
	}
}

// Weights returns a copy of the priority weights.
func (c *ScoringConfig) Weights() entity.PriorityWeights {
	w := make(entity.PriorityWeights, len(c.PriorityWeights))
	for k, v := range c.PriorityWeights {
		w[k] = v
	}
	return w
}
