package entity

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

const maxKeyLength = 2048

// ValidateKey checks that a dedup key looks like an absolute http(s) URL.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return &ValidationError{Field: "key", Message: "key is required"}
	}

	if len(key) > maxKeyLength {
		return &ValidationError{
			Field:   "key",
			Message: fmt.Sprintf("key must not exceed %d characters", maxKeyLength),
		}
	}

	parsed, err := url.Parse(key)
	if err != nil {
		return fmt.Errorf("parse key: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return &ValidationError{Field: "key", Message: "key must use http or https scheme"}
	}

	if parsed.Host == "" {
		return &ValidationError{Field: "key", Message: "key must have a valid host"}
	}

	return nil
}

// ValidateScore checks that a signal value is a finite number in [0, 1].
func ValidateScore(name string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ValidationError{
			Field:   "scores." + name,
			Message: fmt.Sprintf("score %v is outside [0, 1]", v),
		}
	}
	return nil
}

// ValidateProfile checks thresholds and the sentiment preference.
func ValidateProfile(p Profile) error {
	if err := ValidateScore("min_relevance", p.MinRelevance); err != nil {
		return err
	}
	if err := ValidateScore("min_importance", p.MinImportance); err != nil {
		return err
	}
	if p.MinAgeDays < 0 {
		return &ValidationError{Field: "min_age_days", Message: "must not be negative"}
	}
	if p.SentimentPreference != SentimentAny && !p.SentimentPreference.IsLabel() {
		return &ValidationError{
			Field:   "sentiment_preference",
			Message: fmt.Sprintf("unknown sentiment %q", p.SentimentPreference),
		}
	}
	return nil
}

// ValidateWeights rejects negative or non-finite weights.
func ValidateWeights(w PriorityWeights) error {
	for name, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return &ValidationError{
				Field:   "weights." + name,
				Message: fmt.Sprintf("weight %v must be a non-negative number", v),
			}
		}
	}
	return nil
}
