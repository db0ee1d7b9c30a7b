// Package scoring holds the pure functions consumers use to select articles:
// bucketing, profile admission, weighted priority and action suggestion.
// Nothing here performs I/O or keeps state.
package scoring

import (
	"maps"
	"slices"
	"strings"
	"time"

	"newsintel/internal/domain/entity"
)

// Bucket thresholds. Each bound belongs to the higher band.
const (
	HighThreshold   = 0.75
	MediumThreshold = 0.4
)

// Bucket maps a score onto High, Medium or Low.
func Bucket(score float64) entity.Bucket {
	switch {
	case score >= HighThreshold:
		return entity.BucketHigh
	case score >= MediumThreshold:
		return entity.BucketMedium
	default:
		return entity.BucketLow
	}
}

// Admit reports whether a satisfies every threshold and preference of p,
// measuring article age against the current time.
func Admit(a *entity.Article, p entity.Profile) bool {
	return AdmitAt(a, p, time.Now())
}

// AdmitAt is Admit with an explicit reference time.
//
// All checks must pass. A publication time that is absent or unparsable
// passes the age check, an absent topic passes the topic check, an article
// without sectors passes the sector check, and an absent sentiment is read
// as neutral.
func AdmitAt(a *entity.Article, p entity.Profile, now time.Time) bool {
	if a.Scores.Get(entity.SignalRelevance) < p.MinRelevance {
		return false
	}
	if a.Scores.Get(entity.SignalImportance) < p.MinImportance {
		return false
	}

	oldest := now.Add(-time.Duration(p.MinAgeDays) * 24 * time.Hour)
	if a.PublishedAt.Before(oldest) {
		return false
	}

	if len(p.InterestedTopics) > 0 && a.Topic != "" && !contains(p.InterestedTopics, a.Topic) {
		return false
	}

	if len(p.InterestedSectors) > 0 && len(a.Sectors) > 0 && !intersects(a.Sectors, p.InterestedSectors) {
		return false
	}

	if p.SentimentPreference != entity.SentimentAny && a.Sentiment.OrNeutral() != p.SentimentPreference {
		return false
	}

	return true
}

// Priority is the weighted sum of the article's scores. Signals missing from
// the article contribute zero. The result is not normalized by weight sum.
func Priority(a *entity.Article, w entity.PriorityWeights) float64 {
	// Summed in key order so repeated calls give bit-identical results.
	var total float64
	for _, name := range slices.Sorted(maps.Keys(w)) {
		total += w[name] * a.Scores.Get(name)
	}
	return total
}

// UrgencyBucket returns the stored urgency label, or derives it from the
// urgency score when enrichment left it empty.
func UrgencyBucket(a *entity.Article) entity.Bucket {
	if a.UrgencyBucket != "" {
		return a.UrgencyBucket
	}
	return Bucket(a.Scores.Get(entity.SignalUrgency))
}

// SuggestAction evaluates the action rules in order; the first match wins.
func SuggestAction(a *entity.Article) entity.Action {
	urgency := UrgencyBucket(a)

	switch {
	case urgency == entity.BucketHigh && a.Sentiment == entity.SentimentNegative:
		return entity.ActionMonitorClosely
	case urgency == entity.BucketHigh && a.Sentiment == entity.SentimentPositive:
		return entity.ActionInvestigateOpportunity
	case strings.Contains(a.Topic, "Finance") && a.Scores.Get(entity.SignalActionable) > 0.6:
		return entity.ActionConsiderInvestment
	case a.HasSector("crypto"):
		return entity.ActionMonitorCrypto
	case strings.Contains(a.Topic, "AI") && a.Sentiment == entity.SentimentPositive:
		return entity.ActionExploreAITrends
	default:
		return entity.ActionMonitorGeneral
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, v := range a {
		if contains(b, v) {
			return true
		}
	}
	return false
}
