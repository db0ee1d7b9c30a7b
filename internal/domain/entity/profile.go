package entity

// Profile is consumer-supplied filtering configuration. It is never persisted.
type Profile struct {
	MinRelevance  float64
	MinImportance float64
	// MinAgeDays is the maximum article age, in days, that is still admitted.
	MinAgeDays          int
	InterestedTopics    []string
	InterestedSectors   []string
	SentimentPreference Sentiment
}

// PriorityWeights maps a signal name to a non-negative weight.
// Weights are not required to sum to 1.0.
type PriorityWeights map[string]float64

// Action is the suggested follow-up for an article.
type Action string

const (
	ActionMonitorClosely         Action = "monitor closely"
	ActionInvestigateOpportunity Action = "investigate opportunity"
	ActionConsiderInvestment     Action = "consider investment"
	ActionMonitorCrypto          Action = "monitor crypto market"
	ActionExploreAITrends        Action = "explore AI trends"
	ActionMonitorGeneral         Action = "monitor general"
)

// DefaultProfile returns the thresholds the worker uses when no profile is supplied.
func DefaultProfile() Profile {
	return Profile{
		MinRelevance:        0.5,
		MinImportance:       0.5,
		MinAgeDays:          7,
		InterestedTopics:    []string{"Technology", "Finance", "AI", "Cryptocurrency"},
		InterestedSectors:   []string{"cloud", "crypto", "saas"},
		SentimentPreference: SentimentPositive,
	}
}

// DefaultPriorityWeights returns the composite priority weights.
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		SignalImportance: 0.4,
		SignalRelevance:  0.3,
		SignalActionable: 0.2,
		SignalUrgency:    0.1,
	}
}
