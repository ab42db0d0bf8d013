package memory

import (
	"math"
	"strings"
)

// ImportanceScorer computes the initial importance of a memory record from
// its category and the emotion intensity observed at encode time.
//
// The score is a weighted base per category, adjusted by an emotion
// multiplier, then clamped to [0,1]:
//   - intensity above the high threshold raises the score by 50%
//   - intensity below the low threshold lowers the score by 30%
//
// The weights and thresholds are plausible defaults, not tuned constants;
// they are configurable through ImportanceConfig.
type ImportanceScorer struct {
	weights       map[Category]float64
	defaultWeight float64
	highIntensity float64
	lowIntensity  float64
	highBoost     float64
	lowPenalty    float64
}

// ImportanceConfig configures an ImportanceScorer. Zero-valued fields fall
// back to the defaults documented on DefaultImportanceConfig.
type ImportanceConfig struct {
	// Weights maps memory categories to base weights.
	Weights map[Category]float64

	// DefaultWeight applies to categories absent from Weights (default 1.0).
	DefaultWeight float64

	// HighIntensityThreshold is the emotion intensity above which the score
	// is boosted (default 7.5).
	HighIntensityThreshold float64

	// LowIntensityThreshold is the emotion intensity below which the score
	// is reduced (default 5.0).
	LowIntensityThreshold float64

	// HighIntensityBoost is the multiplier applied above the high threshold
	// (default 1.5).
	HighIntensityBoost float64

	// LowIntensityPenalty is the multiplier applied below the low threshold
	// (default 0.7).
	LowIntensityPenalty float64
}

// DefaultImportanceConfig returns the default scorer configuration:
// commitment 1.8, relationship 1.6, concern 1.5, event 1.4, preference 1.3,
// everything else 1.0; boost x1.5 above intensity 7.5, penalty x0.7 below 5.0.
func DefaultImportanceConfig() *ImportanceConfig {
	return &ImportanceConfig{
		Weights: map[Category]float64{
			CategoryCommitment:   1.8,
			CategoryRelationship: 1.6,
			CategoryConcern:      1.5,
			CategoryEvent:        1.4,
			CategoryPreference:   1.3,
		},
		DefaultWeight:          1.0,
		HighIntensityThreshold: 7.5,
		LowIntensityThreshold:  5.0,
		HighIntensityBoost:     1.5,
		LowIntensityPenalty:    0.7,
	}
}

// NewImportanceScorer creates a scorer from cfg. A nil cfg uses
// DefaultImportanceConfig.
func NewImportanceScorer(cfg *ImportanceConfig) *ImportanceScorer {
	defaults := DefaultImportanceConfig()
	if cfg == nil {
		cfg = defaults
	}

	weights := cfg.Weights
	if weights == nil {
		weights = defaults.Weights
	}

	s := &ImportanceScorer{
		weights:       weights,
		defaultWeight: cfg.DefaultWeight,
		highIntensity: cfg.HighIntensityThreshold,
		lowIntensity:  cfg.LowIntensityThreshold,
		highBoost:     cfg.HighIntensityBoost,
		lowPenalty:    cfg.LowIntensityPenalty,
	}
	if s.defaultWeight == 0 {
		s.defaultWeight = defaults.DefaultWeight
	}
	if s.highIntensity == 0 {
		s.highIntensity = defaults.HighIntensityThreshold
	}
	if s.lowIntensity == 0 {
		s.lowIntensity = defaults.LowIntensityThreshold
	}
	if s.highBoost == 0 {
		s.highBoost = defaults.HighIntensityBoost
	}
	if s.lowPenalty == 0 {
		s.lowPenalty = defaults.LowIntensityPenalty
	}
	return s
}

// Score computes the clamped [0,1] importance for a category and emotion
// intensity. The base weight is divided by a fixed 2.0, so the default
// category at neutral intensity scores 0.5 and weights above 2.0 saturate
// at the top of the range.
func (s *ImportanceScorer) Score(category Category, emotionIntensity float64) float64 {
	weight, ok := s.weights[category]
	if !ok {
		weight = s.defaultWeight
	}

	// Normalize to [0,1] against a weight of 2.0 so the default category at
	// neutral intensity scores 0.5.
	score := weight / 2.0

	switch {
	case emotionIntensity > s.highIntensity:
		score *= s.highBoost
	case emotionIntensity < s.lowIntensity:
		score *= s.lowPenalty
	}

	return clamp01(score)
}

// InferCategory guesses a record's category from content keywords. It is a
// heuristic fallback used when the caller does not supply a category.
func InferCategory(content string) Category {
	lower := strings.ToLower(content)

	switch {
	case containsAny(lower, "promise", "will do", "commit", "i'll", "deadline", "by tomorrow", "by friday"):
		return CategoryCommitment
	case containsAny(lower, "friend", "mother", "father", "partner", "wife", "husband", "family", "brother", "sister", "colleague"):
		return CategoryRelationship
	case containsAny(lower, "worried", "anxious", "afraid", "stress", "concern", "scared", "nervous"):
		return CategoryConcern
	case containsAny(lower, "prefer", "favorite", "like to", "love to", "hate", "dislike", "always use"):
		return CategoryPreference
	case containsAny(lower, "yesterday", "today", "happened", "went to", "met with", "attended"):
		return CategoryEvent
	}
	return CategoryGeneral
}

// InferType guesses a record's memory type from content structure.
func InferType(content string) Type {
	lower := strings.ToLower(content)

	switch {
	case containsAny(lower, "how to", "step 1", "first,", "procedure", "instructions"):
		return TypeProcedural
	case containsAny(lower, "yesterday", "today", "last week", "happened", "went to", "met with"):
		return TypeEpisodic
	case containsAny(lower, "is a", "are a", "prefer", "favorite", "always", "never", "my name"):
		return TypeSemantic
	}
	return TypeConversational
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}
