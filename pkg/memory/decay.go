package memory

import (
	"math"
	"time"
)

// DecayModel computes effective retrieval scores for memory records.
//
// The effective score of a record for a query is
//
//	base × decay_rate^days_since_created × (1 + access_boost × min(access_count, access_cap))
//
// plus an additive importance boost, where base is the similarity, recency,
// or emotion-match score assigned by the retrieval strategy. Decay rates are
// per-day multiplicative factors; important records decay more slowly.
type DecayModel struct {
	normalRate     float64
	importantRate  float64
	importanceMin  float64
	accessBoost    float64
	accessCap      int
	importanceGain float64
}

// DecayConfig configures a DecayModel. Zero-valued fields fall back to the
// defaults documented on DefaultDecayConfig.
type DecayConfig struct {
	// NormalRate is the per-day decay factor for ordinary records
	// (default 0.90).
	NormalRate float64

	// ImportantRate is the per-day decay factor for important records
	// (default 0.95).
	ImportantRate float64

	// ImportanceThreshold is the importance above which a record uses
	// ImportantRate (default 0.7).
	ImportanceThreshold float64

	// AccessBoost is the per-access score multiplier increment
	// (default 0.05).
	AccessBoost float64

	// AccessCap bounds the access count used for boosting (default 10).
	AccessCap int

	// ImportanceGain scales the additive importance boost (default 0.2).
	ImportanceGain float64
}

// DefaultDecayConfig returns the default decay configuration.
func DefaultDecayConfig() *DecayConfig {
	return &DecayConfig{
		NormalRate:          0.90,
		ImportantRate:       0.95,
		ImportanceThreshold: 0.7,
		AccessBoost:         0.05,
		AccessCap:           10,
		ImportanceGain:      0.2,
	}
}

// NewDecayModel creates a decay model from cfg. A nil cfg uses
// DefaultDecayConfig.
func NewDecayModel(cfg *DecayConfig) *DecayModel {
	defaults := DefaultDecayConfig()
	if cfg == nil {
		cfg = defaults
	}

	m := &DecayModel{
		normalRate:     cfg.NormalRate,
		importantRate:  cfg.ImportantRate,
		importanceMin:  cfg.ImportanceThreshold,
		accessBoost:    cfg.AccessBoost,
		accessCap:      cfg.AccessCap,
		importanceGain: cfg.ImportanceGain,
	}
	if m.normalRate == 0 {
		m.normalRate = defaults.NormalRate
	}
	if m.importantRate == 0 {
		m.importantRate = defaults.ImportantRate
	}
	if m.importanceMin == 0 {
		m.importanceMin = defaults.ImportanceThreshold
	}
	if m.accessBoost == 0 {
		m.accessBoost = defaults.AccessBoost
	}
	if m.accessCap == 0 {
		m.accessCap = defaults.AccessCap
	}
	if m.importanceGain == 0 {
		m.importanceGain = defaults.ImportanceGain
	}
	return m
}

// RateFor returns the per-day decay rate for a record with the given
// importance.
func (m *DecayModel) RateFor(importance float64) float64 {
	if importance >= m.importanceMin {
		return m.importantRate
	}
	return m.normalRate
}

// EffectiveScore computes the decayed, access-boosted retrieval score of a
// record given the base score its retrieval strategy assigned.
//
// The record's own DecayRate is honored when set; otherwise the rate is
// derived from its importance via RateFor.
func (m *DecayModel) EffectiveScore(record *Record, baseScore float64, now time.Time) float64 {
	rate := record.DecayRate
	if rate <= 0 || rate > 1 {
		rate = m.RateFor(record.Importance)
	}

	days := now.Sub(record.CreatedAt).Hours() / 24.0
	if days < 0 {
		days = 0
	}

	accessCount := record.AccessCount
	if accessCount > m.accessCap {
		accessCount = m.accessCap
	}

	decayed := baseScore * math.Pow(rate, days)
	boosted := decayed * (1.0 + m.accessBoost*float64(accessCount))

	return boosted + m.importanceGain*record.Importance
}
