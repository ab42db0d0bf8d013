package memory_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sentio-ai/sentio-go/pkg/memory"
)

func TestEffectiveScoreDecaysOverTime(t *testing.T) {
	model := memory.NewDecayModel(nil)
	now := time.Now()

	record := &memory.Record{
		DecayRate: 0.9,
		CreatedAt: now,
	}

	fresh := model.EffectiveScore(record, 1.0, now)
	tenDays := model.EffectiveScore(record, 1.0, now.AddDate(0, 0, 10))

	// With no accesses and zero importance the two scores differ exactly by
	// the ten-day decay factor.
	assert.InDelta(t, fresh*math.Pow(0.9, 10), tenDays, 0.001)
}

func TestEffectiveScoreAccessBoost(t *testing.T) {
	model := memory.NewDecayModel(nil)
	now := time.Now()

	unaccessed := &memory.Record{DecayRate: 0.9, CreatedAt: now}
	accessed := &memory.Record{DecayRate: 0.9, CreatedAt: now, AccessCount: 4}

	base := model.EffectiveScore(unaccessed, 1.0, now)
	boosted := model.EffectiveScore(accessed, 1.0, now)

	assert.InDelta(t, base*1.20, boosted, 0.001, "four accesses add a 20%% boost")
}

func TestAccessBoostCapped(t *testing.T) {
	model := memory.NewDecayModel(nil)
	now := time.Now()

	atCap := &memory.Record{DecayRate: 0.9, CreatedAt: now, AccessCount: 10}
	overCap := &memory.Record{DecayRate: 0.9, CreatedAt: now, AccessCount: 50}

	assert.InDelta(t,
		model.EffectiveScore(atCap, 1.0, now),
		model.EffectiveScore(overCap, 1.0, now),
		0.001, "access boost should cap at 10 accesses")
}

func TestImportanceAdditiveBoost(t *testing.T) {
	model := memory.NewDecayModel(nil)
	now := time.Now()

	plain := &memory.Record{DecayRate: 0.9, CreatedAt: now}
	important := &memory.Record{DecayRate: 0.9, CreatedAt: now, Importance: 1.0}

	diff := model.EffectiveScore(important, 1.0, now) - model.EffectiveScore(plain, 1.0, now)
	assert.InDelta(t, 0.2, diff, 0.001, "importance adds up to the configured gain")
}

func TestRateForImportance(t *testing.T) {
	model := memory.NewDecayModel(nil)

	assert.InDelta(t, 0.90, model.RateFor(0.3), 0.001, "ordinary records decay at the normal rate")
	assert.InDelta(t, 0.95, model.RateFor(0.8), 0.001, "important records decay more slowly")
}

func TestConfigurableRates(t *testing.T) {
	model := memory.NewDecayModel(&memory.DecayConfig{
		NormalRate:    0.5,
		ImportantRate: 0.99,
	})

	assert.InDelta(t, 0.5, model.RateFor(0.0), 0.001)
	assert.InDelta(t, 0.99, model.RateFor(0.9), 0.001)
}
