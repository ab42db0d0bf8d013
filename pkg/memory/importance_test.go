package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sentio-ai/sentio-go/pkg/memory"
)

func TestImportanceAlwaysClamped(t *testing.T) {
	scorer := memory.NewImportanceScorer(nil)

	categories := []memory.Category{
		memory.CategoryCommitment,
		memory.CategoryRelationship,
		memory.CategoryEvent,
		memory.CategoryConcern,
		memory.CategoryPreference,
		memory.CategoryGeneral,
		memory.Category("unmapped"),
	}
	intensities := []float64{0, 1, 4.9, 5.0, 7.5, 7.6, 9, 10}

	for _, category := range categories {
		for _, intensity := range intensities {
			score := scorer.Score(category, intensity)
			assert.GreaterOrEqual(t, score, 0.0, "category=%s intensity=%v", category, intensity)
			assert.LessOrEqual(t, score, 1.0, "category=%s intensity=%v", category, intensity)
		}
	}
}

func TestHighIntensityConcernScoresHigh(t *testing.T) {
	scorer := memory.NewImportanceScorer(nil)

	score := scorer.Score(memory.CategoryConcern, 9)
	assert.Greater(t, score, 0.6, "an intense concern should be important")
}

func TestEmotionMultiplier(t *testing.T) {
	scorer := memory.NewImportanceScorer(nil)

	neutral := scorer.Score(memory.CategoryEvent, 6.0)
	boosted := scorer.Score(memory.CategoryEvent, 8.0)
	dampened := scorer.Score(memory.CategoryEvent, 2.0)

	assert.Greater(t, boosted, neutral, "high intensity should boost importance")
	assert.Less(t, dampened, neutral, "low intensity should reduce importance")
}

func TestCategoryWeightsOrdering(t *testing.T) {
	scorer := memory.NewImportanceScorer(nil)

	commitment := scorer.Score(memory.CategoryCommitment, 6.0)
	preference := scorer.Score(memory.CategoryPreference, 6.0)
	general := scorer.Score(memory.CategoryGeneral, 6.0)

	assert.Greater(t, commitment, preference)
	assert.Greater(t, preference, general)
}

func TestCustomWeights(t *testing.T) {
	scorer := memory.NewImportanceScorer(&memory.ImportanceConfig{
		Weights: map[memory.Category]float64{
			memory.CategoryEvent: 2.0,
		},
	})

	assert.InDelta(t, 1.0, scorer.Score(memory.CategoryEvent, 6.0), 0.001)
}

func TestInferCategory(t *testing.T) {
	cases := map[string]memory.Category{
		"I promise I'll send it by tomorrow":    memory.CategoryCommitment,
		"My mother is visiting next week":       memory.CategoryRelationship,
		"I'm so worried about the interview":    memory.CategoryConcern,
		"My favorite tea is oolong":             memory.CategoryPreference,
		"Yesterday I went to the new gym":       memory.CategoryEvent,
		"The sky is generally blue around noon": memory.CategoryGeneral,
	}

	for content, want := range cases {
		assert.Equal(t, want, memory.InferCategory(content), "content=%q", content)
	}
}

func TestInferType(t *testing.T) {
	assert.Equal(t, memory.TypeProcedural, memory.InferType("How to brew coffee: step 1, grind the beans"))
	assert.Equal(t, memory.TypeEpisodic, memory.InferType("Yesterday I met with the team"))
	assert.Equal(t, memory.TypeSemantic, memory.InferType("My name is Jamie and my favorite color is green"))
	assert.Equal(t, memory.TypeConversational, memory.InferType("sure, sounds good"))
}

func TestHashContentStableAndOwnerScoped(t *testing.T) {
	h1 := memory.HashContent("u1", "hello world")
	h2 := memory.HashContent("u1", "hello world  ")
	h3 := memory.HashContent("u2", "hello world")

	assert.Equal(t, h1, h2, "trailing whitespace should not change the hash")
	assert.NotEqual(t, h1, h3, "different owners should hash differently")
}
