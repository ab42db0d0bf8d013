package reflector_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/embedder/mock"
	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/planner"
	"github.com/sentio-ai/sentio-go/pkg/reflector"
	"github.com/sentio-ai/sentio-go/pkg/storage/chromem"
)

func newTestHub(t *testing.T) *memory.Hub {
	t.Helper()

	store, err := chromem.NewClient()
	require.NoError(t, err)
	hub, err := memory.NewHub(&memory.HubConfig{Store: store, Embedder: mock.New(64)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })
	return hub
}

func seedConcern(t *testing.T, hub *memory.Hub, ownerID string, daysOld int) *memory.Record {
	t.Helper()

	rec, err := hub.Encode(context.Background(), memory.Experience{
		OwnerID:          ownerID,
		Content:          "I'm anxious about my mother's surgery next month",
		Category:         memory.CategoryConcern,
		EmotionTag:       "anxiety",
		EmotionIntensity: 8.5,
	})
	require.NoError(t, err)
	rec.CreatedAt = time.Now().AddDate(0, 0, -daysOld)

	_, err = hub.Consolidate(context.Background(), rec)
	require.NoError(t, err)
	return rec
}

func TestEvaluateSuccess(t *testing.T) {
	hub := newTestHub(t)
	r, err := reflector.New(&reflector.Config{Hub: hub})
	require.NoError(t, err)

	result := r.Evaluate(&reflector.Interaction{
		OwnerID:              "u1",
		Goal:                 planner.GoalCasualChat,
		GoalAddressed:        true,
		Latency:              800 * time.Millisecond,
		PreEmotionIntensity:  3,
		PostEmotionIntensity: -1,
	})

	assert.Equal(t, reflector.OutcomeSuccess, result.Outcome)
	assert.GreaterOrEqual(t, result.Score, 0.8)
	assert.Empty(t, result.Notes)
}

func TestEvaluatePenalizesLatencyAndMissedGoal(t *testing.T) {
	hub := newTestHub(t)
	r, err := reflector.New(&reflector.Config{Hub: hub})
	require.NoError(t, err)

	result := r.Evaluate(&reflector.Interaction{
		OwnerID:              "u1",
		Goal:                 planner.GoalProblemSolving,
		GoalAddressed:        false,
		Latency:              12 * time.Second,
		PostEmotionIntensity: -1,
	})

	assert.Equal(t, reflector.OutcomeFailure, result.Outcome)
	assert.NotEmpty(t, result.Notes, "failures should carry improvement notes")
}

func TestEvaluateEmotionDelta(t *testing.T) {
	hub := newTestHub(t)
	r, err := reflector.New(&reflector.Config{Hub: hub})
	require.NoError(t, err)

	improved := r.Evaluate(&reflector.Interaction{
		GoalAddressed:        true,
		Latency:              time.Second,
		PreEmotionIntensity:  8,
		PostEmotionIntensity: 5,
	})
	worsened := r.Evaluate(&reflector.Interaction{
		GoalAddressed:        true,
		Latency:              time.Second,
		PreEmotionIntensity:  4,
		PostEmotionIntensity: 7,
	})

	assert.InDelta(t, -3, improved.EmotionDelta, 0.001)
	assert.Greater(t, improved.Score, worsened.Score)
}

func TestStaleConcernTriggersFollowupOncePerCooldown(t *testing.T) {
	hub := newTestHub(t)
	seedConcern(t, hub, "u1", 8)

	r, err := reflector.New(&reflector.Config{Hub: hub, StaleDays: 7})
	require.NoError(t, err)

	task, err := r.PlanFollowup(context.Background(), "u1", nil)
	require.NoError(t, err)
	require.NotNil(t, task, "a week-old important concern warrants a follow-up")
	assert.Equal(t, "stale_concern", task.Reason)
	assert.NotZero(t, task.MemoryID)
	assert.False(t, task.At.IsZero())

	again, err := r.PlanFollowup(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, again, "no duplicate follow-up within the cooldown")
}

func TestFreshConcernDoesNotTrigger(t *testing.T) {
	hub := newTestHub(t)
	seedConcern(t, hub, "u1", 2)

	r, err := reflector.New(&reflector.Config{Hub: hub, StaleDays: 7})
	require.NoError(t, err)

	task, err := r.PlanFollowup(context.Background(), "u1", nil)
	require.NoError(t, err)
	assert.Nil(t, task, "recent memories need no follow-up")
}

func TestInactivityTrigger(t *testing.T) {
	hub := newTestHub(t)

	r, err := reflector.New(&reflector.Config{Hub: hub, InactivityDays: 7})
	require.NoError(t, err)

	// No interactions recorded at all: no baseline, no trigger.
	task, err := r.PlanFollowup(context.Background(), "quiet-user", nil)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestEmotionChangeTrigger(t *testing.T) {
	hub := newTestHub(t)
	seedConcern(t, hub, "u1", 2)

	r, err := reflector.New(&reflector.Config{Hub: hub, StaleDays: 7})
	require.NoError(t, err)

	task, err := r.PlanFollowup(context.Background(), "u1", &reflector.FollowupContext{
		CurrentEmotionIntensity: 3.0,
	})
	require.NoError(t, err)
	require.NotNil(t, task, "a marked emotional shift since a concern warrants a check-in")
	assert.Equal(t, "emotion_change", task.Reason)
}
