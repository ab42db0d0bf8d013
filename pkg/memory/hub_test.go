package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentio-ai/sentio-go/pkg/embedder"
	"github.com/sentio-ai/sentio-go/pkg/embedder/mock"
	"github.com/sentio-ai/sentio-go/pkg/memory"
	"github.com/sentio-ai/sentio-go/pkg/storage/chromem"
)

func newTestHub(t *testing.T) *memory.Hub {
	t.Helper()

	store, err := chromem.NewClient()
	require.NoError(t, err)

	hub, err := memory.NewHub(&memory.HubConfig{
		Store:    store,
		Embedder: mock.New(64),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = hub.Close() })

	return hub
}

func TestEncodeSetsScoredFields(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID:          "u1",
		Content:          "I'm really worried about my exam",
		EmotionTag:       "anxiety",
		EmotionIntensity: 9,
	})
	require.NoError(t, err)

	assert.NotZero(t, rec.ID)
	assert.Equal(t, memory.CategoryConcern, rec.Category)
	assert.Greater(t, rec.Importance, 0.6)
	assert.NotEmpty(t, rec.Embedding)
	assert.NotEmpty(t, rec.ContentHash)
	assert.InDelta(t, 0.95, rec.DecayRate, 0.001, "important records get the slow decay rate")
}

func TestEncodeDegradedWhenEmbedderFails(t *testing.T) {
	store, err := chromem.NewClient()
	require.NoError(t, err)

	hub, err := memory.NewHub(&memory.HubConfig{
		Store:    store,
		Embedder: mock.NewFailing(embedder.ErrUnavailable),
	})
	require.NoError(t, err)
	defer hub.Close()

	ctx := context.Background()
	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID: "u1",
		Content: "remember my passport is in the top drawer",
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrEncoding)
	require.NotNil(t, rec, "a degraded record is still returned")
	assert.Empty(t, rec.Embedding)

	// Degraded records still consolidate and stay reachable via recency.
	stored, err := hub.Consolidate(ctx, rec)
	require.NoError(t, err)
	assert.True(t, stored)

	results, err := hub.Retrieve(ctx, "passport", "u1", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, rec.Content, results[0].Content)
}

func TestEncodeConsolidateRetrieveRoundTrip(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID: "u1",
		Content: "I love hiking in the mountains on weekends",
	})
	require.NoError(t, err)

	stored, err := hub.Consolidate(ctx, rec)
	require.NoError(t, err)
	assert.True(t, stored)

	results, err := hub.Retrieve(ctx, "I love hiking in the mountains on weekends", "u1", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, rec.ID, results[0].ID, "the encoded record should rank first for its own content")
}

func TestConsolidateIdempotent(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	first, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: "my sister's birthday is in June"})
	require.NoError(t, err)
	second, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: "my sister's birthday is in June"})
	require.NoError(t, err)

	stored, err := hub.Consolidate(ctx, first)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = hub.Consolidate(ctx, second)
	require.NoError(t, err)
	assert.False(t, stored, "the same logical experience must not duplicate")

	records, err := hub.ScanRecent(ctx, "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRetrieveRespectsTopKAndOrdering(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	contents := []string{
		"I started a new job at the library",
		"my cat is named Biscuit",
		"I am training for a half marathon",
		"the garden needs watering on Tuesdays",
		"I met an old friend downtown yesterday",
	}
	for _, content := range contents {
		rec, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: content})
		require.NoError(t, err)
		_, err = hub.Consolidate(ctx, rec)
		require.NoError(t, err)
	}

	results, err := hub.Retrieve(ctx, "training for a marathon", "u1", nil, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be sorted by descending score")
	}
}

func TestRetrieveTouchesReturnedRecords(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: "I keep my keys by the door"})
	require.NoError(t, err)
	_, err = hub.Consolidate(ctx, rec)
	require.NoError(t, err)

	results, err := hub.Retrieve(ctx, "where are my keys", "u1", nil, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, 1, results[0].AccessCount)
	assert.NotNil(t, results[0].LastAccessedAt)

	// The increment is durable, not just on the returned copy.
	records, err := hub.ScanRecent(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].AccessCount)
}

func TestRetrieveEmotionStrategy(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID:          "u1",
		Content:          "work has been stressful lately",
		EmotionTag:       "anxiety",
		EmotionIntensity: 7,
	})
	require.NoError(t, err)
	_, err = hub.Consolidate(ctx, rec)
	require.NoError(t, err)

	results, err := hub.Retrieve(ctx, "completely unrelated query text", "u1",
		&memory.RetrieveContext{EmotionTag: "anxiety"}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results, "emotion-matched records should surface even for unrelated queries")
	assert.Equal(t, "anxiety", results[0].EmotionTag)
}

func TestGetUserProfileCached(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID:          "u1",
		Content:          "I'm worried about my mother's health",
		Category:         memory.CategoryConcern,
		EmotionTag:       "anxiety",
		EmotionIntensity: 8,
	})
	require.NoError(t, err)
	_, err = hub.Consolidate(ctx, rec)
	require.NoError(t, err)
	hub.RecordInteraction("u1")

	profile, err := hub.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.OwnerID)
	assert.Equal(t, 1, profile.MemoryCount)
	assert.Equal(t, 1, profile.InteractionCount)
	assert.NotEmpty(t, profile.CoreConcerns)

	hub.WaitProfileCache()

	again, err := hub.GetUserProfile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.BuiltAt, again.BuiltAt, "second lookup should hit the cache")
}

func TestUpdateMetadataPersists(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	rec, err := hub.Encode(ctx, memory.Experience{
		OwnerID:  "u1",
		Content:  "I promised to call my brother this weekend",
		Metadata: map[string]string{"interaction_id": "turn-1"},
	})
	require.NoError(t, err)
	_, err = hub.Consolidate(ctx, rec)
	require.NoError(t, err)

	require.NoError(t, hub.UpdateMetadata(ctx, rec.ID, map[string]string{"followup_at": "1700000000"}))

	records, err := hub.ScanRecent(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1700000000", records[0].Metadata["followup_at"])
	assert.Equal(t, "turn-1", records[0].Metadata["interaction_id"], "merge keeps existing entries")
}

func TestConsolidateAllPreservesOrder(t *testing.T) {
	hub := newTestHub(t)
	ctx := context.Background()

	var pending []*memory.Record
	for _, content := range []string{"first note", "second note", "third note"} {
		rec, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: content})
		require.NoError(t, err)
		rec.CreatedAt = time.Now().Add(-time.Duration(3-len(pending)) * time.Minute)
		pending = append(pending, rec)
	}

	stored, err := hub.ConsolidateAll(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, 3, stored)

	records, err := hub.ScanRecent(ctx, "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	// Newest first from the scan; the batch's chronological order survives.
	assert.Equal(t, "third note", records[0].Content)
	assert.Equal(t, "first note", records[2].Content)
}
