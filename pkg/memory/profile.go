package memory

import (
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"
)

// UserProfile is a derived, non-authoritative aggregate of what the system
// knows about a user: core concerns, emotional trend, communication style,
// and interaction counters.
//
// Profiles are rebuilt from memory records and session statistics on cache
// miss; they are owned by the Hub and consumed read-only by the planner and
// agent core.
type UserProfile struct {
	// OwnerID identifies the user.
	OwnerID string `json:"owner_id"`

	// CoreConcerns lists the user's recurring high-importance concern
	// topics, strongest first.
	CoreConcerns []string `json:"core_concerns,omitempty"`

	// EmotionalTrend labels the recent emotional direction: "improving",
	// "declining", or "stable".
	EmotionalTrend string `json:"emotional_trend"`

	// CommunicationStyle summarizes how the user tends to communicate.
	CommunicationStyle string `json:"communication_style,omitempty"`

	// MemoryCount is the number of durable records for the user.
	MemoryCount int `json:"memory_count"`

	// InteractionCount is the number of recorded interactions.
	InteractionCount int `json:"interaction_count"`

	// AverageEmotionIntensity is the mean intensity across recent records.
	AverageEmotionIntensity float64 `json:"average_emotion_intensity"`

	// LastInteractionAt is the time of the most recent interaction. Zero if
	// the user has none.
	LastInteractionAt time.Time `json:"last_interaction_at,omitempty"`

	// BuiltAt is when the profile was assembled.
	BuiltAt time.Time `json:"built_at"`
}

// profileCache caches user profiles with a TTL, so repeated lookups within
// the TTL window avoid a full rebuild from storage.
type profileCache struct {
	cache *ristretto.Cache
	ttl   time.Duration
}

// newProfileCache creates a TTL cache sized for profile entries.
func newProfileCache(ttl time.Duration) (*profileCache, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile cache: %w", err)
	}

	return &profileCache{cache: cache, ttl: ttl}, nil
}

// Get returns the cached profile for ownerID, or nil on miss.
func (c *profileCache) Get(ownerID string) *UserProfile {
	v, ok := c.cache.Get(ownerID)
	if !ok {
		return nil
	}
	profile, ok := v.(*UserProfile)
	if !ok {
		return nil
	}
	return profile
}

// Set stores a profile under the cache TTL.
func (c *profileCache) Set(ownerID string, profile *UserProfile) {
	c.cache.SetWithTTL(ownerID, profile, 1, c.ttl)
}

// Invalidate drops the cached profile for ownerID.
func (c *profileCache) Invalidate(ownerID string) {
	c.cache.Del(ownerID)
}

// Wait blocks until pending cache writes are visible. Used in tests.
func (c *profileCache) Wait() {
	c.cache.Wait()
}

// Close releases the cache.
func (c *profileCache) Close() {
	c.cache.Close()
}

// buildProfile assembles a UserProfile from memory records and session
// statistics.
func buildProfile(ownerID string, records []*Record, stats *SessionStats) *UserProfile {
	profile := &UserProfile{
		OwnerID:        ownerID,
		EmotionalTrend: "stable",
		MemoryCount:    len(records),
		BuiltAt:        time.Now(),
	}

	if stats != nil {
		profile.InteractionCount = stats.InteractionCount
		profile.LastInteractionAt = stats.LastInteractionAt
	}

	if len(records) == 0 {
		return profile
	}

	var (
		intensitySum float64
		concernCount = map[string]int{}
		shortTurns   int
	)
	for _, r := range records {
		intensitySum += r.EmotionIntensity
		if r.Category == CategoryConcern && r.Importance >= 0.5 {
			topic := r.Summary
			if topic == "" {
				topic = truncateText(r.Content, 80)
			}
			concernCount[topic]++
		}
		if len(r.Content) < 60 {
			shortTurns++
		}
	}
	profile.AverageEmotionIntensity = intensitySum / float64(len(records))
	profile.CoreConcerns = topConcerns(concernCount, 3)
	profile.EmotionalTrend = emotionTrend(records)

	if shortTurns*2 > len(records) {
		profile.CommunicationStyle = "brief and direct"
	} else {
		profile.CommunicationStyle = "detailed and expressive"
	}

	return profile
}

// emotionTrend compares mean intensity of the newer half of records against
// the older half. Records are expected newest first.
func emotionTrend(records []*Record) string {
	if len(records) < 4 {
		return "stable"
	}

	mid := len(records) / 2
	newer := meanIntensity(records[:mid])
	older := meanIntensity(records[mid:])

	switch {
	case newer < older-1.0:
		return "improving"
	case newer > older+1.0:
		return "declining"
	}
	return "stable"
}

func meanIntensity(records []*Record) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += r.EmotionIntensity
	}
	return sum / float64(len(records))
}

func topConcerns(counts map[string]int, limit int) []string {
	type entry struct {
		topic string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for topic, count := range counts {
		entries = append(entries, entry{topic, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].topic < entries[j].topic
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.topic
	}
	return out
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
