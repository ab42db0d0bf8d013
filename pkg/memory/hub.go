package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"github.com/sentio-ai/sentio-go/pkg/embedder"
	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// ErrEncoding indicates that the embedding provider was unavailable while
// encoding an experience. The returned record is still usable: it carries no
// vector index and participates only in recency and emotion retrieval until
// re-encoded.
var ErrEncoding = errors.New("memory encoding degraded: embedding unavailable")

// Experience is the raw input to Hub.Encode: one completed interaction or
// extracted fact to remember.
type Experience struct {
	// OwnerID identifies the user (required).
	OwnerID string

	// SessionID identifies the originating session.
	SessionID string

	// Content is the text to remember (required).
	Content string

	// Summary is an optional short form of Content.
	Summary string

	// MemoryType overrides type inference when set.
	MemoryType Type

	// Category overrides category inference when set.
	Category Category

	// EmotionTag labels the dominant emotion.
	EmotionTag string

	// EmotionIntensity is the emotion strength (0-10).
	EmotionIntensity float64

	// Metadata carries auxiliary key-value data.
	Metadata map[string]string
}

// RetrieveContext carries per-query retrieval signals.
type RetrieveContext struct {
	// EmotionTag enables the emotion-consistency strategy when set.
	EmotionTag string

	// MinScore filters out candidates whose effective score falls below it.
	MinScore float64
}

// SessionStats aggregates per-user interaction counters. They feed profile
// rebuilds and the reflector's inactivity trigger.
type SessionStats struct {
	OwnerID           string    `json:"owner_id"`
	InteractionCount  int       `json:"interaction_count"`
	LastInteractionAt time.Time `json:"last_interaction_at"`
}

// HubConfig configures a Hub.
type HubConfig struct {
	// Store is the durable record store (required).
	Store storage.Store

	// Embedder produces content vectors (required).
	Embedder embedder.Provider

	// Logger receives structured hub events. A zero Logger is usable and
	// silent.
	Logger zerolog.Logger

	// Importance configures the importance scorer (nil for defaults).
	Importance *ImportanceConfig

	// Decay configures the decay model (nil for defaults).
	Decay *DecayConfig

	// ProfileTTL is the user-profile cache lifetime (default 24h).
	ProfileTTL time.Duration

	// EmbedTimeout bounds embedding calls (default 20s).
	EmbedTimeout time.Duration

	// SearchTimeout bounds vector search calls (default 5s).
	SearchTimeout time.Duration

	// DedupThreshold is the cosine similarity above which a candidate for
	// consolidation is treated as a duplicate of an existing record
	// (default 0.92).
	DedupThreshold float64

	// ScanLimit bounds recency and emotion scans per retrieval (default 50).
	ScanLimit int

	// NodeID seeds snowflake ID generation (default 1).
	NodeID int64
}

// Hub encodes experiences into memory records, retrieves them by blended
// semantic, recency, and emotion strategies, consolidates them into durable
// storage idempotently, and derives cached user profiles.
//
// Example usage:
//
//	hub, err := memory.NewHub(&memory.HubConfig{Store: store, Embedder: emb})
//	rec, err := hub.Encode(ctx, memory.Experience{OwnerID: "u1", Content: "..."})
//	stored, err := hub.Consolidate(ctx, rec)
//	results, err := hub.Retrieve(ctx, "query", "u1", nil, 5)
type Hub struct {
	store    storage.Store
	embedder embedder.Provider
	scorer   *ImportanceScorer
	decay    *DecayModel
	profiles *profileCache
	node     *snowflake.Node
	logger   zerolog.Logger

	embedTimeout   time.Duration
	searchTimeout  time.Duration
	dedupThreshold float64
	scanLimit      int

	mu      sync.Mutex
	windows map[string]*WorkingWindow
	stats   map[string]*SessionStats
}

// NewHub creates a Hub from cfg.
//
// Returns an error when required collaborators are missing or the profile
// cache cannot be created.
func NewHub(cfg *HubConfig) (*Hub, error) {
	if cfg == nil {
		return nil, errors.New("hub config is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("hub requires a storage backend")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("hub requires an embedding provider")
	}

	nodeID := cfg.NodeID
	if nodeID == 0 {
		nodeID = 1
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("create id generator: %w", err)
	}

	profiles, err := newProfileCache(cfg.ProfileTTL)
	if err != nil {
		return nil, err
	}

	hub := &Hub{
		store:          cfg.Store,
		embedder:       cfg.Embedder,
		scorer:         NewImportanceScorer(cfg.Importance),
		decay:          NewDecayModel(cfg.Decay),
		profiles:       profiles,
		node:           node,
		logger:         cfg.Logger,
		embedTimeout:   cfg.EmbedTimeout,
		searchTimeout:  cfg.SearchTimeout,
		dedupThreshold: cfg.DedupThreshold,
		scanLimit:      cfg.ScanLimit,
		windows:        make(map[string]*WorkingWindow),
		stats:          make(map[string]*SessionStats),
	}
	if hub.embedTimeout <= 0 {
		hub.embedTimeout = 20 * time.Second
	}
	if hub.searchTimeout <= 0 {
		hub.searchTimeout = 5 * time.Second
	}
	if hub.dedupThreshold <= 0 {
		hub.dedupThreshold = 0.92
	}
	if hub.scanLimit <= 0 {
		hub.scanLimit = 50
	}

	return hub, nil
}

// Encode turns an experience into a memory record: infers type and category
// when absent, scores importance, assigns the decay rate, and produces the
// content embedding.
//
// When the embedding provider is unavailable the record is still returned,
// without a vector, together with an error wrapping ErrEncoding. Callers
// should consolidate such records anyway; they remain reachable through
// recency and emotion retrieval.
func (h *Hub) Encode(ctx context.Context, exp Experience) (*Record, error) {
	if exp.OwnerID == "" {
		return nil, errors.New("encode: owner id is required")
	}
	if strings.TrimSpace(exp.Content) == "" {
		return nil, errors.New("encode: content is required")
	}

	memType := exp.MemoryType
	if !memType.Valid() {
		memType = InferType(exp.Content)
	}
	category := exp.Category
	if category == "" {
		category = InferCategory(exp.Content)
	}

	importance := h.scorer.Score(category, exp.EmotionIntensity)

	record := &Record{
		ID:               h.node.Generate().Int64(),
		OwnerID:          exp.OwnerID,
		SessionID:        exp.SessionID,
		Content:          exp.Content,
		Summary:          exp.Summary,
		MemoryType:       memType,
		Category:         category,
		ContentHash:      HashContent(exp.OwnerID, exp.Content),
		EmotionTag:       exp.EmotionTag,
		EmotionIntensity: exp.EmotionIntensity,
		Importance:       importance,
		DecayRate:        h.decay.RateFor(importance),
		CreatedAt:        time.Now(),
		Metadata:         exp.Metadata,
	}

	embedCtx, cancel := context.WithTimeout(ctx, h.embedTimeout)
	defer cancel()

	vector, err := h.embedder.Embed(embedCtx, exp.Content)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Str("owner_id", exp.OwnerID).
			Msg("encode degraded: embedding failed")
		return record, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	record.Embedding = vector

	h.logger.Debug().
		Int64("memory_id", record.ID).
		Str("owner_id", record.OwnerID).
		Str("type", string(record.MemoryType)).
		Float64("importance", record.Importance).
		Msg("experience encoded")

	return record, nil
}

// Consolidate moves a record into durable long-term storage.
//
// Consolidation is idempotent: the same logical experience is stored at most
// once, keyed by content hash. Near-duplicates above the similarity threshold
// reinforce the existing record instead of inserting a new one. Returns true
// when a new durable record was written, false when the experience was
// already stored.
func (h *Hub) Consolidate(ctx context.Context, record *Record) (bool, error) {
	if record == nil {
		return false, errors.New("consolidate: record is required")
	}
	if record.ContentHash == "" {
		record.ContentHash = HashContent(record.OwnerID, record.Content)
	}

	// Fast path: exact content already consolidated.
	existing, err := h.store.GetByHash(ctx, record.OwnerID, record.ContentHash)
	if err == nil && existing != nil {
		h.reinforce(ctx, existing.ID)
		return false, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("consolidate: %w", err)
	}

	// Near-duplicate check via semantic similarity.
	if len(record.Embedding) > 0 {
		if dup := h.findNearDuplicate(ctx, record); dup != nil {
			h.logger.Debug().
				Int64("memory_id", dup.ID).
				Float64("similarity", dup.Score).
				Msg("consolidation merged into near-duplicate")
			h.reinforce(ctx, dup.ID)
			return false, nil
		}
	}

	if err := h.store.Insert(ctx, record.toStorage()); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return false, nil
		}
		return false, fmt.Errorf("consolidate: %w", err)
	}

	h.profiles.Invalidate(record.OwnerID)
	h.logger.Debug().
		Int64("memory_id", record.ID).
		Str("owner_id", record.OwnerID).
		Msg("record consolidated")

	return true, nil
}

// ConsolidateAll consolidates pending records in order, preserving their
// chronological sequence in durable storage. Each record is all-or-nothing;
// a failure stops the batch and reports how many records were newly stored.
func (h *Hub) ConsolidateAll(ctx context.Context, records []*Record) (int, error) {
	stored := 0
	for _, record := range records {
		fresh, err := h.Consolidate(ctx, record)
		if err != nil {
			return stored, err
		}
		if fresh {
			stored++
		}
	}
	return stored, nil
}

// Retrieve returns up to topK records relevant to query for ownerID, ordered
// by descending effective score with ties broken by most recent creation.
//
// Three strategies contribute candidates: semantic similarity over
// embeddings, a recency-ordered scan, and an emotion-consistency scan when
// rctx carries an emotion tag. Candidates found by several strategies keep
// their highest base score. Every returned record has its access count
// incremented and last-access time refreshed as a side effect.
func (h *Hub) Retrieve(ctx context.Context, query, ownerID string, rctx *RetrieveContext, topK int) ([]*Record, error) {
	if ownerID == "" {
		return nil, errors.New("retrieve: owner id is required")
	}
	if topK <= 0 {
		topK = 5
	}
	if rctx == nil {
		rctx = &RetrieveContext{}
	}

	candidates := make(map[int64]*candidate)

	if err := h.semanticCandidates(ctx, query, ownerID, topK, candidates); err != nil {
		// Degraded retrieval: recency and emotion strategies still apply.
		h.logger.Warn().Err(err).Str("owner_id", ownerID).Msg("semantic retrieval unavailable")
	}
	if err := h.recencyCandidates(ctx, ownerID, candidates); err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	if rctx.EmotionTag != "" {
		if err := h.emotionCandidates(ctx, ownerID, rctx.EmotionTag, candidates); err != nil {
			return nil, fmt.Errorf("retrieve: %w", err)
		}
	}

	now := time.Now()
	results := make([]*Record, 0, len(candidates))
	for _, c := range candidates {
		c.record.Score = h.decay.EffectiveScore(c.record, c.base, now)
		if c.record.Score < rctx.MinScore {
			continue
		}
		results = append(results, c.record)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > topK {
		results = results[:topK]
	}

	if len(results) > 0 {
		ids := make([]int64, len(results))
		for i, r := range results {
			ids[i] = r.ID
		}
		if err := h.store.Touch(ctx, ids, now); err != nil {
			h.logger.Warn().Err(err).Msg("access bookkeeping failed")
		} else {
			for _, r := range results {
				r.AccessCount++
				at := now
				r.LastAccessedAt = &at
			}
		}
	}

	return results, nil
}

// GetUserProfile returns the cached profile for ownerID, rebuilding it from
// recent records and session statistics on cache miss or expiry.
func (h *Hub) GetUserProfile(ctx context.Context, ownerID string) (*UserProfile, error) {
	if cached := h.profiles.Get(ownerID); cached != nil {
		return cached, nil
	}

	stored, err := h.store.Scan(ctx, &storage.ScanOptions{
		OwnerID: ownerID,
		Limit:   100,
	})
	if err != nil {
		return nil, fmt.Errorf("profile rebuild: %w", err)
	}

	records := make([]*Record, len(stored))
	for i, sr := range stored {
		records[i] = fromStorage(sr)
	}

	profile := buildProfile(ownerID, records, h.Stats(ownerID))
	h.profiles.Set(ownerID, profile)
	return profile, nil
}

// Summary produces a short textual digest of the user's most recent durable
// memories, suitable for envelope context blocks and prompts.
func (h *Hub) Summary(ctx context.Context, ownerID string) (string, error) {
	stored, err := h.store.Scan(ctx, &storage.ScanOptions{
		OwnerID: ownerID,
		Limit:   5,
	})
	if err != nil {
		return "", fmt.Errorf("memory summary: %w", err)
	}
	if len(stored) == 0 {
		return "", nil
	}

	var sb strings.Builder
	for i, sr := range stored {
		if i > 0 {
			sb.WriteString("; ")
		}
		if sr.Summary != "" {
			sb.WriteString(sr.Summary)
		} else {
			sb.WriteString(truncateText(sr.Content, 100))
		}
	}
	return sb.String(), nil
}

// Window returns the working-memory window for a session, creating it on
// first use with the given budgets.
func (h *Hub) Window(sessionID string, maxTurns, tokenBudget int) *WorkingWindow {
	h.mu.Lock()
	defer h.mu.Unlock()

	w, ok := h.windows[sessionID]
	if !ok {
		w = NewWorkingWindow(maxTurns, tokenBudget)
		h.windows[sessionID] = w
	}
	return w
}

// RecordInteraction updates session statistics for ownerID. Called once per
// completed turn.
func (h *Hub) RecordInteraction(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.stats[ownerID]
	if !ok {
		s = &SessionStats{OwnerID: ownerID}
		h.stats[ownerID] = s
	}
	s.InteractionCount++
	s.LastInteractionAt = time.Now()
}

// Stats returns a copy of the session statistics for ownerID, or nil when
// the user has no recorded interactions.
func (h *Hub) Stats(ownerID string) *SessionStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.stats[ownerID]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

// ScanRecent returns up to limit recent records for ownerID, newest first,
// optionally filtered by minimum importance. Used by the reflector's
// followup triggers.
func (h *Hub) ScanRecent(ctx context.Context, ownerID string, limit int, minImportance float64) ([]*Record, error) {
	stored, err := h.store.Scan(ctx, &storage.ScanOptions{
		OwnerID:       ownerID,
		Limit:         limit,
		MinImportance: minImportance,
	})
	if err != nil {
		return nil, fmt.Errorf("scan recent: %w", err)
	}

	records := make([]*Record, len(stored))
	for i, sr := range stored {
		records[i] = fromStorage(sr)
	}
	return records, nil
}

// UpdateMetadata merges entries into a record's metadata map and persists it.
// Used for followup bookkeeping.
func (h *Hub) UpdateMetadata(ctx context.Context, id int64, entries map[string]string) error {
	sr, err := h.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	if sr.Metadata == nil {
		sr.Metadata = map[string]string{}
	}
	for k, v := range entries {
		sr.Metadata[k] = v
	}
	if err := h.store.Update(ctx, sr); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

// Close releases the hub's resources.
func (h *Hub) Close() error {
	h.profiles.Close()
	return nil
}

// WaitProfileCache blocks until pending profile cache writes are visible.
// Exposed for tests.
func (h *Hub) WaitProfileCache() {
	h.profiles.Wait()
}

type candidate struct {
	record *Record
	base   float64
}

// merge keeps the highest base score for a record seen by several
// strategies.
func mergeCandidate(candidates map[int64]*candidate, record *Record, base float64) {
	if existing, ok := candidates[record.ID]; ok {
		if base > existing.base {
			existing.base = base
		}
		return
	}
	candidates[record.ID] = &candidate{record: record, base: base}
}

// semanticCandidates adds similarity-scored candidates from vector search.
func (h *Hub) semanticCandidates(ctx context.Context, query, ownerID string, topK int, candidates map[int64]*candidate) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, h.embedTimeout)
	defer cancel()
	vector, err := h.embedder.Embed(embedCtx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, h.searchTimeout)
	defer cancel()
	found, err := h.store.Search(searchCtx, vector, &storage.SearchOptions{
		OwnerID: ownerID,
		Limit:   topK * 2,
	})
	if err != nil {
		return fmt.Errorf("vector search: %w", err)
	}

	for _, sr := range found {
		mergeCandidate(candidates, fromStorage(sr), sr.Score)
	}
	return nil
}

// recencyCandidates adds recency-scored candidates: the newest record gets
// base 1.0, decreasing linearly across the scan window.
func (h *Hub) recencyCandidates(ctx context.Context, ownerID string, candidates map[int64]*candidate) error {
	stored, err := h.store.Scan(ctx, &storage.ScanOptions{
		OwnerID: ownerID,
		Limit:   h.scanLimit,
	})
	if err != nil {
		return err
	}

	for i, sr := range stored {
		base := 1.0 - float64(i)/float64(h.scanLimit)
		mergeCandidate(candidates, fromStorage(sr), base)
	}
	return nil
}

// emotionCandidates adds candidates sharing the current emotion tag with a
// fixed moderate base score.
func (h *Hub) emotionCandidates(ctx context.Context, ownerID, emotionTag string, candidates map[int64]*candidate) error {
	stored, err := h.store.Scan(ctx, &storage.ScanOptions{
		OwnerID:    ownerID,
		Limit:      h.scanLimit,
		EmotionTag: emotionTag,
	})
	if err != nil {
		return err
	}

	const emotionBase = 0.6
	for _, sr := range stored {
		mergeCandidate(candidates, fromStorage(sr), emotionBase)
	}
	return nil
}

// findNearDuplicate returns an existing record whose similarity to the
// candidate exceeds the dedup threshold, or nil.
func (h *Hub) findNearDuplicate(ctx context.Context, record *Record) *Record {
	searchCtx, cancel := context.WithTimeout(ctx, h.searchTimeout)
	defer cancel()

	found, err := h.store.Search(searchCtx, record.Embedding, &storage.SearchOptions{
		OwnerID:  record.OwnerID,
		Limit:    1,
		MinScore: h.dedupThreshold,
	})
	if err != nil || len(found) == 0 {
		return nil
	}
	return fromStorage(found[0])
}

// reinforce bumps access bookkeeping for an already-stored record.
func (h *Hub) reinforce(ctx context.Context, id int64) {
	if err := h.store.Touch(ctx, []int64{id}, time.Now()); err != nil {
		h.logger.Warn().Err(err).Int64("memory_id", id).Msg("reinforcement failed")
	}
}
