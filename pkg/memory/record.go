// Package memory implements the memory hub: encoding of new experiences into
// scored memory records, multi-strategy retrieval with time decay, idempotent
// consolidation into durable storage, and derived user profiles.
package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// Type classifies a memory record.
type Type string

const (
	// TypeEpisodic is a memory of a specific event or experience.
	TypeEpisodic Type = "episodic"

	// TypeSemantic is a general fact, preference, or piece of knowledge.
	TypeSemantic Type = "semantic"

	// TypeProcedural is a memory of how to do something.
	TypeProcedural Type = "procedural"

	// TypeConversational is a remembered conversational exchange.
	TypeConversational Type = "conversational"
)

// Valid reports whether t is a known memory type.
func (t Type) Valid() bool {
	switch t {
	case TypeEpisodic, TypeSemantic, TypeProcedural, TypeConversational:
		return true
	}
	return false
}

// Category describes what kind of experience a record captures. Categories
// drive the importance base weight; the zero value CategoryGeneral carries
// weight 1.0.
type Category string

const (
	CategoryCommitment   Category = "commitment"
	CategoryRelationship Category = "relationship"
	CategoryEvent        Category = "event"
	CategoryConcern      Category = "concern"
	CategoryPreference   Category = "preference"
	CategoryGeneral      Category = "general"
)

// Record is one remembered fact, event, or utterance.
//
// A record is created by Hub.Encode, made durable by Hub.Consolidate, and
// mutated only by access events: every retrieval that returns the record
// increments AccessCount and refreshes LastAccessedAt.
type Record struct {
	// ID uniquely identifies the record (snowflake).
	ID int64 `json:"id"`

	// OwnerID identifies the user this memory belongs to.
	OwnerID string `json:"owner_id"`

	// SessionID identifies the session the memory originated from.
	SessionID string `json:"session_id,omitempty"`

	// Content is the full memory text.
	Content string `json:"content"`

	// Summary is an optional short form of Content.
	Summary string `json:"summary,omitempty"`

	// MemoryType classifies the record (episodic, semantic, procedural,
	// conversational).
	MemoryType Type `json:"memory_type"`

	// Category drives the importance base weight (commitment, concern, ...).
	Category Category `json:"category,omitempty"`

	// ContentHash is the SHA-256 hex digest of OwnerID and Content. It is the
	// idempotency key for consolidation.
	ContentHash string `json:"content_hash"`

	// Embedding is the vector representation of Content. Empty when the
	// embedding provider was unavailable at encode time (degraded record).
	Embedding []float64 `json:"embedding,omitempty"`

	// EmotionTag labels the dominant emotion at encode time.
	EmotionTag string `json:"emotion_tag,omitempty"`

	// EmotionIntensity is the emotion strength on a 0-10 scale.
	EmotionIntensity float64 `json:"emotion_intensity"`

	// Importance is the clamped [0,1] importance score.
	Importance float64 `json:"importance"`

	// DecayRate is the per-day multiplicative retention factor.
	DecayRate float64 `json:"decay_rate"`

	// AccessCount is the number of times the record was returned from
	// retrieval.
	AccessCount int `json:"access_count"`

	// CreatedAt is when the record was encoded.
	CreatedAt time.Time `json:"created_at"`

	// LastAccessedAt is when the record was last returned from retrieval.
	// Nil if never accessed.
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	// Metadata carries auxiliary key-value data (followup bookkeeping,
	// source markers).
	Metadata map[string]string `json:"metadata,omitempty"`

	// Score is the effective retrieval score computed per query. It is
	// never persisted.
	Score float64 `json:"score,omitempty"`
}

// HashContent computes the consolidation idempotency key for an owner and
// content pair. Content is trimmed so trailing whitespace does not defeat
// deduplication.
func HashContent(ownerID, content string) string {
	h := sha256.New()
	h.Write([]byte(ownerID))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(h.Sum(nil))
}

// toStorage converts a Record to its storage representation.
func (r *Record) toStorage() *storage.Record {
	meta := r.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	if r.Category != "" && r.Category != CategoryGeneral {
		meta = copyMetadata(meta)
		meta["category"] = string(r.Category)
	}

	return &storage.Record{
		ID:               r.ID,
		OwnerID:          r.OwnerID,
		SessionID:        r.SessionID,
		Content:          r.Content,
		Summary:          r.Summary,
		Type:             string(r.MemoryType),
		ContentHash:      r.ContentHash,
		Embedding:        r.Embedding,
		EmotionTag:       r.EmotionTag,
		EmotionIntensity: r.EmotionIntensity,
		Importance:       r.Importance,
		DecayRate:        r.DecayRate,
		AccessCount:      r.AccessCount,
		CreatedAt:        r.CreatedAt,
		LastAccessedAt:   r.LastAccessedAt,
		Metadata:         meta,
	}
}

// fromStorage converts a storage record back to a memory Record.
func fromStorage(sr *storage.Record) *Record {
	category := CategoryGeneral
	if sr.Metadata != nil {
		if c, ok := sr.Metadata["category"]; ok {
			category = Category(c)
		}
	}

	memType := Type(sr.Type)
	if !memType.Valid() {
		memType = TypeConversational
	}

	return &Record{
		ID:               sr.ID,
		OwnerID:          sr.OwnerID,
		SessionID:        sr.SessionID,
		Content:          sr.Content,
		Summary:          sr.Summary,
		MemoryType:       memType,
		Category:         category,
		ContentHash:      sr.ContentHash,
		Embedding:        sr.Embedding,
		EmotionTag:       sr.EmotionTag,
		EmotionIntensity: sr.EmotionIntensity,
		Importance:       sr.Importance,
		DecayRate:        sr.DecayRate,
		AccessCount:      sr.AccessCount,
		CreatedAt:        sr.CreatedAt,
		LastAccessedAt:   sr.LastAccessedAt,
		Metadata:         sr.Metadata,
		Score:            sr.Score,
	}
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
