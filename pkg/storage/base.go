// Package storage provides interfaces and types for memory record stores.
//
// It defines the Store interface that all backends must satisfy. A Store
// persists memory records, serves vector similarity search and recency scans,
// and applies access bookkeeping (access counts, last-accessed timestamps)
// atomically per record.
package storage

import (
	"context"
	"errors"
	"time"
)

// Predefined errors shared by all storage backends.
var (
	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate indicates that a record with the same owner and content
	// hash already exists. Callers treating consolidation as idempotent
	// should resolve the existing record instead of failing.
	ErrDuplicate = errors.New("duplicate record")
)

// Record is a stored memory record.
//
// This type is defined in the storage package to avoid circular dependencies
// with the memory package; it mirrors memory.Record field for field.
type Record struct {
	// ID is the unique identifier of the record.
	ID int64

	// OwnerID identifies the user who owns this record.
	OwnerID string

	// SessionID identifies the conversation session the record came from.
	SessionID string

	// Content is the remembered text.
	Content string

	// Summary is a short derived summary of Content.
	Summary string

	// Type is the memory type (episodic, semantic, procedural, conversational).
	Type string

	// ContentHash is a stable hash of (OwnerID, Content) used for
	// idempotent consolidation. Backends enforce uniqueness per owner.
	ContentHash string

	// Embedding is the vector embedding, empty when encoding ran degraded.
	Embedding []float64

	// EmotionTag labels the dominant emotion attached to the record.
	EmotionTag string

	// EmotionIntensity is the emotion strength on a 0-10 scale.
	EmotionIntensity float64

	// Importance is the clamped [0,1] importance score.
	Importance float64

	// DecayRate is the per-day multiplicative retrieval decay factor.
	DecayRate float64

	// AccessCount is the number of times the record was returned by retrieval.
	AccessCount int

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// LastAccessedAt is when the record was last returned (nil if never).
	LastAccessedAt *time.Time

	// Metadata carries additional structured attributes.
	Metadata map[string]string

	// Score is the raw similarity score from search operations.
	Score float64
}

// SearchOptions filters vector similarity search.
type SearchOptions struct {
	// OwnerID restricts results to one owner.
	OwnerID string

	// Limit caps the number of results (backend default when zero).
	Limit int

	// MinScore drops candidates below this similarity.
	MinScore float64

	// EmotionTag, when set, restricts results to records with this tag.
	EmotionTag string
}

// ScanOptions filters non-vector scans (recency and emotion strategies).
type ScanOptions struct {
	// OwnerID restricts results to one owner.
	OwnerID string

	// Limit caps the number of results (backend default when zero).
	Limit int

	// Offset skips results for pagination.
	Offset int

	// EmotionTag, when set, restricts results to records with this tag.
	EmotionTag string

	// Type, when set, restricts results to one memory type.
	Type string

	// MinImportance drops records below this importance.
	MinImportance float64

	// Since, when non-zero, restricts results to records created after it.
	Since time.Time
}

// Store defines the interface for memory record backends.
//
// All backends (SQLite, PostgreSQL, MySQL, chromem) must implement this
// interface. Writes are atomic per record: a cancelled context never leaves
// a half-written record behind.
type Store interface {
	// Insert persists a new record. Returns ErrDuplicate when a record with
	// the same owner and content hash already exists.
	Insert(ctx context.Context, rec *Record) error

	// Search performs vector similarity search, highest similarity first.
	Search(ctx context.Context, embedding []float64, opts *SearchOptions) ([]*Record, error)

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id int64) (*Record, error)

	// GetByHash retrieves a record by owner and content hash.
	// Returns ErrNotFound when absent.
	GetByHash(ctx context.Context, ownerID, hash string) (*Record, error)

	// Update rewrites a record's mutable fields (content, summary, embedding,
	// importance, metadata). Returns ErrNotFound when absent.
	Update(ctx context.Context, rec *Record) error

	// Touch increments access counts and refreshes last-accessed timestamps
	// for the given records. Increments are applied atomically per record so
	// concurrent retrievals cannot corrupt the counters.
	Touch(ctx context.Context, ids []int64, at time.Time) error

	// Scan returns records matching opts ordered by most recent CreatedAt.
	Scan(ctx context.Context, opts *ScanOptions) ([]*Record, error)

	// Delete removes a record by ID.
	Delete(ctx context.Context, id int64) error

	// Close releases backend resources.
	Close() error
}
