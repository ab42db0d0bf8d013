// Package chromem provides an embedded, in-process implementation of the
// memory store backed by chromem-go for vector search.
//
// chromem-go is a pure Go embedded vector database, which makes this backend
// suitable for tests, examples and single-process deployments that need no
// external database. Records are kept in an in-memory table guarded by a
// mutex; chromem serves only as the vector index.
package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// Client implements storage.Store with an in-memory table and a chromem
// vector index.
type Client struct {
	mu sync.RWMutex

	db          *chromem.DB
	collections map[string]*chromem.Collection

	records map[int64]*storage.Record
	byHash  map[string]int64
}

// NewClient creates a new embedded store.
func NewClient() (*Client, error) {
	return &Client{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		records:     make(map[int64]*storage.Record),
		byHash:      make(map[string]int64),
	}, nil
}

// collectionFor returns the chromem collection for an owner, creating it on
// first use. Each owner gets its own collection for namespace isolation.
// Callers must hold the write lock.
func (c *Client) collectionFor(ownerID string) (*chromem.Collection, error) {
	if col, ok := c.collections[ownerID]; ok {
		return col, nil
	}

	name := "owner_" + ownerID
	if ownerID == "" {
		name = "global"
	}

	col, err := c.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	c.collections[ownerID] = col
	return col, nil
}

func hashKey(ownerID, hash string) string {
	return ownerID + "\x00" + hash
}

// Insert persists a record and indexes its embedding.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := hashKey(rec.OwnerID, rec.ContentHash)
	if _, exists := c.byHash[key]; exists {
		return storage.ErrDuplicate
	}

	stored := cloneRecord(rec)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if len(stored.Embedding) > 0 {
		col, err := c.collectionFor(stored.OwnerID)
		if err != nil {
			return err
		}
		if err := col.AddDocument(ctx, toDocument(stored)); err != nil {
			return fmt.Errorf("Insert: %w", err)
		}
	}

	c.records[stored.ID] = stored
	c.byHash[key] = stored.ID
	return nil
}

// Search performs vector similarity search through the chromem index.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	c.mu.Lock()
	col, err := c.collectionFor(opts.OwnerID)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 || limit > count {
		limit = count
	}

	var where map[string]string
	if opts.EmotionTag != "" {
		where = map[string]string{"emotion_tag": opts.EmotionTag}
	}

	results, err := col.QueryEmbedding(ctx, toFloat32(embedding), limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var records []*storage.Record
	for _, res := range results {
		id, err := strconv.ParseInt(res.ID, 10, 64)
		if err != nil {
			continue
		}
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		score := float64(res.Similarity)
		if score < opts.MinScore {
			continue
		}
		out := cloneRecord(rec)
		out.Score = score
		records = append(records, out)
	}

	return records, nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(rec), nil
}

// GetByHash retrieves a record by owner and content hash.
func (c *Client) GetByHash(ctx context.Context, ownerID, hash string) (*storage.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.byHash[hashKey(ownerID, hash)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(c.records[id]), nil
}

// Update rewrites a record's mutable fields and reindexes its embedding.
func (c *Client) Update(ctx context.Context, rec *storage.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.records[rec.ID]
	if !ok {
		return storage.ErrNotFound
	}

	updated := cloneRecord(existing)
	updated.Content = rec.Content
	updated.Summary = rec.Summary
	updated.Embedding = append([]float64(nil), rec.Embedding...)
	updated.EmotionTag = rec.EmotionTag
	updated.EmotionIntensity = rec.EmotionIntensity
	updated.Importance = rec.Importance
	updated.DecayRate = rec.DecayRate
	updated.Metadata = rec.Metadata

	if len(updated.Embedding) > 0 {
		col, err := c.collectionFor(updated.OwnerID)
		if err != nil {
			return err
		}
		docID := strconv.FormatInt(updated.ID, 10)
		_ = col.Delete(ctx, nil, nil, docID)
		if err := col.AddDocument(ctx, toDocument(updated)); err != nil {
			return fmt.Errorf("Update: %w", err)
		}
	}

	c.records[rec.ID] = updated
	return nil
}

// Touch increments access counts and refreshes last-accessed timestamps.
// The write lock serializes increments, so concurrent retrievals cannot
// lose an update.
func (c *Client) Touch(ctx context.Context, ids []int64, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		rec, ok := c.records[id]
		if !ok {
			continue
		}
		rec.AccessCount++
		t := at
		rec.LastAccessedAt = &t
	}
	return nil
}

// Scan returns records matching opts ordered by most recent CreatedAt.
func (c *Client) Scan(ctx context.Context, opts *storage.ScanOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.ScanOptions{}
	}

	c.mu.RLock()
	var matched []*storage.Record
	for _, rec := range c.records {
		if opts.OwnerID != "" && rec.OwnerID != opts.OwnerID {
			continue
		}
		if opts.EmotionTag != "" && rec.EmotionTag != opts.EmotionTag {
			continue
		}
		if opts.Type != "" && rec.Type != opts.Type {
			continue
		}
		if opts.MinImportance > 0 && rec.Importance < opts.MinImportance {
			continue
		}
		if !opts.Since.IsZero() && !rec.CreatedAt.After(opts.Since) {
			continue
		}
		matched = append(matched, cloneRecord(rec))
	}
	c.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

// Delete removes a record by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[id]
	if !ok {
		return storage.ErrNotFound
	}

	if col, colOK := c.collections[rec.OwnerID]; colOK {
		_ = col.Delete(ctx, nil, nil, strconv.FormatInt(id, 10))
	}
	delete(c.byHash, hashKey(rec.OwnerID, rec.ContentHash))
	delete(c.records, id)
	return nil
}

// Close releases the in-memory state.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[int64]*storage.Record)
	c.byHash = make(map[string]int64)
	c.collections = make(map[string]*chromem.Collection)
	return nil
}

// toDocument renders a record as a chromem document.
func toDocument(rec *storage.Record) chromem.Document {
	return chromem.Document{
		ID: strconv.FormatInt(rec.ID, 10),
		Metadata: map[string]string{
			"owner_id":    rec.OwnerID,
			"mem_type":    rec.Type,
			"emotion_tag": rec.EmotionTag,
		},
		Embedding: toFloat32(rec.Embedding),
		Content:   rec.Content,
	}
}

// toFloat32 converts an embedding to chromem's float32 representation.
func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// cloneRecord copies a record so callers cannot mutate stored state.
func cloneRecord(rec *storage.Record) *storage.Record {
	cp := *rec
	if rec.Embedding != nil {
		cp.Embedding = append([]float64(nil), rec.Embedding...)
	}
	if rec.LastAccessedAt != nil {
		t := *rec.LastAccessedAt
		cp.LastAccessedAt = &t
	}
	if rec.Metadata != nil {
		cp.Metadata = make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
