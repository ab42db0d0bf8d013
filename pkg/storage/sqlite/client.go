// Package sqlite provides the SQLite implementation of the memory store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and single-node deployments. Vectors are stored as JSON strings in TEXT
// fields and similarity search uses in-memory cosine similarity calculation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use (default "memories").
	TableName string
}

// NewClient creates a new SQLite store client.
//
// Parameters:
//   - cfg: Configuration containing database path and table name
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{
		db:        db,
		tableName: tableName,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
//
// The unique index on (owner_id, content_hash) is what makes consolidation
// idempotent at the storage layer.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL,
			session_id TEXT,
			content TEXT NOT NULL,
			summary TEXT,
			mem_type TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding TEXT,
			emotion_tag TEXT,
			emotion_intensity REAL DEFAULT 0,
			importance REAL DEFAULT 0,
			decay_rate REAL DEFAULT 0.9,
			access_count INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed_at DATETIME,
			metadata TEXT
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	uniqueQuery := fmt.Sprintf(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_owner_hash ON %s(owner_id, content_hash)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, uniqueQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner_created ON %s(owner_id, created_at)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	return nil
}

// Insert inserts a record into the SQLite database.
//
// The insert is a single statement, so a cancelled context either persists
// the full record or nothing.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, session_id, content, summary, mem_type, content_hash,
		 embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		 access_count, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, metadataJSON, err := marshalJSONFields(rec)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.SessionID,
		rec.Content,
		rec.Summary,
		rec.Type,
		rec.ContentHash,
		embeddingJSON,
		rec.EmotionTag,
		rec.EmotionIntensity,
		rec.Importance,
		rec.DecayRate,
		rec.AccessCount,
		createdAt,
		metadataJSON,
	)
	if err != nil {
		if sqliteErr, ok := err.(sqlite3.Error); ok && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using cosine similarity.
//
// SQLite has no native vector operations, so similarity is calculated in
// memory after loading the owner's records. Records stored without an
// embedding (degraded encode) are skipped.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	whereClause, args := buildWhereClause(opts.OwnerID, opts.EmotionTag)

	query := fmt.Sprintf(`
		SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
		       embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		       access_count, created_at, last_accessed_at, metadata
		FROM %s
		%s
		ORDER BY id
	`, c.tableName, whereClause)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if len(rec.Embedding) == 0 {
			continue
		}

		score := cosineSimilarity(embedding, rec.Embedding)
		rec.Score = score

		if score >= opts.MinScore {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sortByScore(records, opts.Limit), nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
		       embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		       access_count, created_at, last_accessed_at, metadata
		FROM %s
		WHERE id = ?
	`, c.tableName)

	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	return rec, nil
}

// GetByHash retrieves a record by owner and content hash.
func (c *Client) GetByHash(ctx context.Context, ownerID, hash string) (*storage.Record, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
		       embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		       access_count, created_at, last_accessed_at, metadata
		FROM %s
		WHERE owner_id = ? AND content_hash = ?
	`, c.tableName)

	rec, err := scanRecord(c.db.QueryRowContext(ctx, query, ownerID, hash))
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetByHash: %w", err)
	}

	return rec, nil
}

// Update rewrites a record's mutable fields.
func (c *Client) Update(ctx context.Context, rec *storage.Record) error {
	embeddingJSON, metadataJSON, err := marshalJSONFields(rec)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = ?, summary = ?, embedding = ?, emotion_tag = ?,
		    emotion_intensity = ?, importance = ?, decay_rate = ?, metadata = ?
		WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		rec.Content,
		rec.Summary,
		embeddingJSON,
		rec.EmotionTag,
		rec.EmotionIntensity,
		rec.Importance,
		rec.DecayRate,
		metadataJSON,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Touch increments access counts and refreshes last-accessed timestamps.
//
// The increment happens inside the database, so concurrent retrievals on the
// same record serialize on the row and never lose an increment.
func (c *Client) Touch(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, at)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = ?
		WHERE id IN (%s)
	`, c.tableName, strings.Join(placeholders, ", "))

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("Touch: %w", err)
	}

	return nil
}

// Scan returns records matching opts ordered by most recent CreatedAt.
func (c *Client) Scan(ctx context.Context, opts *storage.ScanOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.ScanOptions{}
	}

	conditions := []string{}
	args := []interface{}{}
	if opts.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.EmotionTag != "" {
		conditions = append(conditions, "emotion_tag = ?")
		args = append(args, opts.EmotionTag)
	}
	if opts.Type != "" {
		conditions = append(conditions, "mem_type = ?")
		args = append(args, opts.Type)
	}
	if opts.MinImportance > 0 {
		conditions = append(conditions, "importance >= ?")
		args = append(args, opts.MinImportance)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "created_at > ?")
		args = append(args, opts.Since)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
		       embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		       access_count, created_at, last_accessed_at, metadata
		FROM %s
		%s
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, c.tableName, whereClause)

	args = append(args, limit, opts.Offset)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Scan: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Delete deletes a record by ID.
func (c *Client) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)

	result, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	if rowsAffected == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// marshalJSONFields serializes the embedding and metadata fields for storage.
func marshalJSONFields(rec *storage.Record) (string, string, error) {
	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return "", "", err
	}
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", "", err
	}
	return string(embeddingJSON), string(metadataJSON), nil
}
