// Package postgres provides the PostgreSQL implementation of the memory store.
//
// It uses the pgvector extension for native vector similarity search when
// available. Records inserted without an embedding (degraded encode) are
// excluded from vector search but remain reachable through scans.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// Client implements storage.Store using PostgreSQL as the backend.
type Client struct {
	// db is the PostgreSQL database connection pool.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string

	// dimensions is the dimension of embedding vectors.
	dimensions int
}

// Config contains configuration for creating a PostgreSQL store.
type Config struct {
	// Host is the database host.
	Host string

	// Port is the database port.
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the name of the table to use (default "memories").
	TableName string

	// EmbeddingModelDims is the dimension of embedding vectors.
	EmbeddingModelDims int

	// SSLMode is the SSL mode (default "disable").
	SSLMode string
}

// NewClient creates a new PostgreSQL store client.
func NewClient(cfg *Config) (*Client, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresClient: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	dims := cfg.EmbeddingModelDims
	if dims == 0 {
		dims = 1536
	}

	client := &Client{
		db:         db,
		tableName:  tableName,
		dimensions: dims,
	}

	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the pgvector extension and table structure.
func (c *Client) initTables(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("initTables: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			session_id TEXT,
			content TEXT NOT NULL,
			summary TEXT,
			mem_type TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding vector(%d),
			emotion_tag TEXT,
			emotion_intensity DOUBLE PRECISION DEFAULT 0,
			importance DOUBLE PRECISION DEFAULT 0,
			decay_rate DOUBLE PRECISION DEFAULT 0.9,
			access_count INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			last_accessed_at TIMESTAMPTZ,
			metadata JSONB,
			UNIQUE (owner_id, content_hash)
		)
	`, c.tableName, c.dimensions)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner_created ON %s(owner_id, created_at)
	`, c.tableName, c.tableName)
	if _, err := c.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: create index: %w", err)
	}

	return nil
}

// Insert inserts a record. Unique violations on (owner_id, content_hash)
// surface as storage.ErrDuplicate.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, session_id, content, summary, mem_type, content_hash,
		 embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		 access_count, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, c.tableName)

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	_, err = c.db.ExecContext(ctx, query,
		rec.ID,
		rec.OwnerID,
		rec.SessionID,
		rec.Content,
		rec.Summary,
		rec.Type,
		rec.ContentHash,
		vectorLiteral(rec.Embedding),
		rec.EmotionTag,
		rec.EmotionIntensity,
		rec.Importance,
		rec.DecayRate,
		rec.AccessCount,
		createdAt,
		metadataJSON,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using pgvector cosine distance.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	conditions := []string{"embedding IS NOT NULL"}
	args := []interface{}{vectorLiteral(embedding)}
	argIdx := 2

	if opts.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", argIdx))
		args = append(args, opts.OwnerID)
		argIdx++
	}
	if opts.EmotionTag != "" {
		conditions = append(conditions, fmt.Sprintf("emotion_tag = $%d", argIdx))
		args = append(args, opts.EmotionTag)
		argIdx++
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	query := fmt.Sprintf(`
		SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
		       embedding::text, emotion_tag, emotion_intensity, importance, decay_rate,
		       access_count, created_at, last_accessed_at, metadata,
		       1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, c.tableName, strings.Join(conditions, " AND "), argIdx)
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		rec, err := scanRecordWithScore(rows)
		if err != nil {
			return nil, err
		}
		if rec.Score >= opts.MinScore {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(selectColumns+" FROM %s WHERE id = $1", c.tableName)

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
	query := fmt.Sprintf(selectColumns+" FROM %s WHERE owner_id = $1 AND content_hash = $2", c.tableName)

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
	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET content = $1, summary = $2, embedding = $3, emotion_tag = $4,
		    emotion_intensity = $5, importance = $6, decay_rate = $7, metadata = $8
		WHERE id = $9
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query,
		rec.Content,
		rec.Summary,
		vectorLiteral(rec.Embedding),
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

// Touch increments access counts and refreshes last-accessed timestamps
// atomically inside the database.
func (c *Client) Touch(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET access_count = access_count + 1, last_accessed_at = $1
		WHERE id = ANY($2)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query, at, pq.Array(ids)); err != nil {
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
	argIdx := 1

	addCondition := func(cond string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argIdx))
		args = append(args, value)
		argIdx++
	}

	if opts.OwnerID != "" {
		addCondition("owner_id = $%d", opts.OwnerID)
	}
	if opts.EmotionTag != "" {
		addCondition("emotion_tag = $%d", opts.EmotionTag)
	}
	if opts.Type != "" {
		addCondition("mem_type = $%d", opts.Type)
	}
	if opts.MinImportance > 0 {
		addCondition("importance >= $%d", opts.MinImportance)
	}
	if !opts.Since.IsZero() {
		addCondition("created_at > $%d", opts.Since)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(selectColumns+`
		FROM %s
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, c.tableName, whereClause, argIdx, argIdx+1)
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
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.tableName)

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

// Close closes the database connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}
