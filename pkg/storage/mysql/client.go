// Package mysql provides the MySQL implementation of the memory store.
//
// MySQL has no native vector type, so embeddings are stored as JSON strings
// and similarity search uses in-memory cosine similarity calculation, the
// same approach the SQLite backend takes.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// Client implements storage.Store using MySQL as the backend.
type Client struct {
	// db is the MySQL database connection pool.
	db *sql.DB

	// tableName is the name of the table storing records.
	tableName string
}

// Config contains configuration for creating a MySQL store.
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
}

// NewClient creates a new MySQL store client.
func NewClient(cfg *Config) (*Client, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLClient: %w", err)
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

// initTables initializes the table structure.
func (c *Client) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner_id VARCHAR(255) NOT NULL,
			session_id VARCHAR(255),
			content TEXT NOT NULL,
			summary TEXT,
			mem_type VARCHAR(32) NOT NULL,
			content_hash VARCHAR(64) NOT NULL,
			embedding LONGTEXT,
			emotion_tag VARCHAR(64),
			emotion_intensity DOUBLE DEFAULT 0,
			importance DOUBLE DEFAULT 0,
			decay_rate DOUBLE DEFAULT 0.9,
			access_count INT DEFAULT 0,
			created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
			last_accessed_at DATETIME(6),
			metadata JSON,
			UNIQUE KEY uniq_owner_hash (owner_id, content_hash),
			KEY idx_owner_created (owner_id, created_at)
		)
	`, c.tableName)

	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert inserts a record. Duplicate key violations on (owner_id,
// content_hash) surface as storage.ErrDuplicate.
func (c *Client) Insert(ctx context.Context, rec *storage.Record) error {
	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, owner_id, session_id, content, summary, mem_type, content_hash,
		 embedding, emotion_tag, emotion_intensity, importance, decay_rate,
		 access_count, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	metadataJSON, err := json.Marshal(rec.Metadata)
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
		string(embeddingJSON),
		rec.EmotionTag,
		rec.EmotionIntensity,
		rec.Importance,
		rec.DecayRate,
		rec.AccessCount,
		createdAt,
		string(metadataJSON),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("Insert: %w", err)
	}

	return nil
}

// Search performs vector similarity search using in-memory cosine similarity.
func (c *Client) Search(ctx context.Context, embedding []float64, opts *storage.SearchOptions) ([]*storage.Record, error) {
	if opts == nil {
		opts = &storage.SearchOptions{}
	}

	conditions := []string{"embedding IS NOT NULL"}
	args := []interface{}{}
	if opts.OwnerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, opts.OwnerID)
	}
	if opts.EmotionTag != "" {
		conditions = append(conditions, "emotion_tag = ?")
		args = append(args, opts.EmotionTag)
	}

	query := fmt.Sprintf(selectColumns+`
		FROM %s
		WHERE %s
		ORDER BY id
	`, c.tableName, strings.Join(conditions, " AND "))

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

		rec.Score = cosineSimilarity(embedding, rec.Embedding)
		if rec.Score >= opts.MinScore {
			records = append(records, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if opts.Limit > 0 && len(records) > opts.Limit {
		records = records[:opts.Limit]
	}

	return records, nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := fmt.Sprintf(selectColumns+" FROM %s WHERE id = ?", c.tableName)

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
	query := fmt.Sprintf(selectColumns+" FROM %s WHERE owner_id = ? AND content_hash = ?", c.tableName)

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
	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	metadataJSON, err := json.Marshal(rec.Metadata)
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
		string(embeddingJSON),
		rec.EmotionTag,
		rec.EmotionIntensity,
		rec.Importance,
		rec.DecayRate,
		string(metadataJSON),
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

	query := fmt.Sprintf(selectColumns+`
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

// Close closes the database connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// selectColumns is the shared column list for record queries.
const selectColumns = `
	SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
	       embedding, emotion_tag, emotion_intensity, importance, decay_rate,
	       access_count, created_at, last_accessed_at, metadata`

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one row into a storage.Record.
func scanRecord(row rowScanner) (*storage.Record, error) {
	var (
		rec            storage.Record
		sessionID      sql.NullString
		summary        sql.NullString
		embeddingJSON  sql.NullString
		emotionTag     sql.NullString
		metadataJSON   sql.NullString
		createdAt      time.Time
		lastAccessedAt sql.NullTime
	)

	err := row.Scan(
		&rec.ID,
		&rec.OwnerID,
		&sessionID,
		&rec.Content,
		&summary,
		&rec.Type,
		&rec.ContentHash,
		&embeddingJSON,
		&emotionTag,
		&rec.EmotionIntensity,
		&rec.Importance,
		&rec.DecayRate,
		&rec.AccessCount,
		&createdAt,
		&lastAccessedAt,
		&metadataJSON,
	)
	if err != nil {
		return nil, err
	}

	rec.SessionID = sessionID.String
	rec.Summary = summary.String
	rec.EmotionTag = emotionTag.String
	rec.CreatedAt = createdAt
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		rec.LastAccessedAt = &t
	}
	if embeddingJSON.Valid && embeddingJSON.String != "" && embeddingJSON.String != "null" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.Embedding); err != nil {
			return nil, err
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return nil, err
		}
	}

	return &rec, nil
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
