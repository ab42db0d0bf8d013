package sqlite

import (
	"database/sql"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

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

// buildWhereClause builds a WHERE clause from the common search filters.
func buildWhereClause(ownerID, emotionTag string) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}

	if ownerID != "" {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, ownerID)
	}
	if emotionTag != "" {
		conditions = append(conditions, "emotion_tag = ?")
		args = append(args, emotionTag)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
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

// sortByScore sorts records by descending score and applies the limit.
func sortByScore(records []*storage.Record, limit int) []*storage.Record {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Score > records[j].Score
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
