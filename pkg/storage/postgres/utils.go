package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sentio-ai/sentio-go/pkg/storage"
)

// selectColumns is the shared column list for record queries. The embedding
// is cast to text so it can be parsed back from the pgvector literal form.
const selectColumns = `
	SELECT id, owner_id, session_id, content, summary, mem_type, content_hash,
	       embedding::text, emotion_tag, emotion_intensity, importance, decay_rate,
	       access_count, created_at, last_accessed_at, metadata`

// rowScanner abstracts *sql.Row and *sql.Rows for scanRecord.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans one row into a storage.Record.
func scanRecord(row rowScanner) (*storage.Record, error) {
	rec, _, err := scanRecordColumns(row, false)
	return rec, err
}

// scanRecordWithScore scans one row including a trailing similarity column.
func scanRecordWithScore(row rowScanner) (*storage.Record, error) {
	rec, score, err := scanRecordColumns(row, true)
	if err != nil {
		return nil, err
	}
	rec.Score = score
	return rec, nil
}

func scanRecordColumns(row rowScanner, withScore bool) (*storage.Record, float64, error) {
	var (
		rec            storage.Record
		sessionID      sql.NullString
		summary        sql.NullString
		embeddingText  sql.NullString
		emotionTag     sql.NullString
		metadataJSON   []byte
		createdAt      time.Time
		lastAccessedAt sql.NullTime
		score          float64
	)

	dest := []interface{}{
		&rec.ID,
		&rec.OwnerID,
		&sessionID,
		&rec.Content,
		&summary,
		&rec.Type,
		&rec.ContentHash,
		&embeddingText,
		&emotionTag,
		&rec.EmotionIntensity,
		&rec.Importance,
		&rec.DecayRate,
		&rec.AccessCount,
		&createdAt,
		&lastAccessedAt,
		&metadataJSON,
	}
	if withScore {
		dest = append(dest, &score)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	rec.SessionID = sessionID.String
	rec.Summary = summary.String
	rec.EmotionTag = emotionTag.String
	rec.CreatedAt = createdAt
	if lastAccessedAt.Valid {
		t := lastAccessedAt.Time
		rec.LastAccessedAt = &t
	}
	if embeddingText.Valid {
		embedding, err := parseVectorLiteral(embeddingText.String)
		if err != nil {
			return nil, 0, err
		}
		rec.Embedding = embedding
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
			return nil, 0, err
		}
	}

	return &rec, score, nil
}

// vectorLiteral renders an embedding as a pgvector literal ("[1,2,3]").
// Empty embeddings map to SQL NULL so degraded records stay out of vector
// search.
func vectorLiteral(embedding []float64) interface{} {
	if len(embedding) == 0 {
		return nil
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVectorLiteral parses a pgvector literal back into a slice.
func parseVectorLiteral(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("parseVectorLiteral: %w", err)
		}
		out[i] = v
	}
	return out, nil
}

// marshalMetadata serializes the metadata map for a JSONB column.
func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(metadata)
}
