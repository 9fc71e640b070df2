package vecstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchOptimized uses the sqlite-vec extension for SQL-based vector
// similarity search. The distance is computed at the database layer;
// sqlite-vec's vec_distance_cosine returns distance (lower is better), which
// we convert to similarity (1 - distance) to keep one scoring convention.
func searchOptimized(ctx context.Context, db *sql.DB, collection string, queryVector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	queryVectorBlob := serializeVector(queryVector)

	query := `
		SELECT
			doc_id,
			content,
			1.0 - vec_distance_cosine(vector, ?) as similarity
		FROM documents
		WHERE collection = ?
		ORDER BY similarity DESC
		LIMIT ?
	`
	rows, err := db.QueryContext(ctx, query, queryVectorBlob, collection, k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]Result, 0, k)
	for rows.Next() {
		var r Result
		var content sql.NullString
		if err := rows.Scan(&r.DocID, &content, &r.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Content = content.String
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchFallback performs vector search using Go-based cosine similarity.
// Used when the sqlite-vec extension is not available (purego builds).
func searchFallback(ctx context.Context, db *sql.DB, collection string, queryVector []float32, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	rows, err := db.QueryContext(ctx,
		"SELECT doc_id, content, vector FROM documents WHERE collection = ?", collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Result, 0, 1000)
	for rows.Next() {
		var r Result
		var content sql.NullString
		var blob []byte
		if err := rows.Scan(&r.DocID, &content, &blob); err != nil {
			return nil, err
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // dimension mismatch, skip
		}
		r.Content = content.String
		r.Similarity = cosineSimilarity(queryVector, vector)
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
