// Package cache provides the key-value and vector-similarity backend
// consumed by the query cache. Backends are best-effort: callers treat any
// backend error as a cache miss.
package cache

import (
	"context"
	"math"
	"time"
)

// VectorMatch is one result of a similarity search.
type VectorMatch struct {
	Key        string
	Similarity float64 // Cosine similarity in [-1, 1]
}

// Backend is a key-value store with TTLs plus a top-k vector-similarity
// search primitive. Implementations must support concurrent readers and a
// serialized-or-lock-free write path.
type Backend interface {
	// Get returns the value for key, or apperrors.ErrCacheMiss when the
	// key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key with the given TTL. A zero TTL means no
	// expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// IndexVector registers an embedding under key for similarity search,
	// with the same TTL semantics as Set.
	IndexVector(ctx context.Context, key string, vector []float32, ttl time.Duration) error

	// SearchVectors returns up to topK indexed keys ranked by cosine
	// similarity to vector, highest first. Ties are broken by key so
	// results are deterministic.
	SearchVectors(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error)
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
