package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default cache lifetimes.
const (
	DefaultCacheTTL         = 24 * time.Hour
	SoftInvalidatedCacheTTL = 5 * time.Minute
)

// CacheEntry is a previously answered question stored in the query cache.
// Entries are created on a cache miss after successful generation and
// evicted by TTL expiry or explicit invalidation.
type CacheEntry struct {
	ID           uuid.UUID `json:"id"`
	QuestionText string    `json:"question_text"`
	QuestionHash string    `json:"question_hash"`
	Embedding    []float32 `json:"embedding,omitempty"`
	GeneratedSQL string    `json:"generated_sql"`
	Response     string    `json:"response"`
	Similarity   float64   `json:"similarity,omitempty"` // Populated on semantic hits
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// NormalizeQuestion produces the canonical form used for exact-match
// hashing: trimmed, lowercased, inner whitespace collapsed.
func NormalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(question))), " ")
}

// QuestionHash returns the exact-match cache key for a question.
func QuestionHash(question string) string {
	sum := sha256.Sum256([]byte(NormalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}
