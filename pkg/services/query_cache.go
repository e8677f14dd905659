package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/cache"
	"github.com/queryhaven/queryhaven-engine/pkg/config"
	"github.com/queryhaven/queryhaven-engine/pkg/llm"
	"github.com/queryhaven/queryhaven-engine/pkg/logging"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

const (
	cacheEntryKeyPrefix = "qh:entry:"
	semanticSearchTopK  = 5
)

// QueryCache caches generated SQL per question, with exact-match lookup
// by normalized hash and semantic lookup by embedding similarity. Every
// backend or embedding failure degrades to a miss; the cache never fails
// a request.
type QueryCache interface {
	// Lookup returns the cached entry for a question, or
	// apperrors.ErrCacheMiss.
	Lookup(ctx context.Context, question string) (*models.CacheEntry, error)

	// Store caches a generated result for a question. Best-effort.
	Store(ctx context.Context, question, sql, response string) error

	// Invalidate soft-invalidates the exact-match entry for a question:
	// the entry survives for a short grace window, then expires.
	Invalidate(ctx context.Context, question string) error
}

type queryCache struct {
	backend  cache.Backend
	embedder llm.Embedder
	cfg      *config.QueryConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewQueryCache creates a QueryCache over the given backend. embedder may
// be nil, which disables semantic lookup regardless of configuration.
func NewQueryCache(backend cache.Backend, embedder llm.Embedder, cfg *config.QueryConfig, logger *zap.Logger) QueryCache {
	return &queryCache{
		backend:  backend,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.Named("query_cache"),
		now:      time.Now,
	}
}

var _ QueryCache = (*queryCache)(nil)

func (c *queryCache) enabled() bool {
	return c.cfg.EnableQueryCaching && c.backend != nil
}

func (c *queryCache) semanticEnabled() bool {
	return c.enabled() && c.cfg.EnableSemanticCache && c.embedder != nil
}

// Lookup implements QueryCache. The exact hash path runs first; only on
// an exact miss does the semantic path embed the question.
func (c *queryCache) Lookup(ctx context.Context, question string) (*models.CacheEntry, error) {
	if !c.enabled() {
		return nil, apperrors.ErrCacheMiss
	}

	normalized := models.NormalizeQuestion(question)
	key := cacheEntryKeyPrefix + models.QuestionHash(normalized)

	if entry := c.getEntry(ctx, key); entry != nil {
		entry.Similarity = 1.0
		c.logger.Debug("Exact cache hit",
			zap.String("question", logging.SanitizeQuestion(question)))
		return entry, nil
	}

	if !c.semanticEnabled() {
		return nil, apperrors.ErrCacheMiss
	}
	return c.semanticLookup(ctx, question)
}

func (c *queryCache) semanticLookup(ctx context.Context, question string) (*models.CacheEntry, error) {
	vector, err := c.embedder.CreateEmbedding(ctx, models.NormalizeQuestion(question))
	if err != nil {
		c.logger.Warn("Embedding for cache lookup failed", zap.Error(err))
		return nil, apperrors.ErrCacheMiss
	}

	matches, err := c.backend.SearchVectors(ctx, vector, semanticSearchTopK)
	if err != nil {
		c.logger.Warn("Vector search failed", zap.Error(err))
		return nil, apperrors.ErrCacheMiss
	}

	for _, match := range matches {
		if match.Similarity < c.cfg.SimilarityThreshold {
			break
		}
		entry := c.getEntry(ctx, match.Key)
		if entry == nil {
			continue
		}
		entry.Similarity = match.Similarity
		c.logger.Debug("Semantic cache hit",
			zap.String("question", logging.SanitizeQuestion(question)),
			zap.Float64("similarity", match.Similarity))
		return entry, nil
	}
	return nil, apperrors.ErrCacheMiss
}

// getEntry fetches and decodes one entry, treating decode errors and
// expired entries as absent.
func (c *queryCache) getEntry(ctx context.Context, key string) *models.CacheEntry {
	raw, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrCacheMiss) {
			c.logger.Warn("Cache read failed", zap.Error(err))
		}
		return nil
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Corrupt cache entry dropped", zap.String("key", key), zap.Error(err))
		_ = c.backend.Delete(ctx, key)
		return nil
	}
	if entry.Expired(c.now()) {
		return nil
	}
	return &entry
}

// Store implements QueryCache.
func (c *queryCache) Store(ctx context.Context, question, sql, response string) error {
	if !c.enabled() {
		return nil
	}

	normalized := models.NormalizeQuestion(question)
	hash := models.QuestionHash(normalized)
	now := c.now()

	entry := models.CacheEntry{
		ID:           uuid.New(),
		QuestionText: normalized,
		QuestionHash: hash,
		GeneratedSQL: sql,
		Response:     response,
		CreatedAt:    now,
		ExpiresAt:    now.Add(models.DefaultCacheTTL),
	}

	if c.semanticEnabled() {
		vector, err := c.embedder.CreateEmbedding(ctx, normalized)
		if err != nil {
			c.logger.Warn("Embedding for cache store failed, storing exact-only", zap.Error(err))
		} else {
			entry.Embedding = vector
		}
	}

	raw, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	key := cacheEntryKeyPrefix + hash
	if err := c.backend.Set(ctx, key, raw, models.DefaultCacheTTL); err != nil {
		c.logger.Warn("Cache write failed", zap.Error(err))
		return err
	}
	if len(entry.Embedding) > 0 {
		if err := c.backend.IndexVector(ctx, key, entry.Embedding, models.DefaultCacheTTL); err != nil {
			c.logger.Warn("Vector index write failed", zap.Error(err))
		}
	}
	return nil
}

// Invalidate implements QueryCache.
func (c *queryCache) Invalidate(ctx context.Context, question string) error {
	if !c.enabled() {
		return nil
	}

	key := cacheEntryKeyPrefix + models.QuestionHash(models.NormalizeQuestion(question))
	entry := c.getEntry(ctx, key)
	if entry == nil {
		return nil
	}

	entry.ExpiresAt = c.now().Add(models.SoftInvalidatedCacheTTL)
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, key, raw, models.SoftInvalidatedCacheTTL)
}
