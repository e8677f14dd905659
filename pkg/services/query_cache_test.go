package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/cache"
	"github.com/queryhaven/queryhaven-engine/pkg/llm"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

func newTestQueryCache(t *testing.T) (*queryCache, *cache.MemoryBackend, *llm.MockClient) {
	t.Helper()
	backend := cache.NewMemoryBackend()
	embedder := llm.NewMockClient()
	qc := NewQueryCache(backend, embedder, testQueryConfig(), zap.NewNop()).(*queryCache)
	return qc, backend, embedder
}

func TestQueryCacheRoundTrip(t *testing.T) {
	qc, _, _ := newTestQueryCache(t)
	ctx := context.Background()

	_, err := qc.Lookup(ctx, "total deposits yesterday")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)

	require.NoError(t, qc.Store(ctx, "total deposits yesterday", "SELECT SUM(amount) FROM deposits", ""))

	entry, err := qc.Lookup(ctx, "total deposits yesterday")
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM(amount) FROM deposits", entry.GeneratedSQL)
	assert.Equal(t, 1.0, entry.Similarity)
}

func TestQueryCacheNormalizesQuestions(t *testing.T) {
	qc, _, _ := newTestQueryCache(t)
	ctx := context.Background()

	require.NoError(t, qc.Store(ctx, "Total Deposits Yesterday", "SELECT 1", ""))

	entry, err := qc.Lookup(ctx, "  total   deposits\nyesterday ")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", entry.GeneratedSQL)
}

func TestQueryCacheSemanticHit(t *testing.T) {
	qc, _, embedder := newTestQueryCache(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"total deposits yesterday":           {1, 0, 0},
		"sum of deposits for the prior day":  {0.98, 0.19, 0},
	}
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		if v, ok := vectors[input]; ok {
			return v, nil
		}
		return []float32{0, 0, 1}, nil
	}

	require.NoError(t, qc.Store(ctx, "total deposits yesterday", "SELECT SUM(amount) FROM deposits", ""))

	entry, err := qc.Lookup(ctx, "sum of deposits for the prior day")
	require.NoError(t, err)
	assert.Equal(t, "SELECT SUM(amount) FROM deposits", entry.GeneratedSQL)
	assert.Greater(t, entry.Similarity, 0.85)
	assert.Less(t, entry.Similarity, 1.0)
}

func TestQueryCacheSemanticBelowThresholdMisses(t *testing.T) {
	qc, _, embedder := newTestQueryCache(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"total deposits yesterday":   {1, 0, 0},
		"most played games by week":  {0, 1, 0},
	}
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		return vectors[input], nil
	}

	require.NoError(t, qc.Store(ctx, "total deposits yesterday", "SELECT 1", ""))

	_, err := qc.Lookup(ctx, "most played games by week")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestQueryCacheExpiry(t *testing.T) {
	qc, _, _ := newTestQueryCache(t)
	ctx := context.Background()

	start := time.Now()
	qc.now = func() time.Time { return start }

	require.NoError(t, qc.Store(ctx, "total deposits", "SELECT 1", ""))

	qc.now = func() time.Time { return start.Add(models.DefaultCacheTTL + time.Minute) }
	_, err := qc.Lookup(ctx, "total deposits")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestQueryCacheInvalidateSoftens(t *testing.T) {
	qc, _, _ := newTestQueryCache(t)
	ctx := context.Background()

	start := time.Now()
	qc.now = func() time.Time { return start }

	require.NoError(t, qc.Store(ctx, "total deposits", "SELECT 1", ""))
	require.NoError(t, qc.Invalidate(ctx, "total deposits"))

	// Still served inside the grace window.
	_, err := qc.Lookup(ctx, "total deposits")
	require.NoError(t, err)

	qc.now = func() time.Time { return start.Add(models.SoftInvalidatedCacheTTL + time.Second) }
	_, err = qc.Lookup(ctx, "total deposits")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestQueryCacheDisabledNeverTouchesBackend(t *testing.T) {
	cfg := testQueryConfig()
	cfg.EnableQueryCaching = false

	embedder := llm.NewMockClient()
	qc := NewQueryCache(failingBackend{}, embedder, cfg, zap.NewNop())
	ctx := context.Background()

	_, err := qc.Lookup(ctx, "total deposits")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
	assert.NoError(t, qc.Store(ctx, "total deposits", "SELECT 1", ""))
	assert.Equal(t, 0, embedder.CreateEmbeddingCalls)
}

func TestQueryCacheSemanticDisabledSkipsEmbedding(t *testing.T) {
	cfg := testQueryConfig()
	cfg.EnableSemanticCache = false

	backend := cache.NewMemoryBackend()
	embedder := llm.NewMockClient()
	qc := NewQueryCache(backend, embedder, cfg, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, qc.Store(ctx, "total deposits", "SELECT 1", ""))
	_, err := qc.Lookup(ctx, "a different question entirely")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
	assert.Equal(t, 0, embedder.CreateEmbeddingCalls)
}

func TestQueryCacheBackendErrorsDegradeToMiss(t *testing.T) {
	qc := NewQueryCache(failingBackend{}, llm.NewMockClient(), testQueryConfig(), zap.NewNop())
	ctx := context.Background()

	_, err := qc.Lookup(ctx, "total deposits")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestQueryCacheEmbedderFailureStoresExactOnly(t *testing.T) {
	backend := cache.NewMemoryBackend()
	embedder := llm.NewMockClient()
	embedder.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}
	qc := NewQueryCache(backend, embedder, testQueryConfig(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, qc.Store(ctx, "total deposits", "SELECT 1", ""))

	entry, err := qc.Lookup(ctx, "total deposits")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", entry.GeneratedSQL)
	assert.Empty(t, entry.Embedding)
}

// failingBackend errors on every operation.
type failingBackend struct{}

func (failingBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("backend down")
}

func (failingBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("backend down")
}

func (failingBackend) Delete(ctx context.Context, key string) error {
	return errors.New("backend down")
}

func (failingBackend) IndexVector(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	return errors.New("backend down")
}

func (failingBackend) SearchVectors(ctx context.Context, vector []float32, topK int) ([]cache.VectorMatch, error) {
	return nil, errors.New("backend down")
}
