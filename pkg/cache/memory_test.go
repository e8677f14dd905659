package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
)

func TestMemoryBackendGetSet(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	_, err := m.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	value, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestMemoryBackendTTLExpiry(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	start := time.Now()
	m.SetClock(func() time.Time { return start })
	require.NoError(t, m.Set(ctx, "k", []byte("v"), time.Minute))

	_, err := m.Get(ctx, "k")
	require.NoError(t, err)

	m.SetClock(func() time.Time { return start.Add(2 * time.Minute) })
	_, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)
}

func TestMemoryBackendDelete(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, apperrors.ErrCacheMiss)

	assert.NoError(t, m.Delete(ctx, "never-existed"))
}

func TestMemoryBackendSearchVectorsRanksBySimilarity(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, m.IndexVector(ctx, "exact", []float32{1, 0, 0}, 0))
	require.NoError(t, m.IndexVector(ctx, "close", []float32{0.9, 0.1, 0}, 0))
	require.NoError(t, m.IndexVector(ctx, "far", []float32{0, 1, 0}, 0))

	matches, err := m.SearchVectors(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "exact", matches[0].Key)
	assert.Equal(t, "close", matches[1].Key)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestMemoryBackendSearchVectorsTieBreaksByKey(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	require.NoError(t, m.IndexVector(ctx, "b", []float32{1, 0}, 0))
	require.NoError(t, m.IndexVector(ctx, "a", []float32{1, 0}, 0))

	matches, err := m.SearchVectors(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].Key)
	assert.Equal(t, "b", matches[1].Key)
}

func TestMemoryBackendSearchVectorsSkipsExpired(t *testing.T) {
	m := NewMemoryBackend()
	ctx := context.Background()

	start := time.Now()
	m.SetClock(func() time.Time { return start })
	require.NoError(t, m.IndexVector(ctx, "short", []float32{1, 0}, time.Minute))
	require.NoError(t, m.IndexVector(ctx, "long", []float32{1, 0}, time.Hour))

	m.SetClock(func() time.Time { return start.Add(10 * time.Minute) })
	matches, err := m.SearchVectors(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "long", matches[0].Key)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Degenerate inputs.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
