package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time // Zero means no expiry
}

type memoryVector struct {
	vector    []float32
	expiresAt time.Time
}

// MemoryBackend is an in-process Backend used when Redis is not configured
// and in tests. Vector search is a linear scan, which is adequate for the
// entry counts a single process accumulates within a TTL window.
type MemoryBackend struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	vectors map[string]memoryVector
	now     func() time.Time
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		items:   make(map[string]memoryItem),
		vectors: make(map[string]memoryVector),
		now:     time.Now,
	}
}

// SetClock overrides the time source. Tests use this to exercise TTL
// expiry without sleeping.
func (m *MemoryBackend) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	now := m.now()
	m.mu.RUnlock()

	if !ok {
		return nil, apperrors.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
		m.mu.Lock()
		delete(m.items, key)
		m.mu.Unlock()
		return nil, apperrors.ErrCacheMiss
	}
	return item.value, nil
}

// Set implements Backend.
func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.items[key] = item
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	delete(m.vectors, key)
	return nil
}

// IndexVector implements Backend.
func (m *MemoryBackend) IndexVector(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := memoryVector{vector: append([]float32(nil), vector...)}
	if ttl > 0 {
		v.expiresAt = m.now().Add(ttl)
	}
	m.vectors[key] = v
	return nil
}

// SearchVectors implements Backend.
func (m *MemoryBackend) SearchVectors(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	m.mu.RLock()
	now := m.now()
	matches := make([]VectorMatch, 0, len(m.vectors))
	var expired []string
	for key, v := range m.vectors {
		if !v.expiresAt.IsZero() && now.After(v.expiresAt) {
			expired = append(expired, key)
			continue
		}
		matches = append(matches, VectorMatch{
			Key:        key,
			Similarity: CosineSimilarity(vector, v.vector),
		})
	}
	m.mu.RUnlock()

	if len(expired) > 0 {
		m.mu.Lock()
		for _, key := range expired {
			delete(m.vectors, key)
		}
		m.mu.Unlock()
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Key < matches[j].Key
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

var _ Backend = (*MemoryBackend)(nil)
