package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
)

const (
	// vectorKeyPrefix namespaces indexed embeddings in Redis.
	vectorKeyPrefix = "qh:vec:"
	// vectorIndexKey is the set of keys currently indexed for similarity
	// search. Members whose vector key has expired are pruned lazily.
	vectorIndexKey = "qh:vec:index"
)

// RedisBackend implements Backend on a Redis client. Values use plain
// keys with TTLs; embeddings are stored as JSON under a vector key and
// tracked in an index set, with similarity computed client-side. This
// keeps the backend on stock Redis with no module requirements.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing Redis client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

// Set implements Backend.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key, vectorKeyPrefix+key)
	pipe.SRem(ctx, vectorIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// IndexVector implements Backend.
func (r *RedisBackend) IndexVector(ctx context.Context, key string, vector []float32, ttl time.Duration) error {
	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("marshal vector: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, vectorKeyPrefix+key, payload, ttl)
	pipe.SAdd(ctx, vectorIndexKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis index vector: %w", err)
	}
	return nil
}

// SearchVectors implements Backend. Members of the index whose vector key
// has expired are removed as they are encountered.
func (r *RedisBackend) SearchVectors(ctx context.Context, vector []float32, topK int) ([]VectorMatch, error) {
	keys, err := r.client.SMembers(ctx, vectorIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis index members: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	vectorKeys := make([]string, len(keys))
	for i, key := range keys {
		vectorKeys[i] = vectorKeyPrefix + key
	}

	values, err := r.client.MGet(ctx, vectorKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget vectors: %w", err)
	}

	var stale []any
	matches := make([]VectorMatch, 0, len(keys))
	for i, raw := range values {
		if raw == nil {
			stale = append(stale, keys[i])
			continue
		}
		str, ok := raw.(string)
		if !ok {
			continue
		}
		var stored []float32
		if err := json.Unmarshal([]byte(str), &stored); err != nil {
			stale = append(stale, keys[i])
			continue
		}
		matches = append(matches, VectorMatch{
			Key:        keys[i],
			Similarity: CosineSimilarity(vector, stored),
		})
	}

	if len(stale) > 0 {
		// Prune expired members; failure here does not affect the search.
		_ = r.client.SRem(ctx, vectorIndexKey, stale...).Err()
	}

	sort.SliceStable(matches, func(i, j int) bool {
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

var _ Backend = (*RedisBackend)(nil)
