package repositories

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/queryhaven/queryhaven-engine/pkg/apperrors"
	"github.com/queryhaven/queryhaven-engine/pkg/database"
	"github.com/queryhaven/queryhaven-engine/pkg/models"
)

// TemplateRepository exposes prompt templates by key.
type TemplateRepository interface {
	// GetTemplate returns the template for key, or apperrors.ErrNotFound.
	GetTemplate(ctx context.Context, key string) (*models.PromptTemplate, error)
}

type templateRepository struct {
	db *database.DB
}

// NewTemplateRepository creates a TemplateRepository backed by Postgres.
func NewTemplateRepository(db *database.DB) TemplateRepository {
	return &templateRepository{db: db}
}

var _ TemplateRepository = (*templateRepository)(nil)

func (r *templateRepository) GetTemplate(ctx context.Context, key string) (*models.PromptTemplate, error) {
	query := `
		SELECT template_key, body, updated_at
		FROM engine_prompt_templates
		WHERE template_key = $1`

	var tpl models.PromptTemplate
	err := r.db.QueryRow(ctx, query, key).Scan(&tpl.Key, &tpl.Body, &tpl.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query template %q: %w", key, err)
	}
	return &tpl, nil
}

type cachedTemplate struct {
	template  *models.PromptTemplate
	fetchedAt time.Time
}

// CachedTemplateRepository wraps a TemplateRepository with an in-memory
// time-based cache. Templates are read-only reference data, so serving a
// slightly stale body is acceptable; the TTL bounds the staleness.
type CachedTemplateRepository struct {
	inner TemplateRepository
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cachedTemplate
	now     func() time.Time
}

// NewCachedTemplateRepository wraps inner with a TTL cache.
func NewCachedTemplateRepository(inner TemplateRepository, ttl time.Duration) *CachedTemplateRepository {
	return &CachedTemplateRepository{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cachedTemplate),
		now:     time.Now,
	}
}

var _ TemplateRepository = (*CachedTemplateRepository)(nil)

// GetTemplate implements TemplateRepository.
func (r *CachedTemplateRepository) GetTemplate(ctx context.Context, key string) (*models.PromptTemplate, error) {
	r.mu.RLock()
	cached, ok := r.entries[key]
	r.mu.RUnlock()

	if ok && r.now().Sub(cached.fetchedAt) < r.ttl {
		return cached.template, nil
	}

	tpl, err := r.inner.GetTemplate(ctx, key)
	if err != nil {
		// Serve the stale copy when the store errors; a missing template
		// is still a miss.
		if ok && !errors.Is(err, apperrors.ErrNotFound) {
			return cached.template, nil
		}
		return nil, err
	}

	r.mu.Lock()
	r.entries[key] = cachedTemplate{template: tpl, fetchedAt: r.now()}
	r.mu.Unlock()

	return tpl, nil
}
