package repository

import (
	"context"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/hellobirdie/hellobirdie/internal/datastore/entities"
)

const (
	cacheKeyBird     = "bird:"
	cacheKeyDistinct = "distinct:"
)

// CachedRepository decorates a RecordRepository with an in-memory cache for
// Get and DistinctValues. Every successful write flushes the cache.
type CachedRepository struct {
	RecordRepository
	cache *cache.Cache
}

// NewCachedRepository wraps inner. A non-positive ttl returns inner unchanged.
func NewCachedRepository(inner RecordRepository, ttl time.Duration) RecordRepository {
	if ttl <= 0 {
		return inner
	}
	return &CachedRepository{
		RecordRepository: inner,
		cache:            cache.New(ttl, 2*ttl),
	}
}

// Get returns a deep copy of the cached record when present.
func (c *CachedRepository) Get(ctx context.Context, id uint) (*entities.Bird, error) {
	key := cacheKeyBird + strconv.FormatUint(uint64(id), 10)
	if v, ok := c.cache.Get(key); ok {
		if b, ok := v.(*entities.Bird); ok {
			return b.Clone(), nil
		}
	}

	bird, err := c.RecordRepository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, bird.Clone())
	return bird, nil
}

// DistinctValues caches the filter values per field.
func (c *CachedRepository) DistinctValues(ctx context.Context, field FilterField) ([]string, error) {
	key := cacheKeyDistinct + string(field)
	if v, ok := c.cache.Get(key); ok {
		if values, ok := v.([]string); ok {
			return slices.Clone(values), nil
		}
	}

	values, err := c.RecordRepository.DistinctValues(ctx, field)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, slices.Clone(values))
	return values, nil
}

func (c *CachedRepository) Create(ctx context.Context, bird *entities.Bird) error {
	return c.invalidate(c.RecordRepository.Create(ctx, bird))
}

func (c *CachedRepository) Update(ctx context.Context, bird *entities.Bird) error {
	return c.invalidate(c.RecordRepository.Update(ctx, bird))
}

func (c *CachedRepository) Delete(ctx context.Context, id uint) error {
	return c.invalidate(c.RecordRepository.Delete(ctx, id))
}

func (c *CachedRepository) Upsert(ctx context.Context, bird *entities.Bird) (bool, error) {
	created, err := c.RecordRepository.Upsert(ctx, bird)
	return created, c.invalidate(err)
}

// Invalidate drops every cached entry.
func (c *CachedRepository) Invalidate() {
	c.cache.Flush()
}

func (c *CachedRepository) invalidate(err error) error {
	if err == nil {
		c.cache.Flush()
	}
	return err
}
