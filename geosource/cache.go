package geosource

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
)

type cacheKey struct {
	bound       orb.Bound
	categoryID  uint64
	hasCategory bool
}

// Cached remembers the most recent lookups of a Source. Returned slices are
// shared between callers and must not be modified.
type Cached struct {
	src   Source
	cache *lru.Cache[cacheKey, []Shape]
}

// NewCached wraps src with an LRU of size entries.
func NewCached(src Source, size int) (*Cached, error) {
	c, err := lru.New[cacheKey, []Shape](size)
	if err != nil {
		return nil, err
	}
	return &Cached{src: src, cache: c}, nil
}

func (c *Cached) Shapes(ctx context.Context, bound orb.Bound, categoryID uint64, hasCategory bool) ([]Shape, error) {
	k := cacheKey{bound, categoryID, hasCategory}
	if shapes, ok := c.cache.Get(k); ok {
		return shapes, nil
	}
	shapes, err := c.src.Shapes(ctx, bound, categoryID, hasCategory)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, shapes)
	return shapes, nil
}

func (c *Cached) Close() error {
	c.cache.Purge()
	return c.src.Close()
}
