package decompose

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bawdo/sqldivider/query"
)

// DefaultCacheSize is the number of templates a Cache remembers.
const DefaultCacheSize = 128

// Cache memoizes decompositions by template text. Only successful results are
// cached; callers receive copies and may modify them freely.
type Cache struct {
	parser Parser
	sets   *lru.Cache[string, query.StatementSet]
}

// NewCache creates a cache holding up to size templates.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	sets, err := lru.New[string, query.StatementSet](size)
	if err != nil {
		return nil, fmt.Errorf("decompose cache: %w", err)
	}
	return &Cache{sets: sets}, nil
}

// Decompose returns the cached set for sql or splits and caches it.
func (c *Cache) Decompose(ctx context.Context, sql string) (query.StatementSet, error) {
	if set, ok := c.sets.Get(sql); ok {
		return set.Clone(), nil
	}
	set, err := c.parser.Decompose(ctx, sql)
	if err != nil {
		return query.StatementSet{}, err
	}
	c.sets.Add(sql, set.Clone())
	return set, nil
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	return c.sets.Len()
}
